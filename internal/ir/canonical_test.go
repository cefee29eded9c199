package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalItems(t *testing.T) {
	d, err := ParseDec("1.50")
	require.NoError(t, err)

	got, err := MarshalCanonical(Seq{Int(1), d, Str("x"), Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, `[1,{"decimal":"1.5"},"x",false]`, string(got))
}

func TestMarshalCanonicalEmpty(t *testing.T) {
	got, err := MarshalCanonical(Empty)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestMarshalCanonicalNodeSortedKeys(t *testing.T) {
	n := NewElement("a", Str("t"))
	got, err := MarshalCanonical(Single(n))
	require.NoError(t, err)
	assert.Equal(t, `[{"children":["t"],"element":"a"}]`, string(got))

	got, err = MarshalCanonical(Single(NewDocument(n)))
	require.NoError(t, err)
	assert.Equal(t, `[{"document":[{"children":["t"],"element":"a"}]}]`, string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(Single(Str("<a> & b")))
	require.NoError(t, err)
	assert.Equal(t, `["<a> & b"]`, string(got))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// "e" + combining acute accent normalizes to precomposed "é".
	decomposed := Str("e\u0301")
	precomposed := Str("\u00e9")

	a, err := MarshalCanonical(Single(decomposed))
	require.NoError(t, err)
	b, err := MarshalCanonical(Single(precomposed))
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	got, err := MarshalCanonical(Single(Str("a\u2028b\u2029c")))
	require.NoError(t, err)
	assert.Equal(t, "[\"a\u2028b\u2029c\"]", string(got))

	// A literal backslash followed by the text u2028 stays escaped.
	got, err = MarshalCanonical(Single(Str(`\u2028`)))
	require.NoError(t, err)
	assert.Equal(t, `["\\u2028"]`, string(got))
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(Seq{nil})
	assert.Error(t, err)
}

func TestLessUTF16(t *testing.T) {
	assert.True(t, lessUTF16("A", "a"))
	assert.True(t, lessUTF16("a", "aa"))
	assert.False(t, lessUTF16("b", "a"))
}
