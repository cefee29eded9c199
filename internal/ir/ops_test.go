package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemSealed(t *testing.T) {
	var _ Item = Int(1)
	var _ Item = Dec{}
	var _ Item = Str("a")
	var _ Item = Bool(true)
	var _ Item = NewElement("a")
}

func TestItemTypeInstanceOf(t *testing.T) {
	assert.True(t, TypeInteger.InstanceOf(TypeDecimal))
	assert.True(t, TypeString.InstanceOf(TypeItem))
	assert.False(t, TypeDecimal.InstanceOf(TypeInteger))
	assert.False(t, TypeString.InstanceOf(TypeBoolean))
}

func TestEBV(t *testing.T) {
	tests := []struct {
		name string
		seq  Seq
		want bool
	}{
		{"empty", Empty, false},
		{"true", Single(Bool(true)), true},
		{"false", Single(Bool(false)), false},
		{"empty string", Single(Str("")), false},
		{"string", Single(Str("x")), true},
		{"zero", Single(Int(0)), false},
		{"nonzero", Single(Int(7)), true},
		{"node sequence", Seq{NewElement("a"), Int(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EBV(tt.seq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEBVUndefined(t *testing.T) {
	_, err := EBV(Seq{Int(1), Int(2)})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeEBV))
}

func TestGeneralCompareExistential(t *testing.T) {
	ok, err := GeneralCompare(OpEq, Ints(1, 3), Single(Int(2)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = GeneralCompare(OpEq, Empty, Single(Int(2)))
	require.NoError(t, err)
	assert.False(t, ok, "comparison with the empty sequence is false")

	ok, err = GeneralCompare(OpGt, Ints(1, 3), Single(Int(3)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGeneralCompareNumericPromotion(t *testing.T) {
	half, err := ParseDec("2.0")
	require.NoError(t, err)

	ok, err := GeneralCompare(OpEq, Single(Int(2)), Single(half))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGeneralCompareUntypedNode(t *testing.T) {
	n := NewElement("price", Str("10"))

	ok, err := GeneralCompare(OpLt, Single(n), Single(Int(11)))
	require.NoError(t, err)
	assert.True(t, ok, "node content is cast to the numeric operand type")

	ok, err = GeneralCompare(OpEq, Single(n), Single(Str("10")))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGeneralCompareTypeError(t *testing.T) {
	_, err := GeneralCompare(OpEq, Single(Str("a")), Single(Int(1)))
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeType))
}

func TestCmpOpSwap(t *testing.T) {
	assert.Equal(t, OpGt, OpLt.Swap())
	assert.Equal(t, OpLe, OpGe.Swap())
	assert.Equal(t, OpEq, OpEq.Swap())
}

func TestArith(t *testing.T) {
	got, err := Arith(OpAdd, Single(Int(1)), Single(Int(1)))
	require.NoError(t, err)
	assert.Equal(t, Seq{Int(2)}, got)

	got, err = Arith(OpDiv, Single(Int(6)), Single(Int(4)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TypeDecimal, got[0].Type(), "div on integers yields xs:decimal")
	assert.Equal(t, "1.5", got[0].String())

	got, err = Arith(OpIDiv, Single(Int(7)), Single(Int(2)))
	require.NoError(t, err)
	assert.Equal(t, Seq{Int(3)}, got)

	got, err = Arith(OpMul, Empty, Single(Int(2)))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArithDivisionByZero(t *testing.T) {
	for _, op := range []ArithOp{OpDiv, OpIDiv, OpMod} {
		t.Run(op.String(), func(t *testing.T) {
			_, err := Arith(op, Single(Int(1)), Single(Int(0)))
			require.Error(t, err)
			qe, ok := AsQueryError(err)
			require.True(t, ok)
			assert.Equal(t, ErrCodeDivZero, qe.Code)
			assert.Equal(t, KindDynamic, qe.Kind)
		})
	}
}

func TestArithNonNumeric(t *testing.T) {
	_, err := Arith(OpAdd, Single(Str("a")), Single(Int(1)))
	assert.True(t, HasCode(err, ErrCodeType))

	_, err = Arith(OpAdd, Ints(1, 2), Single(Int(1)))
	assert.True(t, HasCode(err, ErrCodeType))
}

func TestDeepEqual(t *testing.T) {
	d, err := ParseDec("1")
	require.NoError(t, err)

	assert.True(t, DeepEqual(Int(1), d))
	assert.False(t, DeepEqual(Int(1), Str("1")))
	assert.True(t, DeepEqual(NewElement("a", Str("x")), NewElement("a", Str("x"))),
		"deep equality ignores node identity")
	assert.False(t, DeepEqual(NewElement("a"), NewElement("b")))
}

func TestSeqString(t *testing.T) {
	assert.Equal(t, "()", Empty.String())
	assert.Equal(t, "1", Single(Int(1)).String())
	assert.Equal(t, `(1, "a""b", true())`, Seq{Int(1), Str(`a"b`), Bool(true)}.String())
	assert.Equal(t, "<a><b/>x</a>", Single(NewElement("a", NewElement("b"), Str("x"))).String())
}

func TestNodeChildElements(t *testing.T) {
	root := NewElement("r", NewElement("a"), Str("t"), NewElement("b"), NewElement("a"))
	assert.Len(t, root.ChildElements("a"), 2)
	assert.Len(t, root.ChildElements("*"), 3)

	doc := NewDocument(root)
	assert.Len(t, doc.ChildElements("r"), 1)
	assert.Equal(t, "t", doc.String())
}

func TestNodeIdentityDistinct(t *testing.T) {
	a := NewElement("a")
	b := NewElement("a")
	assert.NotEqual(t, a.ID, b.ID)
}
