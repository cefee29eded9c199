package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<?xml version="1.0"?>
<list id="x">
  <!-- items -->
  <item>a</item>
  <item>b</item>
</list>`))
	require.NoError(t, err)

	assert.True(t, doc.Document)
	require.Len(t, doc.Children, 1)
	assert.Equal(t, "<list><item>a</item><item>b</item></list>", doc.Markup())
	assert.Equal(t, "ab", doc.String())
}

func TestParseDocument_Errors(t *testing.T) {
	for _, src := range []string{``, `<a>`, `<a/><b/>`} {
		_, err := ParseDocument(strings.NewReader(src))
		assert.Error(t, err, "%q", src)
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.xml"), []byte("<r><item/></r>"), 0o644))

	c := &Config{Documents: map[string]string{"d.xml": "d.xml"}}
	docs, err := c.LoadDocuments(dir)
	require.NoError(t, err)
	require.Contains(t, docs, "d.xml")
	assert.Equal(t, "<r><item/></r>", docs["d.xml"].Markup())

	c.Documents["missing.xml"] = "missing.xml"
	_, err = c.LoadDocuments(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
