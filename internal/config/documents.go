package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/HGData/basex/internal/ir"
)

// ParseDocument reads an XML document into a document node. Attributes,
// comments and processing instructions are dropped; whitespace-only text
// between elements is ignored.
func ParseDocument(r io.Reader) (*ir.Node, error) {
	dec := xml.NewDecoder(r)
	var stack []*ir.Node
	var root *ir.Node

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("second root element <%s>", t.Name.Local)
			}
			n := ir.NewElement(t.Name.Local)
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, ir.Str(text))
		}
	}

	if root == nil {
		return nil, errors.New("no root element")
	}
	return ir.NewDocument(root), nil
}

// LoadDocuments parses every document c names. Relative paths are
// resolved against dir.
func (c *Config) LoadDocuments(dir string) (map[string]*ir.Node, error) {
	docs := make(map[string]*ir.Node, len(c.Documents))
	for uri, path := range c.Documents {
		f, err := os.Open(Resolve(dir, path))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", uri, err)
		}
		doc, err := ParseDocument(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", uri, err)
		}
		docs[uri] = doc
	}
	return docs, nil
}
