package ir

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Item is a sealed interface representing a single XDM item.
// Only Int, Dec, Str, Bool and *Node implement it.
//
// Items are immutable once created. A Seq of items may therefore be shared
// freely between expression trees (literals reused after inlining, folded
// constants, bound variable values).
type Item interface {
	item() // Sealed - only these types implement it

	// Type returns the dynamic item type.
	Type() ItemType

	// String returns the lexical (string) value of the item.
	String() string
}

// ItemType enumerates the item types of the query subset.
type ItemType int

const (
	// TypeItem is the supertype of all items (item()).
	TypeItem ItemType = iota
	// TypeInteger is xs:integer.
	TypeInteger
	// TypeDecimal is xs:decimal; xs:integer is a subtype of it.
	TypeDecimal
	// TypeString is xs:string.
	TypeString
	// TypeBoolean is xs:boolean.
	TypeBoolean
	// TypeNode is node() (elements and documents).
	TypeNode
)

// String returns the sequence type name of the item type.
func (t ItemType) String() string {
	switch t {
	case TypeInteger:
		return "xs:integer"
	case TypeDecimal:
		return "xs:decimal"
	case TypeString:
		return "xs:string"
	case TypeBoolean:
		return "xs:boolean"
	case TypeNode:
		return "node()"
	default:
		return "item()"
	}
}

// InstanceOf reports whether values of type t are instances of super.
func (t ItemType) InstanceOf(super ItemType) bool {
	switch {
	case super == TypeItem, t == super:
		return true
	case t == TypeInteger && super == TypeDecimal:
		return true
	default:
		return false
	}
}

// Int represents an xs:integer item.
type Int int64

func (Int) item() {}

// Type implements Item.
func (Int) Type() ItemType { return TypeInteger }

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Dec represents an xs:decimal item.
// Arbitrary precision; never a binary float.
type Dec struct {
	decimal.Decimal
}

func (Dec) item() {}

// Type implements Item.
func (Dec) Type() ItemType { return TypeDecimal }

func (d Dec) String() string { return d.Decimal.String() }

// NewDec creates a decimal item from a decimal value.
func NewDec(d decimal.Decimal) Dec {
	return Dec{Decimal: d}
}

// ParseDec parses a decimal literal such as "1.5".
func ParseDec(s string) (Dec, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Dec{}, &QueryError{Code: ErrCodeCast, Kind: KindDynamic, Message: fmt.Sprintf("invalid decimal %q", s)}
	}
	return Dec{Decimal: d}, nil
}

// Str represents an xs:string item.
type Str string

func (Str) item() {}

// Type implements Item.
func (Str) Type() ItemType { return TypeString }

func (s Str) String() string { return string(s) }

// Bool represents an xs:boolean item.
type Bool bool

func (Bool) item() {}

// Type implements Item.
func (Bool) Type() ItemType { return TypeBoolean }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// nodeIDs hands out node identities. Every constructed node is distinct,
// which is why node construction must never be duplicated or merged by
// the optimizer.
var nodeIDs atomic.Int64

// Node is an element or document node.
//
// Children holds child nodes and atomic text content in document order.
// A document node has exactly one element child in the subset (its root).
type Node struct {
	ID       int64
	Name     string
	Document bool
	Children []Item
}

func (*Node) item() {}

// Type implements Item.
func (*Node) Type() ItemType { return TypeNode }

// NewElement creates an element node with a fresh identity.
func NewElement(name string, children ...Item) *Node {
	return &Node{ID: nodeIDs.Add(1), Name: name, Children: children}
}

// NewDocument creates a document node wrapping a single root element.
func NewDocument(root *Node) *Node {
	return &Node{ID: nodeIDs.Add(1), Document: true, Children: []Item{root}}
}

// String returns the string value of the node: the concatenation of all
// descendant text content in document order.
func (n *Node) String() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	for _, c := range n.Children {
		if child, ok := c.(*Node); ok {
			child.writeText(b)
			continue
		}
		b.WriteString(c.String())
	}
}

// ChildElements returns the element children with the given name.
// The name "*" matches any element.
func (n *Node) ChildElements(name string) []Item {
	var out []Item
	for _, c := range n.Children {
		if child, ok := c.(*Node); ok && !child.Document && (name == "*" || child.Name == name) {
			out = append(out, child)
		}
	}
	return out
}

// Markup renders the node as XML-ish markup for diagnostics and output.
func (n *Node) Markup() string {
	var b strings.Builder
	n.writeMarkup(&b)
	return b.String()
}

func (n *Node) writeMarkup(b *strings.Builder) {
	if n.Document {
		for _, c := range n.Children {
			if child, ok := c.(*Node); ok {
				child.writeMarkup(b)
			}
		}
		return
	}
	if len(n.Children) == 0 {
		fmt.Fprintf(b, "<%s/>", n.Name)
		return
	}
	fmt.Fprintf(b, "<%s>", n.Name)
	for _, c := range n.Children {
		if child, ok := c.(*Node); ok {
			child.writeMarkup(b)
			continue
		}
		b.WriteString(c.String())
	}
	fmt.Fprintf(b, "</%s>", n.Name)
}
