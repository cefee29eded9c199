package ir

import (
	"strings"
)

// Seq is an ordered sequence of items. The empty sequence is a nil or
// zero-length Seq; a single item and the singleton sequence containing it
// are the same value.
type Seq []Item

// Empty is the empty sequence.
var Empty = Seq(nil)

// Single returns the singleton sequence containing it.
func Single(it Item) Seq {
	return Seq{it}
}

// Ints returns the sequence of integers from lo to hi inclusive.
// Returns the empty sequence when lo > hi.
func Ints(lo, hi int64) Seq {
	if lo > hi {
		return Empty
	}
	out := make(Seq, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, Int(i))
	}
	return out
}

// Concat concatenates sequences.
func Concat(seqs ...Seq) Seq {
	n := 0
	for _, s := range seqs {
		n += len(s)
	}
	if n == 0 {
		return Empty
	}
	out := make(Seq, 0, n)
	for _, s := range seqs {
		out = append(out, s...)
	}
	return out
}

// String renders the sequence the way the query serializer would, e.g.
// (1, "a", true()) for a multi-item sequence and () for the empty one.
func (s Seq) String() string {
	switch len(s) {
	case 0:
		return "()"
	case 1:
		return Literal(s[0])
	}
	parts := make([]string, len(s))
	for i, it := range s {
		parts[i] = Literal(it)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Literal renders an item as a query literal.
func Literal(it Item) string {
	switch v := it.(type) {
	case Str:
		return `"` + strings.ReplaceAll(string(v), `"`, `""`) + `"`
	case Bool:
		return v.String() + "()"
	case Dec:
		s := v.String()
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case *Node:
		return v.Markup()
	default:
		return it.String()
	}
}

// Equal reports whether two sequences are deep-equal: same length and
// pairwise deep-equal items. Nodes compare by name and content, not identity.
func (s Seq) Equal(o Seq) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !DeepEqual(s[i], o[i]) {
			return false
		}
	}
	return true
}
