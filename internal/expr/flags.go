package expr

import "strings"

// Flag is a set of side-effect properties of an expression. Flags are
// monotone: a parent carries a flag iff it or any child does (except where a
// node binds the focus for its children, see Filter).
type Flag uint8

const (
	// NDT marks non-deterministic expressions (random(), error(), Raise).
	NDT Flag = 1 << iota
	// UPD marks updating expressions (put()).
	UPD
	// CNS marks expressions that construct new nodes.
	CNS
	// CTX marks expressions that read the context item, position or size.
	CTX
)

// Has reports whether any of the given flags is set.
func (f Flag) Has(o Flag) bool { return f&o != 0 }

func (f Flag) String() string {
	var parts []string
	for _, x := range []struct {
		f    Flag
		name string
	}{{NDT, "NDT"}, {UPD, "UPD"}, {CNS, "CNS"}, {CTX, "CTX"}} {
		if f&x.f != 0 {
			parts = append(parts, x.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// Has reports whether e carries any of the given flags.
func Has(e Expr, f Flag) bool { return e.Flags().Has(f) }

// Usage classifies how often a variable is referenced.
type Usage uint8

const (
	// Never: the variable is not referenced.
	Never Usage = iota
	// Once: referenced exactly once, outside any loop.
	Once
	// Multiple: referenced more than once, inside a loop, or unknown.
	Multiple
)

func (u Usage) String() string {
	switch u {
	case Never:
		return "never"
	case Once:
		return "once"
	default:
		return "multiple"
	}
}

// Plus combines the usage of two sibling occurrences.
func (u Usage) Plus(o Usage) Usage {
	switch {
	case u == Never:
		return o
	case o == Never:
		return u
	default:
		return Multiple
	}
}

// Times scales a usage by an evaluation count. A count of -1 means
// unbounded.
func (u Usage) Times(n int64) Usage {
	switch {
	case n == 0 || u == Never:
		return Never
	case n == 1:
		return u
	default:
		return Multiple
	}
}
