package expr

import (
	"slices"
	"strings"

	"github.com/HGData/basex/internal/ir"
)

// Expr is an expression node.
//
// The interface is open so that the FLWOR node (package flwor) can take
// part in the tree; every implementation must honour the no-mutation
// contract described in the package documentation.
type Expr interface {
	// Flags returns the side-effect flags of the expression and its children.
	Flags() Flag

	// Size returns the exact number of result items, or -1 if unknown.
	Size() int64

	// Type returns the static type.
	Type() SeqType

	// Compile compiles the children, then optimizes the node. It may fail
	// with the error that constant folding raised.
	Compile(cc *Context) (Expr, error)

	// Optimize simplifies the node itself, assuming compiled children.
	Optimize(cc *Context) (Expr, error)

	// Copy deep-copies the node; variables declared inside the copied
	// subtree are replaced through vm.
	Copy(vm VarMap) Expr

	// Count returns how often v is referenced, scaled by loop multiplicity.
	Count(v *Var) Usage

	// Inline substitutes with for every reference to v and re-optimizes.
	// It returns nil, nil if v does not occur.
	Inline(v *Var, with Expr, cc *Context) (Expr, error)

	// Inlineable reports whether a context-dependent expression may be
	// substituted for v: false if v is referenced where the focus differs
	// from the focus of this node.
	Inlineable(v *Var) bool

	// Children returns the direct sub-expressions.
	Children() []Expr

	// Eval evaluates the expression.
	Eval(env *Env) (ir.Seq, error)

	// String renders the expression in query syntax.
	String() string
}

// sideEffects are the flags that forbid pre-evaluation.
const sideEffects = NDT | UPD | CNS | CTX

// Walk calls fn for e and every descendant in depth-first order until fn
// returns false.
func Walk(e Expr, fn func(Expr) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children() {
		if c != nil && !Walk(c, fn) {
			return false
		}
	}
	return true
}

// HasVarRefs reports whether e contains any variable reference.
func HasVarRefs(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		if _, ok := x.(*VarRef); ok {
			found = true
		}
		return !found
	})
	return found
}

// closed reports whether e can be evaluated without variables or any
// dynamic context other than the focus.
func closed(e Expr) bool {
	ok := true
	Walk(e, func(x Expr) bool {
		switch c := x.(type) {
		case *VarRef:
			ok = false
		case *Call:
			if def, known := builtins[c.Name]; !known || def.env {
				ok = false
			}
		}
		return ok
	})
	return ok
}

// IsValue reports whether e is a literal value.
func IsValue(e Expr) bool {
	_, ok := e.(*Value)
	return ok
}

// fold pre-evaluates e when it is free of side effects and all its inputs
// are values. An evaluation error is returned unchanged: at compile time it
// means the expression fails whenever it is reached.
func fold(cc *Context, e Expr, inputs ...Expr) (Expr, error) {
	if e.Flags().Has(sideEffects) {
		return e, nil
	}
	for _, in := range inputs {
		if !IsValue(in) {
			return e, nil
		}
	}
	s, err := e.Eval(cc.env())
	if err != nil {
		return nil, err
	}
	return NewValue(s), nil
}

func flagsOf(es ...Expr) Flag {
	var f Flag
	for _, e := range es {
		if e != nil {
			f |= e.Flags()
		}
	}
	return f
}

func countOf(v *Var, es ...Expr) Usage {
	u := Never
	for _, e := range es {
		if e != nil {
			u = u.Plus(e.Count(v))
		}
	}
	return u
}

func inlineableOf(v *Var, es ...Expr) bool {
	for _, e := range es {
		if e != nil && !e.Inlineable(v) {
			return false
		}
	}
	return true
}

func copyOf(vm VarMap, es []Expr) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = e.Copy(vm)
	}
	return out
}

func compileOf(cc *Context, es []Expr) ([]Expr, error) {
	out := make([]Expr, len(es))
	for i, e := range es {
		c, err := e.Compile(cc)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// inlineOf inlines into each expression. It returns nil if none changed;
// otherwise a new slice, leaving es untouched.
func inlineOf(cc *Context, v *Var, with Expr, es []Expr) ([]Expr, error) {
	var out []Expr
	for i, e := range es {
		ne, err := e.Inline(v, with, cc)
		if err != nil {
			return nil, err
		}
		if ne != nil {
			if out == nil {
				out = slices.Clone(es)
			}
			out[i] = ne
		}
	}
	return out, nil
}

// InlineInto is the VarRef substitution used by all nodes: a value is shared,
// anything else is deep-copied per use site with fresh variables.
func InlineInto(with Expr, cc *Context) (Expr, error) {
	if IsValue(with) {
		return with, nil
	}
	return with.Copy(VarMap{}).Optimize(cc)
}

func evalOne(env *Env, e Expr) (ir.Item, error) {
	s, err := e.Eval(env)
	if err != nil {
		return nil, err
	}
	if len(s) != 1 {
		return nil, ir.Errorf(ir.ErrCodeType, "expected exactly one item, got %d", len(s))
	}
	return s[0], nil
}

// paren renders e, wrapped in parentheses unless it is a primary expression.
func paren(e Expr) string {
	switch x := e.(type) {
	case *Value:
		return x.String()
	case *VarRef, *ContextItem, *Call, *Filter, *Path, *Elem, *List:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}

func joinExprs(es []Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = paren(e)
	}
	return strings.Join(parts, sep)
}
