package flwor

import (
	"fmt"
	"slices"

	"github.com/HGData/basex/internal/expr"
)

// Clause is one stage of a FLWOR pipeline.
//
// This is a sealed interface - only types in this package implement it.
// Rewrite rules switch over the concrete kinds and panic on a kind they do
// not know, so adding a clause kind means revisiting every rule.
//
// Clause kinds:
//   - For: binds a variable to each item of a sequence
//   - Let: binds a variable to a whole sequence
//   - Where: keeps the tuples whose predicate is true
//   - OrderBy: stable sort of the tuple stream
//   - GroupBy: aggregates tuples with equal keys
//   - Count: binds the ordinal of the tuple
//   - Window: binds consecutive sub-sequences of a sequence
//
// Clauses are immutable once built; rules replace them instead of
// modifying them.
type Clause interface {
	clause() // Marker method - seals interface to this package

	// Vars returns the variables the clause declares.
	Vars() []*expr.Var

	// Flags returns the side-effect flags of the clause's expressions.
	Flags() expr.Flag

	// Count returns how often the clause itself references v.
	Count(v *expr.Var) expr.Usage

	// Inlineable reports whether a context-dependent expression may be
	// substituted for v inside the clause.
	Inlineable(v *expr.Var) bool

	// Inline substitutes with for v. It returns nil, nil if v does not occur.
	Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error)

	// Compile compiles the clause's expressions and derives variable types.
	Compile(cc *expr.Context) (Clause, error)

	// Copy deep-copies the clause, declaring fresh variables through vm.
	Copy(vm expr.VarMap) Clause

	// Exprs returns the expressions owned by the clause.
	Exprs() []expr.Expr

	String() string
}

func hasFlag(c Clause, f expr.Flag) bool { return c.Flags().Has(f) }

// skippable reports whether moved may be hoisted above c without changing
// the result.
func skippable(c, moved Clause) bool {
	if hasFlag(c, expr.NDT|expr.UPD) || hasFlag(moved, expr.NDT|expr.UPD) {
		return false
	}
	for _, v := range c.Vars() {
		if moved.Count(v) != expr.Never {
			return false
		}
	}
	switch c.(type) {
	case *For, *Let, *Where, *Window:
		return true
	case *OrderBy:
		// Filtering before a sort keeps the order of the survivors.
		_, ok := moved.(*Where)
		return ok
	case *GroupBy:
		return false
	case *Count:
		_, ok := moved.(*Let)
		return ok
	default:
		panic(fmt.Sprintf("flwor: unknown clause %T", c))
	}
}

// isFLW reports whether clauses only contain for, let and where clauses.
func isFLW(clauses []Clause) bool {
	for _, c := range clauses {
		switch c.(type) {
		case *For, *Let, *Where:
		case *OrderBy, *GroupBy, *Count, *Window:
			return false
		default:
			panic(fmt.Sprintf("flwor: unknown clause %T", c))
		}
	}
	return true
}

func declared(vs ...*expr.Var) []*expr.Var {
	out := make([]*expr.Var, 0, len(vs))
	for _, v := range vs {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func containsVar(vs []*expr.Var, v *expr.Var) bool {
	return slices.ContainsFunc(vs, func(x *expr.Var) bool { return x.ID == v.ID })
}

// referenced returns the variables referenced in e, in order of first use.
func referenced(e expr.Expr) []*expr.Var {
	var out []*expr.Var
	expr.Walk(e, func(x expr.Expr) bool {
		if r, ok := x.(*expr.VarRef); ok && !containsVar(out, r.Var) {
			out = append(out, r.Var)
		}
		return true
	})
	return out
}

func typeSuffix(v *expr.Var) string {
	if v.Declared == nil {
		return ""
	}
	return " as " + v.Declared.String()
}
