package flwor

import (
	"github.com/HGData/basex/internal/expr"
)

// count returns how often v is referenced by the clauses from index from
// on and by the return expression. A reference behind a clause that may
// produce more than one tuple counts as used many times. A reference
// behind a clause that produces no tuple still counts: the clauses that
// bind v must stay in place for it.
func (p pipeline) count(v *expr.Var, from int) expr.Usage {
	b := one
	u := expr.Never
	for _, c := range p.clauses[from:] {
		u = u.Plus(c.Count(v).Times(perTuple(b)))
		if u == expr.Multiple {
			return u
		}
		b = estimate(c, b)
	}
	return u.Plus(p.ret.Count(v).Times(perTuple(b)))
}

// perTuple is the factor a reference evaluated once per tuple of b is
// scaled by.
func perTuple(b Bounds) int64 {
	if b.Max == 0 {
		return 1
	}
	return b.Max
}

// inlineable reports whether every clause from index from on and the
// return expression tolerate substituting a context-dependent expression
// for v.
func (p pipeline) inlineable(v *expr.Var, from int) bool {
	for _, c := range p.clauses[from:] {
		if !c.Inlineable(v) {
			return false
		}
	}
	return p.ret.Inlineable(v)
}
