package flwor

import (
	"fmt"

	"github.com/HGData/basex/internal/expr"
)

// MergeWheres names the merge of adjacent where clauses that runs after
// the rule loop. It can be disabled like a rule.
const MergeWheres = "mergeWheres"

// IterationLimitError is returned when the rewrite rules keep changing a
// FLWOR expression after the configured number of passes.
type IterationLimitError struct {
	Limit int
	Plan  string
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("flwor: no fixed point after %d passes: %s", e.Limit, e.Plan)
}

// Optimize rewrites the FLWOR expression until no rule applies and then
// replaces it with a simpler expression where possible. The receiver is
// not modified.
func (f *FLWOR) Optimize(cc *expr.Context) (expr.Expr, error) {
	p, err := fixedPoint(cc, f.pipeline())
	if err != nil {
		return nil, err
	}
	p = mergeWheres(cc, p)
	return finish(cc, p)
}

// fixedPoint applies the rule catalogue in order until a full pass changes
// nothing.
func fixedPoint(cc *expr.Context, p pipeline) (pipeline, error) {
	for pass := 0; ; pass++ {
		if pass >= cc.MaxIterations {
			return p, &IterationLimitError{Limit: cc.MaxIterations, Plan: p.String()}
		}
		changed := false
		for _, r := range rules {
			if err := cc.Err(); err != nil {
				return p, err
			}
			if !cc.Enabled(r.name) {
				continue
			}
			np, ok, err := r.apply(cc, p)
			if err != nil {
				return p, err
			}
			if ok {
				p, changed = np, true
			}
		}
		if !changed {
			return p, nil
		}
	}
}

// mergeWheres combines adjacent where clauses into one conjunction. It
// stops at a where clause that is statically false.
func mergeWheres(cc *expr.Context, p pipeline) pipeline {
	if !cc.Enabled(MergeWheres) {
		return p
	}
	var out []Clause
	last := -1
	merged := false
	for i, c := range p.clauses {
		w, ok := c.(*Where)
		if !ok {
			out = append(out, c)
			last = -1
			continue
		}
		if w.isFalse() {
			out = append(out, p.clauses[i:]...)
			break
		}
		if last < 0 {
			out = append(out, w)
			last = len(out) - 1
			continue
		}
		prev := out[last].(*Where)
		out[last] = &Where{Expr: conjoin(prev.Expr, w.Expr)}
		merged = true
	}
	if !merged {
		return p
	}
	np := p.with(out, p.ret)
	cc.Info(MergeWheres, "%s", np)
	return np
}

func conjoin(a, b expr.Expr) expr.Expr {
	if and, ok := a.(*expr.And); ok {
		return expr.NewAnd(append(append([]expr.Expr(nil), and.Ops...), b)...)
	}
	return expr.NewAnd(a, b)
}

// finish decides the final shape of an optimized pipeline: the return
// expression alone, a conditional for a leading where, or the FLWOR
// expression after simplification.
func finish(cc *expr.Context, p pipeline) (expr.Expr, error) {
	if len(p.clauses) == 0 {
		cc.Info("simplify", "no clauses left: %s", p.ret)
		return p.ret, nil
	}
	if w, ok := p.clauses[0].(*Where); ok {
		then := p.ret
		if len(p.clauses) > 1 {
			var err error
			then, err = p.with(p.clauses[1:], p.ret).node().Optimize(cc)
			if err != nil {
				return nil, err
			}
		}
		cc.Info("simplify", "leading %s", w)
		return (&expr.If{Cond: w.Expr, Then: then, Else: expr.EmptyValue()}).Optimize(cc)
	}
	return simplify(cc, p)
}

// simplify replaces a FLWOR expression whose return expression does not
// depend on the clauses by the return value repeated once per tuple.
func simplify(cc *expr.Context, p pipeline) (expr.Expr, error) {
	node := p.node()
	for _, c := range p.clauses {
		if hasFlag(c, expr.NDT|expr.UPD) {
			return node, nil
		}
	}
	size := p.calcSize(true)
	if size.Max == 0 && !expr.Has(p.ret, expr.CNS|expr.NDT|expr.UPD) {
		cc.Info("simplify", "no results: %s", p)
		return expr.EmptyValue(), nil
	}
	for _, c := range p.clauses {
		for _, v := range c.Vars() {
			if p.ret.Count(v) != expr.Never {
				return node, nil
			}
		}
	}
	if size.Exact() == 1 {
		cc.Info("simplify", "single result: %s", p.ret)
		return p.ret, nil
	}
	tuples := p.calcSize(false)
	n := tuples.Exact()
	if n < 0 || expr.Has(p.ret, expr.CNS|expr.NDT|expr.UPD) {
		return node, nil
	}
	rep, err := expr.NewReplicate(p.ret, n)
	if err != nil {
		return nil, err
	}
	cc.Info("simplify", "%s replicated %d times", p.ret, n)
	return rep.Optimize(cc)
}
