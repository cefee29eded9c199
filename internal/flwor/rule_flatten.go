package flwor

import (
	"slices"

	"github.com/HGData/basex/internal/expr"
)

// flattenAnd splits `where A and B` into `where A where B`.
func flattenAnd(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	var out []Clause
	changed := false
	for _, c := range p.clauses {
		w, ok := c.(*Where)
		if !ok {
			out = append(out, c)
			continue
		}
		and, ok := w.Expr.(*expr.And)
		if !ok {
			out = append(out, c)
			continue
		}
		cc.Info("flattenAnd", "%s", w)
		for _, op := range and.Ops {
			out = append(out, &Where{Expr: op})
		}
		changed = true
	}
	if !changed {
		return p, false, nil
	}
	return p.with(out, p.ret), true, nil
}

// flattenReturn splices a return expression that is itself a for/let/where
// FLWOR into the enclosing pipeline.
func flattenReturn(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	sub, ok := p.ret.(*FLWOR)
	if len(p.clauses) == 0 || !ok || len(sub.Clauses) == 0 || !isFLW(sub.Clauses) {
		return p, false, nil
	}
	cc.Info("flattenReturn", "%s", sub.Clauses[0])
	return p.with(slices.Concat(p.clauses, sub.Clauses), sub.Return), true, nil
}

// flattenFor rewrites the leading for clause:
//
//	for $x in (for $y in E return F)  =>  for $y in E for $x in F
//	for $x in E count $c              =>  for $x at $c in E
func flattenFor(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	if len(p.clauses) == 0 {
		return p, false, nil
	}
	f, ok := p.clauses[0].(*For)
	if !ok || f.AllowEmpty {
		return p, false, nil
	}
	if sub, ok := f.Expr.(*FLWOR); ok && len(sub.Clauses) > 0 {
		cc.Info("flattenFor", "%s", f.Var)
		cs := slices.Clone(sub.Clauses)
		cs = append(cs, &For{Var: f.Var, Score: f.Score, Expr: sub.Return})
		if f.Pos != nil {
			// Positions now number the tuples of the flattened stream.
			cs = append(cs, &Count{Var: f.Pos})
		}
		return p.splice(0, cs...), true, nil
	}
	if len(p.clauses) < 2 {
		return p, false, nil
	}
	cnt, ok := p.clauses[1].(*Count)
	if !ok {
		return p, false, nil
	}
	cc.Info("flattenFor", "%s", cnt)
	if f.Pos != nil {
		return p.set(1, &Let{Var: cnt.Var, Expr: &expr.VarRef{Var: f.Pos}}), true, nil
	}
	nf := *f
	nf.Pos = cnt.Var
	return p.set(0, &nf).remove(1), true, nil
}

// unnestFLWR lifts nested FLWOR expressions out of binding clauses:
// a for over a for/let/where FLWOR is spliced in, and the leading lets of
// a FLWOR bound by a for or let are hoisted before the clause.
func unnestFLWR(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	for {
		np, ok, err := unnestOne(cc, p)
		if err != nil || !ok {
			return np, changed || ok, err
		}
		p, changed = np, true
	}
}

func unnestOne(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	for i, c := range p.clauses {
		switch c := c.(type) {
		case *For:
			sub, ok := c.Expr.(*FLWOR)
			if ok && !c.AllowEmpty && c.Pos == nil && len(sub.Clauses) > 0 && isFLW(sub.Clauses) {
				cc.Info("unnestFLWR", "%s", c.Var)
				cs := append(slices.Clone(sub.Clauses), c.withExpr(sub.Return))
				return p.splice(i, cs...), true, nil
			}
			np, ok, err := p.liftLets(cc, i, c.Expr, func(e expr.Expr) Clause { return c.withExpr(e) })
			if err != nil || ok {
				return np, true, err
			}
		case *Let:
			np, ok, err := p.liftLets(cc, i, c.Expr, func(e expr.Expr) Clause { return c.withExpr(e) })
			if err != nil || ok {
				return np, true, err
			}
		}
	}
	return p, false, nil
}

// leadingLets returns the number of let clauses cs starts with.
func leadingLets(cs []Clause) int {
	n := 0
	for n < len(cs) {
		if _, ok := cs[n].(*Let); !ok {
			break
		}
		n++
	}
	return n
}

// rest optimizes what is left of sub once its first n clauses are gone.
func rest(cc *expr.Context, sub *FLWOR, n int) (expr.Expr, error) {
	if n == len(sub.Clauses) {
		return sub.Return, nil
	}
	return (&FLWOR{Clauses: sub.Clauses[n:], Return: sub.Return}).Optimize(cc)
}

// liftLets hoists the leading lets of the FLWOR bound by clause i in front
// of it; rebuild recreates the clause around the remainder.
func (p pipeline) liftLets(cc *expr.Context, i int, source expr.Expr, rebuild func(expr.Expr) Clause) (pipeline, bool, error) {
	sub, ok := source.(*FLWOR)
	if !ok {
		return p, false, nil
	}
	n := leadingLets(sub.Clauses)
	if n == 0 {
		return p, false, nil
	}
	cc.Info("unnestFLWR", "%d let clause(s) from %s", n, p.clauses[i])
	e, err := rest(cc, sub, n)
	if err != nil {
		np, err := p.remove(i).recoverFrom(cc, i, err)
		return np, true, err
	}
	cs := append(slices.Clone(sub.Clauses[:n]), rebuild(e))
	return p.splice(i, cs...), true, nil
}

// unnestLets hoists the leading lets of a FLWOR return expression, also
// through a type check, into the enclosing pipeline.
func unnestLets(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	if len(p.clauses) == 0 {
		return p, false, nil
	}
	var tc *expr.TypeCheck
	sub, ok := p.ret.(*FLWOR)
	if !ok {
		if tc, ok = p.ret.(*expr.TypeCheck); ok {
			sub, ok = tc.Expr.(*FLWOR)
		}
	}
	if !ok {
		return p, false, nil
	}
	n := leadingLets(sub.Clauses)
	if n == 0 {
		return p, false, nil
	}
	cc.Info("unnestLets", "%d let clause(s)", n)
	np := p.with(slices.Concat(p.clauses, sub.Clauses[:n]), p.ret)
	ret, err := rest(cc, sub, n)
	if err == nil && tc != nil {
		ret, err = (&expr.TypeCheck{Expr: ret, Want: tc.Want}).Optimize(cc)
	}
	if err != nil {
		np, err = np.recoverFrom(cc, len(np.clauses), err)
		return np, true, err
	}
	return np.with(np.clauses, ret), true, nil
}
