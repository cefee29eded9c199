package flwor

import (
	"slices"

	"github.com/HGData/basex/internal/expr"
)

// forToLet rewrites a for clause over exactly one item into lets.
func forToLet(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	for i := len(p.clauses) - 1; i >= 0; i-- {
		f, ok := p.clauses[i].(*For)
		if !ok {
			continue
		}
		lets := f.asLets()
		if lets == nil {
			continue
		}
		cc.Info("forToLet", "%s", f)
		p = p.splice(i, lets...)
		changed = true
	}
	return p, changed, nil
}

// inlineLets substitutes let-bound expressions for their references, one
// binding at a time, until no let qualifies.
func inlineLets(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	for {
		np, ok, err := inlineLet(cc, p)
		if err != nil {
			return p, false, err
		}
		if !ok {
			return p, changed, nil
		}
		p, changed = np, true
	}
}

func inlineLet(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	for i, c := range p.clauses {
		l, ok := c.(*Let)
		if !ok || hasFlag(l, expr.NDT) {
			continue
		}
		next := i + 1
		if !p.shouldInline(l, next) {
			continue
		}
		with, err := l.inlineExpr(cc)
		if err != nil {
			np, err := p.remove(i).recoverFrom(cc, i, err)
			return np, true, err
		}
		cc.Info("inlineLets", "%s", l.Var)
		np, _, err := p.remove(i).inline(cc, l.Var, with, i)
		return np, true, err
	}
	return p, false, nil
}

// shouldInline decides whether the let is worth inlining into the clauses
// from index next on: literals, plain variable aliases and expressions
// referenced at most once are; cheap single-node paths are too.
func (p pipeline) shouldInline(l *Let, next int) bool {
	e := l.Expr
	switch e.(type) {
	case *expr.Value:
		return true
	case *expr.VarRef:
		if !l.Var.ChecksType() {
			return true
		}
	case *expr.ContextItem:
		if p.inlineable(l.Var, next) {
			return true
		}
	}
	focused := !expr.Has(e, expr.CTX) || p.inlineable(l.Var, next)
	if p.count(l.Var, next) == expr.Once && !expr.Has(e, expr.CNS) && focused {
		return true
	}
	if _, ok := e.(*expr.Path); ok {
		return e.Size() == 1 && !expr.Has(e, expr.NDT|expr.CNS) && focused
	}
	return false
}

// slideLetsOut moves let clauses that do not depend on an enclosing for or
// window above it, so they are evaluated once.
func slideLetsOut(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	for c := 1; c < len(p.clauses); c++ {
		l, ok := p.clauses[c].(*Let)
		if !ok || hasFlag(l, expr.NDT|expr.CNS) {
			continue
		}
		insert := -1
		for d := c - 1; d >= 0; d-- {
			curr := p.clauses[d]
			if !skippable(curr, l) {
				break
			}
			switch curr.(type) {
			case *For, *Window:
				insert = d
			}
		}
		if insert < 0 {
			continue
		}
		cc.Info("slideLetsOut", "%s", l)
		p = p.move(c, insert)
		changed = true
	}
	return p, changed, nil
}

// mergeLastClause turns `... for $x in E return $x` and
// `... let $x := E return $x` into `... return E`.
func mergeLastClause(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	n := len(p.clauses)
	ref, ok := p.ret.(*expr.VarRef)
	if n == 0 || !ok {
		return p, false, nil
	}
	var (
		v       *expr.Var
		e       expr.Expr
		scoring bool
	)
	switch c := p.clauses[n-1].(type) {
	case *For:
		v, e, scoring = c.Var, c.Expr, c.Score != nil
	case *Let:
		v, e, scoring = c.Var, c.Expr, c.Scoring
	default:
		return p, false, nil
	}
	if v.ID != ref.Var.ID || v.ChecksType() || scoring {
		return p, false, nil
	}
	cc.Info("mergeLastClause", "%s", p.clauses[n-1])
	return p.with(slices.Clip(p.clauses[:n-1]), e), true, nil
}
