package flwor

import (
	"fmt"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

// unusedVars removes let clauses whose variable is never referenced and
// drops unreferenced positional and score variables. A for clause whose
// item variable is unused only contributes its item count; its source is
// replaced with placeholder items so it need not be evaluated.
func unusedVars(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	for i := len(p.clauses) - 1; i >= 0; i-- {
		switch c := p.clauses[i].(type) {
		case *Let:
			if hasFlag(c, expr.NDT) || p.count(c.Var, i+1) != expr.Never {
				continue
			}
			if err := c.Var.CheckType(c.Expr); err != nil {
				return p, false, err
			}
			cc.Info("unusedVars", "%s", c)
			p = p.remove(i)
			changed = true
		case *For:
			nf := *c
			dirty := false
			if n := c.Expr.Size(); n > 1 && c.Var.Declared == nil && !isPlaceholder(c.Expr) &&
				!hasFlag(c, expr.NDT|expr.UPD) && p.count(c.Var, i+1) == expr.Never {
				nf.Expr = &expr.Replicate{Expr: expr.Str(""), Times: n}
				cc.Info("unusedVars", "%s only counts %d items", c.Var, n)
				dirty = true
			}
			if c.Score != nil && p.count(c.Score, i+1) == expr.Never {
				cc.Info("unusedVars", "score %s", c.Score)
				nf.Score = nil
				dirty = true
			}
			if c.Pos != nil && p.count(c.Pos, i+1) == expr.Never {
				cc.Info("unusedVars", "at %s", c.Pos)
				nf.Pos = nil
				dirty = true
			}
			if dirty {
				p = p.set(i, &nf)
				changed = true
			}
		}
	}
	return p, changed, nil
}

// isPlaceholder reports whether e is a sequence of empty strings standing
// in for the items of a for clause whose variable is unused.
func isPlaceholder(e expr.Expr) bool {
	switch e := e.(type) {
	case *expr.Replicate:
		v, ok := e.Expr.(*expr.Value)
		return ok && len(v.Seq) == 1 && v.Seq[0] == ir.Str("")
	case *expr.Value:
		for _, it := range e.Seq {
			if it != ir.Str("") {
				return false
			}
		}
		return len(e.Seq) > 0
	}
	return false
}

// cleanDeadVars removes bindings nobody reads from clauses that bind more
// than one variable: positional and score variables, order by payload and
// group by aggregates.
func cleanDeadVars(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	used := map[int64]bool{}
	mark := func(vs ...*expr.Var) {
		for _, v := range vs {
			used[v.ID] = true
		}
	}
	mark(referenced(p.ret)...)
	changed := false
	for i := len(p.clauses) - 1; i >= 0; i-- {
		c := p.clauses[i]
		if nc := clean(c, used); nc != nil {
			cc.Info("cleanDeadVars", "%s", nc)
			p = p.set(i, nc)
			c = nc
			changed = true
		}
		for _, e := range c.Exprs() {
			mark(referenced(e)...)
		}
		if o, ok := c.(*OrderBy); ok {
			mark(o.Refs...)
		}
		for _, v := range c.Vars() {
			delete(used, v.ID)
		}
	}
	return p, changed, nil
}

// clean returns c without the bindings missing from used, or nil if all of
// them are used.
func clean(c Clause, used map[int64]bool) Clause {
	switch c := c.(type) {
	case *For:
		nf := *c
		if c.Pos != nil && !used[c.Pos.ID] {
			nf.Pos = nil
		}
		if c.Score != nil && !used[c.Score.ID] {
			nf.Score = nil
		}
		if nf == *c {
			return nil
		}
		return &nf
	case *OrderBy:
		var refs []*expr.Var
		for _, r := range c.Refs {
			if used[r.ID] {
				refs = append(refs, r)
			}
		}
		if len(refs) == len(c.Refs) {
			return nil
		}
		return &OrderBy{Keys: c.Keys, Refs: refs}
	case *GroupBy:
		var (
			pre  []expr.Expr
			post []*expr.Var
		)
		for i, v := range c.Post {
			if used[v.ID] {
				pre = append(pre, c.Pre[i])
				post = append(post, v)
			}
		}
		if len(post) == len(c.Post) {
			return nil
		}
		return &GroupBy{Specs: c.Specs, Pre: pre, Post: post}
	case *Let, *Where, *Count, *Window:
		return nil
	default:
		panic(fmt.Sprintf("flwor: unknown clause %T", c))
	}
}
