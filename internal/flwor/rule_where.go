package flwor

import (
	"github.com/HGData/basex/internal/expr"
)

// optimizeWhere drops constant true predicates, hoists where clauses as
// far up as their variables allow and folds them into the source of the
// for clause they filter.
func optimizeWhere(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	folded := map[*For]bool{}
	for i := 0; i < len(p.clauses); i++ {
		w, ok := p.clauses[i].(*Where)
		if !ok || hasFlag(w, expr.NDT) {
			continue
		}
		b, isConst, err := w.constant()
		if err != nil {
			np, err := p.remove(i).recoverFrom(cc, i, err)
			return np, true, err
		}
		if isConst {
			if !b {
				break
			}
			cc.Info("optimizeWhere", "removed %s", w)
			p = p.remove(i)
			i--
			changed = true
			continue
		}

		insert := -1
		for j := i - 1; j >= 0; j-- {
			curr := p.clauses[j]
			if !skippable(curr, w) {
				break
			}
			if _, isWhere := curr.(*Where); !isWhere {
				insert = j
			}
		}
		at := i
		if insert >= 0 {
			cc.Info("optimizeWhere", "hoisted %s", w)
			p = p.move(i, insert)
			at = insert
			changed = true
		}

		for j := at - 1; j >= 0; j-- {
			if _, isWhere := p.clauses[j].(*Where); isWhere {
				continue
			}
			f, isFor := p.clauses[j].(*For)
			if !isFor {
				break
			}
			nf, err := f.toPredicate(cc, w.Expr)
			if err != nil {
				np, err := p.remove(at).recoverFrom(cc, at, err)
				return np, true, err
			}
			if nf != nil {
				cc.Info("optimizeWhere", "%s folded into %s", w, f.Var)
				delete(folded, f)
				folded[nf] = true
				p = p.set(j, nf).remove(at)
				i--
				changed = true
			}
			break
		}
	}

	for i := 0; i < len(p.clauses); i++ {
		f, ok := p.clauses[i].(*For)
		if !ok || !folded[f] {
			continue
		}
		np, err := p.optimizeFor(cc, i)
		if err != nil {
			return p, false, err
		}
		if len(np.clauses) < len(p.clauses) {
			return np, true, nil
		}
		p = np
	}
	return p, changed, nil
}

// optimizePos turns a comparison of a positional variable with an integer
// range into a positional predicate on the for source:
//
//	for $x at $p in E where $p = 2  =>  for $x in E[2]
func optimizePos(cc *expr.Context, p pipeline) (pipeline, bool, error) {
	changed := false
	for c := 0; c < len(p.clauses); c++ {
		f, ok := p.clauses[c].(*For)
		if !ok || f.Pos == nil || f.AllowEmpty {
			continue
		}
		i, cmp := p.positionalWhere(c, f.Pos)
		if i < 0 {
			continue
		}
		np := p.remove(i)
		if np.count(f.Pos, c+1) != expr.Never {
			continue
		}
		_, lo, hi, _ := cmp.IntRange()
		cc.Info("optimizePos", "%s", cmp)
		nf := f.withExpr(expr.NewFilter(f.Expr, &expr.PosRange{Lo: lo, Hi: hi}))
		nf.Pos = nil
		np, err := np.set(c, nf).optimizeFor(cc, c)
		if err != nil {
			return p, false, err
		}
		p = np
		changed = true
	}
	return p, changed, nil
}

// positionalWhere finds the first where clause after the for at index c
// that compares pos with an integer range. Only for, let and where clauses
// free of non-determinism may separate the two.
func (p pipeline) positionalWhere(c int, pos *expr.Var) (int, *expr.Cmp) {
	for i := c + 1; i < len(p.clauses); i++ {
		switch cl := p.clauses[i].(type) {
		case *Where:
			cmp, ok := cl.Expr.(*expr.Cmp)
			if !ok {
				continue
			}
			if v, _, _, ok := cmp.IntRange(); ok && v.ID == pos.ID {
				return i, cmp
			}
		case *For, *Let:
			if hasFlag(cl, expr.NDT) {
				return -1, nil
			}
		default:
			return -1, nil
		}
	}
	return -1, nil
}
