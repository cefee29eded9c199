package flwor

import (
	"slices"
	"strings"

	"github.com/HGData/basex/internal/expr"
)

// pipeline is the owned state a rewrite rule works on: the clause list and
// the return expression. Rules never modify the slice they were given;
// every change goes through the copying helpers below.
type pipeline struct {
	clauses []Clause
	ret     expr.Expr
}

func (p pipeline) with(clauses []Clause, ret expr.Expr) pipeline {
	return pipeline{clauses: clauses, ret: ret}
}

// set returns p with clause i replaced.
func (p pipeline) set(i int, c Clause) pipeline {
	cs := slices.Clone(p.clauses)
	cs[i] = c
	return p.with(cs, p.ret)
}

// remove returns p without clause i.
func (p pipeline) remove(i int) pipeline {
	return p.with(slices.Delete(slices.Clone(p.clauses), i, i+1), p.ret)
}

// splice returns p with clause i replaced by cs.
func (p pipeline) splice(i int, cs ...Clause) pipeline {
	out := make([]Clause, 0, len(p.clauses)-1+len(cs))
	out = append(out, p.clauses[:i]...)
	out = append(out, cs...)
	out = append(out, p.clauses[i+1:]...)
	return p.with(out, p.ret)
}

// move returns p with clause from moved to index to (to < from).
func (p pipeline) move(from, to int) pipeline {
	cs := slices.Clone(p.clauses)
	c := cs[from]
	copy(cs[to+1:from+1], cs[to:from])
	cs[to] = c
	return p.with(cs, p.ret)
}

// node wraps the pipeline into a FLWOR expression.
func (p pipeline) node() *FLWOR {
	return &FLWOR{Clauses: p.clauses, Return: p.ret}
}

func (p pipeline) String() string {
	var b strings.Builder
	for _, c := range p.clauses {
		b.WriteString(c.String())
		b.WriteByte(' ')
	}
	b.WriteString("return ")
	b.WriteString(p.ret.String())
	return b.String()
}

// inline substitutes with for v in the clauses from index from on and in
// the return expression. A failure is handed to recovery, which decides
// whether it can be deferred.
func (p pipeline) inline(cc *expr.Context, v *expr.Var, with expr.Expr, from int) (pipeline, bool, error) {
	changed := false
	for i := from; i < len(p.clauses); i++ {
		c, err := p.clauses[i].Inline(v, with, cc)
		if err != nil {
			np, err := p.remove(i).recoverFrom(cc, i, err)
			return np, true, err
		}
		if c != nil {
			p = p.set(i, c)
			changed = true
		}
	}
	ret, err := p.ret.Inline(v, with, cc)
	if err != nil {
		np, err := p.recoverFrom(cc, len(p.clauses), err)
		return np, true, err
	}
	if ret != nil {
		p = p.with(p.clauses, ret)
		changed = true
	}
	return p, changed, nil
}

// optimizeFor re-optimizes the source of the for clause at index i,
// routing a failure through recovery.
func (p pipeline) optimizeFor(cc *expr.Context, i int) (pipeline, error) {
	f := p.clauses[i].(*For)
	e, err := f.Expr.Optimize(cc)
	if err != nil {
		return p.remove(i).recoverFrom(cc, i, err)
	}
	return p.set(i, f.withExpr(e)), nil
}
