package flwor

import (
	"slices"

	"github.com/HGData/basex/internal/expr"
)

// Compile compiles the clauses in order and then the return expression.
// A clause or return expression that fails is handed to recovery: behind
// a clause that may filter all tuples the failure is deferred to run
// time. The compiled pipeline is then optimized.
func (f *FLWOR) Compile(cc *expr.Context) (expr.Expr, error) {
	p := f.pipeline()
	p = p.with(slices.Clone(p.clauses), p.ret)
	failed := false
	for i, c := range p.clauses {
		nc, err := c.Compile(cc)
		if err != nil {
			p, err = p.remove(i).recoverFrom(cc, i, err)
			if err != nil {
				return nil, err
			}
			failed = true
			break
		}
		p.clauses[i] = nc
	}
	if !failed {
		ret, err := p.ret.Compile(cc)
		if err != nil {
			if p, err = p.recoverFrom(cc, len(p.clauses), err); err != nil {
				return nil, err
			}
		} else {
			p = p.with(p.clauses, ret)
		}
	}
	return p.node().Optimize(cc)
}
