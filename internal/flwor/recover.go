package flwor

import (
	"fmt"

	"github.com/HGData/basex/internal/expr"
)

// recoverFrom handles a compile-time failure of the clause that stood at
// index i, which has already been removed (i == len(clauses) stands for
// the return expression).
//
// If a for, window or where clause precedes the failure, the pipeline may
// produce no tuple and the failing code may never run: the clauses after
// that guard are dropped and the return expression becomes a deferred
// failure. Otherwise the failure is unconditional and err is returned.
func (p pipeline) recoverFrom(cc *expr.Context, i int, err error) (pipeline, error) {
	for j := i - 1; j >= 0; j-- {
		switch p.clauses[j].(type) {
		case *For, *Window, *Where:
		case *Let, *OrderBy, *GroupBy, *Count:
			continue
		default:
			panic(fmt.Sprintf("flwor: unknown clause %T", p.clauses[j]))
		}
		ret, rerr := cc.Error(err, p.ret)
		if rerr != nil {
			return p, rerr
		}
		cc.Info("recover", "%s guards failure: %v", p.clauses[j], err)
		return p.with(p.clauses[:j+1:j+1], ret), nil
	}
	return p, err
}
