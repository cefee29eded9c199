package flwor

import (
	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

// Where keeps the tuples for which the effective boolean value of Expr is
// true.
type Where struct {
	Expr expr.Expr
}

func (*Where) clause() {}

func (w *Where) Vars() []*expr.Var            { return nil }
func (w *Where) Flags() expr.Flag             { return w.Expr.Flags() }
func (w *Where) Count(v *expr.Var) expr.Usage { return w.Expr.Count(v) }
func (w *Where) Inlineable(v *expr.Var) bool  { return w.Expr.Inlineable(v) }
func (w *Where) Exprs() []expr.Expr           { return []expr.Expr{w.Expr} }
func (w *Where) Copy(vm expr.VarMap) Clause   { return &Where{Expr: w.Expr.Copy(vm)} }
func (w *Where) String() string               { return "where " + w.Expr.String() }

func (w *Where) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error) {
	e, err := w.Expr.Inline(v, with, cc)
	if err != nil || e == nil {
		return nil, err
	}
	return &Where{Expr: e}, nil
}

func (w *Where) Compile(cc *expr.Context) (Clause, error) {
	e, err := w.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}
	return &Where{Expr: e}, nil
}

// constant returns the truth value of a literal predicate.
func (w *Where) constant() (value, ok bool, err error) {
	v, isValue := w.Expr.(*expr.Value)
	if !isValue {
		return false, false, nil
	}
	b, err := ir.EBV(v.Seq)
	if err != nil {
		return false, false, err
	}
	return b, true, nil
}

// isFalse reports whether the predicate is statically false.
func (w *Where) isFalse() bool {
	b, ok, err := w.constant()
	return err == nil && ok && !b
}
