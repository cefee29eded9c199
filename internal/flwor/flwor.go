package flwor

import (
	"github.com/HGData/basex/internal/expr"
)

// FLWOR is a FLWOR expression: a pipeline of clauses producing a stream of
// variable bindings and a return expression evaluated once per binding.
type FLWOR struct {
	Clauses []Clause
	Return  expr.Expr
}

var _ expr.Expr = (*FLWOR)(nil)

// New creates a FLWOR expression.
func New(ret expr.Expr, clauses ...Clause) *FLWOR {
	return &FLWOR{Clauses: clauses, Return: ret}
}

func (f *FLWOR) pipeline() pipeline {
	return pipeline{clauses: f.Clauses, ret: f.Return}
}

func (f *FLWOR) Flags() expr.Flag {
	fl := f.Return.Flags()
	for _, c := range f.Clauses {
		fl |= c.Flags()
	}
	return fl
}

func (f *FLWOR) Size() int64 {
	return f.pipeline().calcSize(true).Exact()
}

// Bounds returns the bounds on the number of tuples the clauses produce.
func (f *FLWOR) Bounds() Bounds {
	return f.pipeline().calcSize(false)
}

func (f *FLWOR) Type() expr.SeqType {
	t := f.Return.Type()
	if t.Occ == expr.OccZero {
		return t
	}
	b := f.pipeline().calcSize(true)
	if n := f.Return.Size(); n < 0 {
		// calcSize knows nothing about a return of unknown size beyond
		// its occurrence.
		lo, hi := t.Occ.Bounds()
		tuples := f.pipeline().calcSize(false)
		b = tuples.times(Bounds{Min: lo, Max: hi})
	}
	return t.WithOcc(expr.OccurrenceOf(b.Min, b.Max))
}

func (f *FLWOR) Copy(vm expr.VarMap) expr.Expr {
	cs := make([]Clause, len(f.Clauses))
	for i, c := range f.Clauses {
		cs[i] = c.Copy(vm)
	}
	return &FLWOR{Clauses: cs, Return: f.Return.Copy(vm)}
}

func (f *FLWOR) Count(v *expr.Var) expr.Usage {
	return f.pipeline().count(v, 0)
}

// Inline substitutes with for v and re-optimizes the expression.
func (f *FLWOR) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (expr.Expr, error) {
	p, changed, err := f.pipeline().inline(cc, v, with, 0)
	if err != nil || !changed {
		return nil, err
	}
	return p.node().Optimize(cc)
}

func (f *FLWOR) Inlineable(v *expr.Var) bool {
	return f.pipeline().inlineable(v, 0)
}

func (f *FLWOR) Children() []expr.Expr {
	var out []expr.Expr
	for _, c := range f.Clauses {
		out = append(out, c.Exprs()...)
	}
	return append(out, f.Return)
}

func (f *FLWOR) String() string {
	return f.pipeline().String()
}
