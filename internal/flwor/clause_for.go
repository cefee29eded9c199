package flwor

import (
	"fmt"
	"strings"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

// For binds Var to each item of Expr in turn.
//
// Pos, if set, is bound to the 1-based position of the item and Score to
// its score. With AllowEmpty an empty source yields one tuple in which
// Var is bound to the empty sequence and Pos to 0.
type For struct {
	Var        *expr.Var
	Pos        *expr.Var
	Score      *expr.Var
	Expr       expr.Expr
	AllowEmpty bool
}

func (*For) clause() {}

func (f *For) Vars() []*expr.Var            { return declared(f.Var, f.Pos, f.Score) }
func (f *For) Flags() expr.Flag             { return f.Expr.Flags() }
func (f *For) Count(v *expr.Var) expr.Usage { return f.Expr.Count(v) }
func (f *For) Inlineable(v *expr.Var) bool  { return f.Expr.Inlineable(v) }
func (f *For) Exprs() []expr.Expr           { return []expr.Expr{f.Expr} }

func (f *For) withExpr(e expr.Expr) *For {
	nf := *f
	nf.Expr = e
	return &nf
}

func (f *For) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error) {
	e, err := f.Expr.Inline(v, with, cc)
	if err != nil || e == nil {
		return nil, err
	}
	return f.withExpr(e), nil
}

func (f *For) Compile(cc *expr.Context) (Clause, error) {
	e, err := f.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}
	nf := f.withExpr(e)
	if err := nf.refine(); err != nil {
		return nil, err
	}
	return nf, nil
}

// refine derives the static types of the bound variables from the source.
// A literal source with an item that violates the declared type is a
// static type error.
func (f *For) refine() error {
	if v, ok := f.Expr.(*expr.Value); ok && f.Var.Declared != nil {
		for _, it := range v.Seq {
			if !f.Var.Declared.Matches(ir.Single(it)) {
				return ir.TypeErrorf("%s%s cannot be bound to %s", f.Var, typeSuffix(f.Var), it.Type())
			}
		}
	}
	occ := expr.OccOne
	if f.AllowEmpty {
		occ = expr.OccZeroOrOne
	}
	f.Var.Refine(f.Expr.Type().WithOcc(occ))
	if f.Pos != nil {
		f.Pos.Refine(expr.IntegerOne)
	}
	if f.Score != nil {
		f.Score.Refine(expr.DecimalOne)
	}
	return nil
}

func (f *For) Copy(vm expr.VarMap) Clause {
	e := f.Expr.Copy(vm)
	return &For{Var: vm.Copy(f.Var), Pos: vm.Copy(f.Pos), Score: vm.Copy(f.Score), Expr: e, AllowEmpty: f.AllowEmpty}
}

func (f *For) String() string {
	var b strings.Builder
	b.WriteString("for " + f.Var.String() + typeSuffix(f.Var))
	if f.AllowEmpty {
		b.WriteString(" allowing empty")
	}
	if f.Pos != nil {
		b.WriteString(" at " + f.Pos.String())
	}
	if f.Score != nil {
		b.WriteString(" score " + f.Score.String())
	}
	b.WriteString(" in " + f.Expr.String())
	return b.String()
}

// asLets rewrites a for over exactly one item into let clauses. It returns
// nil if the source may yield any other number of items.
func (f *For) asLets() []Clause {
	if f.Expr.Size() != 1 && !f.Expr.Type().One() {
		return nil
	}
	out := []Clause{&Let{Var: f.Var, Expr: f.Expr}}
	if f.Pos != nil {
		out = append(out, &Let{Var: f.Pos, Expr: expr.Int(1)})
	}
	if f.Score != nil {
		out = append(out, &Let{Var: f.Score, Expr: f.Expr.Copy(expr.VarMap{}), Scoring: true})
	}
	return out
}

// toPredicate folds cond into the source as a predicate on the context
// item. It returns nil if cond cannot be expressed that way.
func (f *For) toPredicate(cc *expr.Context, cond expr.Expr) (*For, error) {
	if f.Pos != nil || f.Score != nil || f.AllowEmpty {
		return nil, nil
	}
	if expr.Has(cond, expr.CTX|expr.NDT) || cond.Count(f.Var) == expr.Never || !cond.Inlineable(f.Var) {
		return nil, nil
	}
	pred, err := cond.Inline(f.Var, &expr.ContextItem{}, cc)
	if err != nil || pred == nil {
		return nil, err
	}
	// A numeric predicate would select by position.
	if pred.Type().Numeric() {
		pred = &expr.Call{Name: "boolean", Args: []expr.Expr{pred}}
	}
	return f.withExpr(expr.NewFilter(f.Expr, pred)), nil
}

// Window binds Var to consecutive sub-sequences of Expr of at most Size
// items. Tumbling windows do not overlap; a sliding window starts at every
// item.
type Window struct {
	Var     *expr.Var
	Expr    expr.Expr
	Sliding bool
	Size    int64
}

// NewWindow creates a window clause. The size must be positive.
func NewWindow(v *expr.Var, e expr.Expr, sliding bool, size int64) (*Window, error) {
	if size <= 0 {
		return nil, ir.RangeErrorf("window size must be positive: %d", size)
	}
	return &Window{Var: v, Expr: e, Sliding: sliding, Size: size}, nil
}

func (*Window) clause() {}

func (w *Window) Vars() []*expr.Var            { return declared(w.Var) }
func (w *Window) Flags() expr.Flag             { return w.Expr.Flags() }
func (w *Window) Count(v *expr.Var) expr.Usage { return w.Expr.Count(v) }
func (w *Window) Inlineable(v *expr.Var) bool  { return w.Expr.Inlineable(v) }
func (w *Window) Exprs() []expr.Expr           { return []expr.Expr{w.Expr} }

func (w *Window) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error) {
	e, err := w.Expr.Inline(v, with, cc)
	if err != nil || e == nil {
		return nil, err
	}
	nw := *w
	nw.Expr = e
	return &nw, nil
}

func (w *Window) Compile(cc *expr.Context) (Clause, error) {
	e, err := w.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}
	nw := *w
	nw.Expr = e
	nw.Var.Refine(e.Type().WithOcc(expr.OccOneOrMore))
	return &nw, nil
}

func (w *Window) Copy(vm expr.VarMap) Clause {
	e := w.Expr.Copy(vm)
	return &Window{Var: vm.Copy(w.Var), Expr: e, Sliding: w.Sliding, Size: w.Size}
}

func (w *Window) kind() string {
	if w.Sliding {
		return "sliding"
	}
	return "tumbling"
}

func (w *Window) String() string {
	return fmt.Sprintf("for %s window %s in %s size %d", w.kind(), w.Var, w.Expr, w.Size)
}

// windows returns the number of windows over n items, or -1 if n is
// unknown.
func (w *Window) windows(n int64) int64 {
	switch {
	case n < 0:
		return -1
	case w.Sliding:
		return n
	}
	return (n + w.Size - 1) / w.Size
}
