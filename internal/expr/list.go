package expr

import (
	"fmt"

	"github.com/HGData/basex/internal/ir"
)

// List is the comma operator: the concatenation of its operands.
type List struct {
	Items []Expr
}

func (l *List) Flags() Flag { return flagsOf(l.Items...) }

func (l *List) Size() int64 {
	var n int64
	for _, e := range l.Items {
		s := e.Size()
		if s < 0 {
			return -1
		}
		n += s
	}
	return n
}

func (l *List) Type() SeqType {
	t := EmptySeq
	for _, e := range l.Items {
		t = t.Union(e.Type())
	}
	return t
}

func (l *List) Compile(cc *Context) (Expr, error) {
	items, err := compileOf(cc, l.Items)
	if err != nil {
		return nil, err
	}
	return (&List{Items: items}).Optimize(cc)
}

// Optimize flattens nested lists, drops empty operands and merges adjacent
// values.
func (l *List) Optimize(cc *Context) (Expr, error) {
	var items []Expr
	for _, e := range l.Items {
		if nested, ok := e.(*List); ok {
			items = append(items, nested.Items...)
			continue
		}
		if v, ok := e.(*Value); ok {
			if len(v.Seq) == 0 {
				continue
			}
			if n := len(items); n > 0 {
				if prev, ok := items[n-1].(*Value); ok {
					items[n-1] = NewValue(ir.Concat(prev.Seq, v.Seq))
					continue
				}
			}
		}
		items = append(items, e)
	}
	switch len(items) {
	case 0:
		return EmptyValue(), nil
	case 1:
		return items[0], nil
	}
	return &List{Items: items}, nil
}

func (l *List) Copy(vm VarMap) Expr      { return &List{Items: copyOf(vm, l.Items)} }
func (l *List) Count(v *Var) Usage       { return countOf(v, l.Items...) }
func (l *List) Inlineable(v *Var) bool   { return inlineableOf(v, l.Items...) }
func (l *List) Children() []Expr         { return l.Items }
func (l *List) String() string           { return "(" + joinExprs(l.Items, ", ") + ")" }

func (l *List) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	items, err := inlineOf(cc, v, with, l.Items)
	if err != nil || items == nil {
		return nil, err
	}
	return (&List{Items: items}).Optimize(cc)
}

func (l *List) Eval(env *Env) (ir.Seq, error) {
	var out ir.Seq
	for _, e := range l.Items {
		s, err := e.Eval(env)
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, nil
}

// maxFoldedRange is the largest range materialized into a literal.
const maxFoldedRange = 64

// Range is "lo to hi".
type Range struct {
	Lo, Hi Expr
}

func (r *Range) bounds() (int64, int64, bool) {
	lo, ok1 := intValue(r.Lo)
	hi, ok2 := intValue(r.Hi)
	return lo, hi, ok1 && ok2
}

func intValue(e Expr) (int64, bool) {
	v, ok := e.(*Value)
	if !ok || len(v.Seq) != 1 {
		return 0, false
	}
	i, ok := v.Seq[0].(ir.Int)
	return int64(i), ok
}

func (r *Range) Flags() Flag { return flagsOf(r.Lo, r.Hi) }

func (r *Range) Size() int64 {
	lo, hi, ok := r.bounds()
	switch {
	case !ok:
		return -1
	case lo > hi:
		return 0
	}
	return hi - lo + 1
}

func (r *Range) Type() SeqType {
	if n := r.Size(); n >= 0 {
		return IntegerStar.WithOcc(OccurrenceOf(n, n))
	}
	return IntegerStar
}

func (r *Range) Compile(cc *Context) (Expr, error) {
	lo, err := r.Lo.Compile(cc)
	if err != nil {
		return nil, err
	}
	hi, err := r.Hi.Compile(cc)
	if err != nil {
		return nil, err
	}
	return (&Range{Lo: lo, Hi: hi}).Optimize(cc)
}

func (r *Range) Optimize(cc *Context) (Expr, error) {
	if n := r.Size(); n >= 0 && n <= maxFoldedRange {
		return fold(cc, r, r.Lo, r.Hi)
	}
	return r, nil
}

func (r *Range) Copy(vm VarMap) Expr    { return &Range{Lo: r.Lo.Copy(vm), Hi: r.Hi.Copy(vm)} }
func (r *Range) Count(v *Var) Usage     { return countOf(v, r.Lo, r.Hi) }
func (r *Range) Inlineable(v *Var) bool { return inlineableOf(v, r.Lo, r.Hi) }
func (r *Range) Children() []Expr       { return []Expr{r.Lo, r.Hi} }
func (r *Range) String() string         { return paren(r.Lo) + " to " + paren(r.Hi) }

func (r *Range) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	kids, err := inlineOf(cc, v, with, r.Children())
	if err != nil || kids == nil {
		return nil, err
	}
	return (&Range{Lo: kids[0], Hi: kids[1]}).Optimize(cc)
}

func (r *Range) Eval(env *Env) (ir.Seq, error) {
	lo, err := evalInt(env, r.Lo)
	if err != nil || lo == nil {
		return ir.Empty, err
	}
	hi, err := evalInt(env, r.Hi)
	if err != nil || hi == nil {
		return ir.Empty, err
	}
	return ir.Ints(*lo, *hi), nil
}

// evalInt evaluates an optional integer operand; nil for the empty sequence.
func evalInt(env *Env, e Expr) (*int64, error) {
	s, err := e.Eval(env)
	if err != nil || len(s) == 0 {
		return nil, err
	}
	if len(s) > 1 {
		return nil, ir.Errorf(ir.ErrCodeType, "range operand is a sequence of %d items", len(s))
	}
	i, ok := ir.Atomize(s)[0].(ir.Int)
	if !ok {
		return nil, ir.Errorf(ir.ErrCodeType, "range operand of type %s", s[0].Type())
	}
	n := int64(i)
	return &n, nil
}

// Replicate repeats the value of Expr Times times (util:replicate).
type Replicate struct {
	Expr  Expr
	Times int64
}

// NewReplicate creates a replication. A negative count is a range error.
func NewReplicate(e Expr, times int64) (*Replicate, error) {
	if times < 0 {
		return nil, ir.RangeErrorf("replicate count must not be negative: %d", times)
	}
	return &Replicate{Expr: e, Times: times}, nil
}

func (r *Replicate) Flags() Flag { return r.Expr.Flags() }

func (r *Replicate) Size() int64 {
	n := r.Expr.Size()
	if n < 0 {
		return -1
	}
	return n * r.Times
}

func (r *Replicate) Type() SeqType {
	t := r.Expr.Type()
	lo, hi := t.Occ.Bounds()
	if hi >= 0 {
		hi *= r.Times
	}
	return t.WithOcc(OccurrenceOf(lo*r.Times, hi))
}

func (r *Replicate) Compile(cc *Context) (Expr, error) {
	e, err := r.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}
	return (&Replicate{Expr: e, Times: r.Times}).Optimize(cc)
}

func (r *Replicate) Optimize(cc *Context) (Expr, error) {
	switch {
	case r.Times == 0:
		return EmptyValue(), nil
	case r.Times == 1:
		return r.Expr, nil
	}
	if n := r.Size(); n >= 0 && n <= maxFoldedRange {
		return fold(cc, r, r.Expr)
	}
	return r, nil
}

func (r *Replicate) Copy(vm VarMap) Expr    { return &Replicate{Expr: r.Expr.Copy(vm), Times: r.Times} }
func (r *Replicate) Count(v *Var) Usage     { return r.Expr.Count(v) }
func (r *Replicate) Inlineable(v *Var) bool { return r.Expr.Inlineable(v) }
func (r *Replicate) Children() []Expr       { return []Expr{r.Expr} }

func (r *Replicate) String() string {
	return fmt.Sprintf("replicate(%s, %d)", r.Expr, r.Times)
}

func (r *Replicate) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	e, err := r.Expr.Inline(v, with, cc)
	if err != nil || e == nil {
		return nil, err
	}
	return (&Replicate{Expr: e, Times: r.Times}).Optimize(cc)
}

func (r *Replicate) Eval(env *Env) (ir.Seq, error) {
	s, err := r.Expr.Eval(env)
	if err != nil {
		return nil, err
	}
	out := make(ir.Seq, 0, int64(len(s))*r.Times)
	for i := int64(0); i < r.Times; i++ {
		out = append(out, s...)
	}
	return out, nil
}
