package expr

import (
	"fmt"
	"strings"

	"github.com/HGData/basex/internal/ir"
)

// Filter applies predicates to a source sequence. Inside the predicates
// the focus is the item being tested, so a context dependency of a
// predicate is bound by the filter and not propagated to its parent.
type Filter struct {
	Source Expr
	Preds  []Expr
}

// NewFilter adds a predicate to e, extending an existing filter.
func NewFilter(e Expr, pred Expr) *Filter {
	if f, ok := e.(*Filter); ok {
		preds := append(append([]Expr(nil), f.Preds...), pred)
		return &Filter{Source: f.Source, Preds: preds}
	}
	return &Filter{Source: e, Preds: []Expr{pred}}
}

func (f *Filter) Flags() Flag {
	return f.Source.Flags() | flagsOf(f.Preds...)&^CTX
}

func (f *Filter) Size() int64 {
	n := f.Source.Size()
	for _, p := range f.Preds {
		pr, ok := p.(*PosRange)
		if !ok || n < 0 {
			return -1
		}
		n = pr.count(n)
	}
	return n
}

func (f *Filter) Type() SeqType {
	t := f.Source.Type()
	if n := f.Size(); n >= 0 {
		return t.WithOcc(OccurrenceOf(n, n))
	}
	if t.Occ == OccOne || t.Occ == OccZeroOrOne {
		return t.WithOcc(OccZeroOrOne)
	}
	return t.WithOcc(OccZeroOrMore)
}

func (f *Filter) Compile(cc *Context) (Expr, error) {
	src, err := f.Source.Compile(cc)
	if err != nil {
		return nil, err
	}
	preds, err := compileOf(cc, f.Preds)
	if err != nil {
		return nil, err
	}
	return (&Filter{Source: src, Preds: preds}).Optimize(cc)
}

// Optimize turns numeric literal predicates into positional ranges, drops
// true predicates and pre-evaluates filters over literal sources.
func (f *Filter) Optimize(cc *Context) (Expr, error) {
	var preds []Expr
	for _, p := range f.Preds {
		v, ok := p.(*Value)
		if !ok {
			preds = append(preds, p)
			continue
		}
		if n, ok := intValue(v); ok {
			lo, hi := positions(n, n)
			preds = append(preds, &PosRange{Lo: lo, Hi: hi})
			continue
		}
		b, err := ir.EBV(v.Seq)
		if err != nil {
			return nil, err
		}
		if !b {
			return EmptyValue(), nil
		}
	}
	if len(preds) == 0 {
		return f.Source, nil
	}
	nf := &Filter{Source: f.Source, Preds: preds}
	if (nf.Size() == 0 || nf.selectsNone()) && !Has(f.Source, NDT|UPD) {
		return EmptyValue(), nil
	}
	if src, ok := f.Source.(*Value); ok && !Has(nf, sideEffects&^CTX) {
		for _, p := range preds {
			if !closed(p) {
				return nf, nil
			}
		}
		s, err := nf.filter(cc.env(), src.Seq)
		if err != nil {
			return nil, err
		}
		return NewValue(s), nil
	}
	return nf, nil
}

// selectsNone reports whether a positional predicate admits no position.
func (f *Filter) selectsNone() bool {
	for _, p := range f.Preds {
		if pr, ok := p.(*PosRange); ok && pr.Hi >= 0 && pr.Hi < max(pr.Lo, 1) {
			return true
		}
	}
	return false
}

func (f *Filter) Copy(vm VarMap) Expr {
	return &Filter{Source: f.Source.Copy(vm), Preds: copyOf(vm, f.Preds)}
}

func (f *Filter) Count(v *Var) Usage {
	per := int64(-1)
	if f.Source.Size() == 1 {
		per = 1
	}
	return f.Source.Count(v).Plus(countOf(v, f.Preds...).Times(per))
}

func (f *Filter) Inlineable(v *Var) bool {
	return f.Source.Inlineable(v) && countOf(v, f.Preds...) == Never
}

func (f *Filter) Children() []Expr { return append([]Expr{f.Source}, f.Preds...) }

func (f *Filter) String() string {
	var b strings.Builder
	b.WriteString(paren(f.Source))
	for _, p := range f.Preds {
		b.WriteString("[" + p.String() + "]")
	}
	return b.String()
}

func (f *Filter) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	kids, err := inlineOf(cc, v, with, f.Children())
	if err != nil || kids == nil {
		return nil, err
	}
	return (&Filter{Source: kids[0], Preds: kids[1:]}).Optimize(cc)
}

func (f *Filter) Eval(env *Env) (ir.Seq, error) {
	s, err := f.Source.Eval(env)
	if err != nil {
		return nil, err
	}
	return f.filter(env, s)
}

func (f *Filter) filter(env *Env, s ir.Seq) (ir.Seq, error) {
	prev := env.WithFocus(nil)
	defer env.WithFocus(prev)
	for _, p := range f.Preds {
		var out ir.Seq
		size := int64(len(s))
		for i, it := range s {
			env.WithFocus(&Focus{Item: it, Pos: int64(i) + 1, Size: size})
			ok, err := predicate(env, p)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, it)
			}
		}
		s = out
	}
	return s, nil
}

// predicate evaluates a predicate against the current focus: a numeric
// result is compared with the position, anything else by its effective
// boolean value.
func predicate(env *Env, p Expr) (bool, error) {
	s, err := p.Eval(env)
	if err != nil {
		return false, err
	}
	if len(s) == 1 {
		switch n := s[0].(type) {
		case ir.Int:
			return int64(n) == env.focus.Pos, nil
		case ir.Dec:
			return n.Equal(n.Truncate(0)) && n.IntPart() == env.focus.Pos, nil
		}
	}
	return ir.EBV(s)
}

// PosRange is the positional predicate "position() = Lo to Hi". Hi is -1
// when the range is unbounded.
type PosRange struct {
	Lo, Hi int64
}

// count returns how many of n items the range selects.
func (p *PosRange) count(n int64) int64 {
	lo := max(p.Lo, 1)
	hi := n
	if p.Hi >= 0 {
		hi = min(p.Hi, n)
	}
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}

func (p *PosRange) Flags() Flag                               { return CTX }
func (p *PosRange) Size() int64                               { return 1 }
func (p *PosRange) Type() SeqType                             { return BooleanOne }
func (p *PosRange) Compile(*Context) (Expr, error)            { return p, nil }
func (p *PosRange) Optimize(*Context) (Expr, error)           { return p, nil }
func (p *PosRange) Copy(VarMap) Expr                          { return p }
func (p *PosRange) Count(*Var) Usage                          { return Never }
func (p *PosRange) Inline(*Var, Expr, *Context) (Expr, error) { return nil, nil }
func (p *PosRange) Inlineable(*Var) bool                      { return true }
func (p *PosRange) Children() []Expr                          { return nil }

func (p *PosRange) String() string {
	switch {
	case p.Hi < 0:
		return fmt.Sprintf("position() >= %d", p.Lo)
	case p.Lo == p.Hi:
		return fmt.Sprintf("position() = %d", p.Lo)
	}
	return fmt.Sprintf("position() = %d to %d", p.Lo, p.Hi)
}

func (p *PosRange) Eval(env *Env) (ir.Seq, error) {
	f, err := env.contextItem()
	if err != nil {
		return nil, err
	}
	ok := f.Pos >= p.Lo && (p.Hi < 0 || f.Pos <= p.Hi)
	return ir.Single(ir.Bool(ok)), nil
}

// Path is a child-axis path. A nil Root starts at the context item.
type Path struct {
	Root  Expr
	Steps []string
}

func (p *Path) Flags() Flag {
	if p.Root == nil {
		return CTX
	}
	return p.Root.Flags()
}

// Size is 1 for a document root and for the single root element of a
// document ("doc(u)" and "doc(u)/*").
func (p *Path) Size() int64 {
	c, ok := p.Root.(*Call)
	if !ok || c.Name != "doc" {
		return -1
	}
	switch {
	case len(p.Steps) == 0:
		return 1
	case len(p.Steps) == 1 && p.Steps[0] == "*":
		return 1
	}
	return -1
}

func (p *Path) Type() SeqType {
	if p.Size() == 1 {
		return SeqType{Item: ir.TypeNode, Occ: OccOne}
	}
	return NodeStar
}

func (p *Path) Compile(cc *Context) (Expr, error) {
	if p.Root == nil {
		return p, nil
	}
	root, err := p.Root.Compile(cc)
	if err != nil {
		return nil, err
	}
	return (&Path{Root: root, Steps: p.Steps}).Optimize(cc)
}

func (p *Path) Optimize(*Context) (Expr, error) {
	if len(p.Steps) == 0 && p.Root != nil {
		return p.Root, nil
	}
	if v, ok := p.Root.(*Value); ok && len(v.Seq) == 0 {
		return EmptyValue(), nil
	}
	return p, nil
}

func (p *Path) Copy(vm VarMap) Expr {
	if p.Root == nil {
		return p
	}
	return &Path{Root: p.Root.Copy(vm), Steps: p.Steps}
}

func (p *Path) Count(v *Var) Usage {
	if p.Root == nil {
		return Never
	}
	return p.Root.Count(v)
}

func (p *Path) Inlineable(v *Var) bool { return p.Root == nil || p.Root.Inlineable(v) }

func (p *Path) Children() []Expr {
	if p.Root == nil {
		return nil
	}
	return []Expr{p.Root}
}

func (p *Path) String() string {
	steps := strings.Join(p.Steps, "/")
	if p.Root == nil {
		return steps
	}
	return paren(p.Root) + "/" + steps
}

func (p *Path) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	if p.Root == nil {
		return nil, nil
	}
	root, err := p.Root.Inline(v, with, cc)
	if err != nil || root == nil {
		return nil, err
	}
	return (&Path{Root: root, Steps: p.Steps}).Optimize(cc)
}

func (p *Path) Eval(env *Env) (ir.Seq, error) {
	var cur ir.Seq
	if p.Root == nil {
		f, err := env.contextItem()
		if err != nil {
			return nil, err
		}
		cur = ir.Single(f.Item)
	} else {
		s, err := p.Root.Eval(env)
		if err != nil {
			return nil, err
		}
		cur = s
	}
	for _, step := range p.Steps {
		var next ir.Seq
		for _, it := range cur {
			n, ok := it.(*ir.Node)
			if !ok {
				return nil, ir.Errorf(ir.ErrCodeType, "path step %q applied to %s", step, it.Type())
			}
			next = append(next, n.ChildElements(step)...)
		}
		cur = next
	}
	return cur, nil
}
