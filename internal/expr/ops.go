package expr

import (
	"math"

	"github.com/HGData/basex/internal/ir"
)

// Arith is a binary arithmetic expression.
type Arith struct {
	Op   ir.ArithOp
	L, R Expr
}

func (a *Arith) Flags() Flag { return flagsOf(a.L, a.R) }

func (a *Arith) Size() int64 {
	if a.L.Type().One() && a.R.Type().One() {
		return 1
	}
	return -1
}

func (a *Arith) Type() SeqType {
	lt, rt := a.L.Type(), a.R.Type()
	item := ir.TypeDecimal
	if lt.Item == ir.TypeInteger && rt.Item == ir.TypeInteger && a.Op != ir.OpDiv || a.Op == ir.OpIDiv {
		item = ir.TypeInteger
	}
	occ := OccZeroOrOne
	if lt.One() && rt.One() {
		occ = OccOne
	}
	return SeqType{Item: item, Occ: occ}
}

func (a *Arith) Compile(cc *Context) (Expr, error) {
	l, err := a.L.Compile(cc)
	if err != nil {
		return nil, err
	}
	r, err := a.R.Compile(cc)
	if err != nil {
		return nil, err
	}
	return (&Arith{Op: a.Op, L: l, R: r}).Optimize(cc)
}

func (a *Arith) Optimize(cc *Context) (Expr, error) { return fold(cc, a, a.L, a.R) }
func (a *Arith) Copy(vm VarMap) Expr                { return &Arith{Op: a.Op, L: a.L.Copy(vm), R: a.R.Copy(vm)} }
func (a *Arith) Count(v *Var) Usage                 { return countOf(v, a.L, a.R) }
func (a *Arith) Inlineable(v *Var) bool             { return inlineableOf(v, a.L, a.R) }
func (a *Arith) Children() []Expr                   { return []Expr{a.L, a.R} }
func (a *Arith) String() string                     { return paren(a.L) + " " + a.Op.String() + " " + paren(a.R) }

func (a *Arith) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	kids, err := inlineOf(cc, v, with, a.Children())
	if err != nil || kids == nil {
		return nil, err
	}
	return (&Arith{Op: a.Op, L: kids[0], R: kids[1]}).Optimize(cc)
}

func (a *Arith) Eval(env *Env) (ir.Seq, error) {
	l, err := a.L.Eval(env)
	if err != nil {
		return nil, err
	}
	r, err := a.R.Eval(env)
	if err != nil {
		return nil, err
	}
	return ir.Arith(a.Op, l, r)
}

// Cmp is a general (existential) comparison.
type Cmp struct {
	Op   ir.CmpOp
	L, R Expr
}

func (c *Cmp) Flags() Flag   { return flagsOf(c.L, c.R) }
func (c *Cmp) Size() int64   { return 1 }
func (c *Cmp) Type() SeqType { return BooleanOne }

func (c *Cmp) Compile(cc *Context) (Expr, error) {
	l, err := c.L.Compile(cc)
	if err != nil {
		return nil, err
	}
	r, err := c.R.Compile(cc)
	if err != nil {
		return nil, err
	}
	return (&Cmp{Op: c.Op, L: l, R: r}).Optimize(cc)
}

// Optimize folds constant comparisons and moves a literal operand to the
// right-hand side.
func (c *Cmp) Optimize(cc *Context) (Expr, error) {
	if IsValue(c.L) && !IsValue(c.R) {
		return (&Cmp{Op: c.Op.Swap(), L: c.R, R: c.L}).Optimize(cc)
	}
	return fold(cc, c, c.L, c.R)
}

func (c *Cmp) Copy(vm VarMap) Expr    { return &Cmp{Op: c.Op, L: c.L.Copy(vm), R: c.R.Copy(vm)} }
func (c *Cmp) Count(v *Var) Usage     { return countOf(v, c.L, c.R) }
func (c *Cmp) Inlineable(v *Var) bool { return inlineableOf(v, c.L, c.R) }
func (c *Cmp) Children() []Expr       { return []Expr{c.L, c.R} }
func (c *Cmp) String() string         { return paren(c.L) + " " + c.Op.String() + " " + paren(c.R) }

func (c *Cmp) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	kids, err := inlineOf(cc, v, with, c.Children())
	if err != nil || kids == nil {
		return nil, err
	}
	return (&Cmp{Op: c.Op, L: kids[0], R: kids[1]}).Optimize(cc)
}

func (c *Cmp) Eval(env *Env) (ir.Seq, error) {
	l, err := c.L.Eval(env)
	if err != nil {
		return nil, err
	}
	r, err := c.R.Eval(env)
	if err != nil {
		return nil, err
	}
	ok, err := ir.GeneralCompare(c.Op, l, r)
	if err != nil {
		return nil, err
	}
	return ir.Single(ir.Bool(ok)), nil
}

// IntRange recognizes "$v op N" and "$v = lo to hi" comparisons against
// integer literals and returns the variable and the inclusive integer range
// it is compared with. hi is -1 when unbounded. A range that admits no
// position is returned as lo 1, hi 0.
func (c *Cmp) IntRange() (*Var, int64, int64, bool) {
	ref, ok := c.L.(*VarRef)
	if !ok || !ref.Var.Static.One() || ref.Var.Static.Item != ir.TypeInteger {
		return nil, 0, 0, false
	}
	if c.Op == ir.OpEq {
		if r, ok := c.R.(*Range); ok {
			if lo, hi, ok := r.bounds(); ok && lo <= hi {
				lo, hi = positions(lo, hi)
				return ref.Var, lo, hi, true
			}
			return nil, 0, 0, false
		}
		v, ok := c.R.(*Value)
		if !ok || len(v.Seq) == 0 {
			return nil, 0, 0, false
		}
		first, ok := v.Seq[0].(ir.Int)
		if !ok {
			return nil, 0, 0, false
		}
		for i, it := range v.Seq {
			if n, ok := it.(ir.Int); !ok || n != first+ir.Int(i) {
				return nil, 0, 0, false
			}
		}
		lo, hi := positions(int64(first), int64(first)+int64(len(v.Seq))-1)
		return ref.Var, lo, hi, true
	}
	n, ok := intValue(c.R)
	if !ok {
		return nil, 0, 0, false
	}
	switch c.Op {
	case ir.OpGe:
		return ref.Var, max(n, 1), -1, true
	case ir.OpGt:
		if n == math.MaxInt64 {
			return ref.Var, 1, 0, true
		}
		return ref.Var, max(n+1, 1), -1, true
	case ir.OpLe:
		lo, hi := positions(1, n)
		return ref.Var, lo, hi, true
	case ir.OpLt:
		if n <= 1 {
			return ref.Var, 1, 0, true
		}
		return ref.Var, 1, n - 1, true
	}
	return nil, 0, 0, false
}

// positions clamps the bounded range lo..hi to positions 1 and up.
func positions(lo, hi int64) (int64, int64) {
	if hi < 1 {
		return 1, 0
	}
	return max(lo, 1), hi
}

// And is a conjunction.
type And struct {
	Ops []Expr
}

// NewAnd creates a conjunction of two or more operands.
func NewAnd(ops ...Expr) *And { return &And{Ops: ops} }

func (a *And) Flags() Flag   { return flagsOf(a.Ops...) }
func (a *And) Size() int64   { return 1 }
func (a *And) Type() SeqType { return BooleanOne }

func (a *And) Compile(cc *Context) (Expr, error) {
	ops, err := compileOf(cc, a.Ops)
	if err != nil {
		return nil, err
	}
	return (&And{Ops: ops}).Optimize(cc)
}

// Optimize drops true operands, short-circuits on a false one and flattens
// nested conjunctions.
func (a *And) Optimize(cc *Context) (Expr, error) {
	return optimizeLogic(cc, a.Ops, false, func(ops []Expr) Expr { return &And{Ops: ops} })
}

func (a *And) Copy(vm VarMap) Expr    { return &And{Ops: copyOf(vm, a.Ops)} }
func (a *And) Count(v *Var) Usage     { return countOf(v, a.Ops...) }
func (a *And) Inlineable(v *Var) bool { return inlineableOf(v, a.Ops...) }
func (a *And) Children() []Expr       { return a.Ops }
func (a *And) String() string         { return joinExprs(a.Ops, " and ") }

func (a *And) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	ops, err := inlineOf(cc, v, with, a.Ops)
	if err != nil || ops == nil {
		return nil, err
	}
	return (&And{Ops: ops}).Optimize(cc)
}

func (a *And) Eval(env *Env) (ir.Seq, error) {
	for _, op := range a.Ops {
		ok, err := ebv(env, op)
		if err != nil {
			return nil, err
		}
		if !ok {
			return ir.Single(ir.Bool(false)), nil
		}
	}
	return ir.Single(ir.Bool(true)), nil
}

// Or is a disjunction.
type Or struct {
	Ops []Expr
}

func (o *Or) Flags() Flag   { return flagsOf(o.Ops...) }
func (o *Or) Size() int64   { return 1 }
func (o *Or) Type() SeqType { return BooleanOne }

func (o *Or) Compile(cc *Context) (Expr, error) {
	ops, err := compileOf(cc, o.Ops)
	if err != nil {
		return nil, err
	}
	return (&Or{Ops: ops}).Optimize(cc)
}

func (o *Or) Optimize(cc *Context) (Expr, error) {
	return optimizeLogic(cc, o.Ops, true, func(ops []Expr) Expr { return &Or{Ops: ops} })
}

func (o *Or) Copy(vm VarMap) Expr    { return &Or{Ops: copyOf(vm, o.Ops)} }
func (o *Or) Count(v *Var) Usage     { return countOf(v, o.Ops...) }
func (o *Or) Inlineable(v *Var) bool { return inlineableOf(v, o.Ops...) }
func (o *Or) Children() []Expr       { return o.Ops }
func (o *Or) String() string         { return joinExprs(o.Ops, " or ") }

func (o *Or) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	ops, err := inlineOf(cc, v, with, o.Ops)
	if err != nil || ops == nil {
		return nil, err
	}
	return (&Or{Ops: ops}).Optimize(cc)
}

func (o *Or) Eval(env *Env) (ir.Seq, error) {
	for _, op := range o.Ops {
		ok, err := ebv(env, op)
		if err != nil {
			return nil, err
		}
		if ok {
			return ir.Single(ir.Bool(true)), nil
		}
	}
	return ir.Single(ir.Bool(false)), nil
}

// optimizeLogic simplifies and/or operand lists. absorbing is the value
// that decides the whole expression: false for and, true for or.
func optimizeLogic(cc *Context, in []Expr, absorbing bool, build func([]Expr) Expr) (Expr, error) {
	var ops []Expr
	for _, op := range in {
		if v, ok := op.(*Value); ok {
			b, err := ir.EBV(v.Seq)
			if err != nil {
				return nil, err
			}
			if b == absorbing {
				return Bool(absorbing), nil
			}
			continue
		}
		switch nested := op.(type) {
		case *And:
			if !absorbing {
				ops = append(ops, nested.Ops...)
				continue
			}
		case *Or:
			if absorbing {
				ops = append(ops, nested.Ops...)
				continue
			}
		}
		ops = append(ops, op)
	}
	switch len(ops) {
	case 0:
		return Bool(!absorbing), nil
	case 1:
		if ops[0].Type().InstanceOf(BooleanOne) {
			return ops[0], nil
		}
		return &Call{Name: "boolean", Args: ops}, nil
	}
	return build(ops), nil
}

func ebv(env *Env, e Expr) (bool, error) {
	s, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	return ir.EBV(s)
}

// If is a conditional.
type If struct {
	Cond, Then, Else Expr
}

func (i *If) Flags() Flag { return flagsOf(i.Cond, i.Then, i.Else) }

func (i *If) Size() int64 {
	if t := i.Then.Size(); t == i.Else.Size() {
		return t
	}
	return -1
}

func (i *If) Type() SeqType { return i.Then.Type().Choice(i.Else.Type()) }

func (i *If) Compile(cc *Context) (Expr, error) {
	kids, err := compileOf(cc, i.Children())
	if err != nil {
		return nil, err
	}
	return (&If{Cond: kids[0], Then: kids[1], Else: kids[2]}).Optimize(cc)
}

// Optimize picks the branch of a constant condition.
func (i *If) Optimize(*Context) (Expr, error) {
	if v, ok := i.Cond.(*Value); ok {
		b, err := ir.EBV(v.Seq)
		if err != nil {
			return nil, err
		}
		if b {
			return i.Then, nil
		}
		return i.Else, nil
	}
	return i, nil
}

func (i *If) Copy(vm VarMap) Expr {
	return &If{Cond: i.Cond.Copy(vm), Then: i.Then.Copy(vm), Else: i.Else.Copy(vm)}
}

func (i *If) Count(v *Var) Usage {
	// Only one branch runs.
	t, e := i.Then.Count(v), i.Else.Count(v)
	return i.Cond.Count(v).Plus(max(t, e))
}

func (i *If) Inlineable(v *Var) bool { return inlineableOf(v, i.Cond, i.Then, i.Else) }
func (i *If) Children() []Expr       { return []Expr{i.Cond, i.Then, i.Else} }

func (i *If) String() string {
	return "if (" + i.Cond.String() + ") then " + paren(i.Then) + " else " + paren(i.Else)
}

func (i *If) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	kids, err := inlineOf(cc, v, with, i.Children())
	if err != nil || kids == nil {
		return nil, err
	}
	return (&If{Cond: kids[0], Then: kids[1], Else: kids[2]}).Optimize(cc)
}

func (i *If) Eval(env *Env) (ir.Seq, error) {
	b, err := ebv(env, i.Cond)
	if err != nil {
		return nil, err
	}
	if b {
		return i.Then.Eval(env)
	}
	return i.Else.Eval(env)
}
