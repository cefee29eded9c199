package expr

import (
	"github.com/HGData/basex/internal/ir"
)

// Value is a literal sequence. Values are immutable and shared freely.
type Value struct {
	Seq ir.Seq
}

// NewValue wraps a sequence.
func NewValue(s ir.Seq) *Value { return &Value{Seq: s} }

// Bool returns a boolean literal.
func Bool(b bool) *Value { return NewValue(ir.Single(ir.Bool(b))) }

// Int returns an integer literal.
func Int(i int64) *Value { return NewValue(ir.Single(ir.Int(i))) }

// Str returns a string literal.
func Str(s string) *Value { return NewValue(ir.Single(ir.Str(s))) }

// EmptyValue returns the empty sequence literal.
func EmptyValue() *Value { return NewValue(ir.Empty) }

func (v *Value) Flags() Flag                              { return 0 }
func (v *Value) Size() int64                              { return int64(len(v.Seq)) }
func (v *Value) Type() SeqType                            { return TypeOf(v.Seq) }
func (v *Value) Compile(*Context) (Expr, error)           { return v, nil }
func (v *Value) Optimize(*Context) (Expr, error)          { return v, nil }
func (v *Value) Copy(VarMap) Expr                         { return v }
func (v *Value) Count(*Var) Usage                         { return Never }
func (v *Value) Inline(*Var, Expr, *Context) (Expr, error) { return nil, nil }
func (v *Value) Inlineable(*Var) bool                     { return true }
func (v *Value) Children() []Expr                         { return nil }
func (v *Value) Eval(*Env) (ir.Seq, error)                { return v.Seq, nil }
func (v *Value) String() string                           { return v.Seq.String() }

// VarRef is a reference to a variable.
type VarRef struct {
	Var *Var
}

func (r *VarRef) Flags() Flag { return 0 }

func (r *VarRef) Size() int64 {
	lo, hi := r.Var.Static.Occ.Bounds()
	if lo == hi {
		return lo
	}
	return -1
}

func (r *VarRef) Type() SeqType                   { return r.Var.Static }
func (r *VarRef) Compile(*Context) (Expr, error)  { return r, nil }
func (r *VarRef) Optimize(*Context) (Expr, error) { return r, nil }
func (r *VarRef) Copy(vm VarMap) Expr             { return &VarRef{Var: vm.Get(r.Var)} }

func (r *VarRef) Count(v *Var) Usage {
	if r.Var == v {
		return Once
	}
	return Never
}

func (r *VarRef) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	if r.Var != v {
		return nil, nil
	}
	return InlineInto(with, cc)
}

func (r *VarRef) Inlineable(*Var) bool { return true }
func (r *VarRef) Children() []Expr     { return nil }
func (r *VarRef) Eval(env *Env) (ir.Seq, error) {
	return env.Lookup(r.Var)
}
func (r *VarRef) String() string { return r.Var.String() }

// ContextItem is ".".
type ContextItem struct{}

func (c *ContextItem) Flags() Flag                               { return CTX }
func (c *ContextItem) Size() int64                               { return 1 }
func (c *ContextItem) Type() SeqType                             { return SeqType{Item: ir.TypeItem, Occ: OccOne} }
func (c *ContextItem) Compile(*Context) (Expr, error)            { return c, nil }
func (c *ContextItem) Optimize(*Context) (Expr, error)           { return c, nil }
func (c *ContextItem) Copy(VarMap) Expr                          { return c }
func (c *ContextItem) Count(*Var) Usage                          { return Never }
func (c *ContextItem) Inline(*Var, Expr, *Context) (Expr, error) { return nil, nil }
func (c *ContextItem) Inlineable(*Var) bool                      { return true }
func (c *ContextItem) Children() []Expr                          { return nil }
func (c *ContextItem) String() string                            { return "." }

func (c *ContextItem) Eval(env *Env) (ir.Seq, error) {
	f, err := env.contextItem()
	if err != nil {
		return nil, err
	}
	return ir.Single(f.Item), nil
}
