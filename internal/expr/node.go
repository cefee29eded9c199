package expr

import (
	"strings"

	"github.com/HGData/basex/internal/ir"
)

// Elem is a direct element constructor. Every evaluation creates a new
// node, so Elem is never pre-evaluated, merged or duplicated.
type Elem struct {
	Name    string
	Content []Expr
}

func (e *Elem) Flags() Flag   { return CNS | flagsOf(e.Content...) }
func (e *Elem) Size() int64   { return 1 }
func (e *Elem) Type() SeqType { return SeqType{Item: ir.TypeNode, Occ: OccOne} }

func (e *Elem) Compile(cc *Context) (Expr, error) {
	content, err := compileOf(cc, e.Content)
	if err != nil {
		return nil, err
	}
	return &Elem{Name: e.Name, Content: content}, nil
}

func (e *Elem) Optimize(*Context) (Expr, error) { return e, nil }
func (e *Elem) Copy(vm VarMap) Expr             { return &Elem{Name: e.Name, Content: copyOf(vm, e.Content)} }
func (e *Elem) Count(v *Var) Usage              { return countOf(v, e.Content...) }
func (e *Elem) Inlineable(v *Var) bool          { return inlineableOf(v, e.Content...) }
func (e *Elem) Children() []Expr                { return e.Content }

func (e *Elem) String() string {
	if len(e.Content) == 0 {
		return "<" + e.Name + "/>"
	}
	var b strings.Builder
	b.WriteString("<" + e.Name + ">")
	for _, c := range e.Content {
		b.WriteString("{" + c.String() + "}")
	}
	b.WriteString("</" + e.Name + ">")
	return b.String()
}

func (e *Elem) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	content, err := inlineOf(cc, v, with, e.Content)
	if err != nil || content == nil {
		return nil, err
	}
	return &Elem{Name: e.Name, Content: content}, nil
}

// Eval constructs the element. Child nodes are copied; adjacent atomic
// values of one enclosed expression are joined by a space.
func (e *Elem) Eval(env *Env) (ir.Seq, error) {
	var children []ir.Item
	for _, c := range e.Content {
		s, err := c.Eval(env)
		if err != nil {
			return nil, err
		}
		var text []string
		flush := func() {
			if len(text) > 0 {
				children = append(children, ir.Str(strings.Join(text, " ")))
				text = nil
			}
		}
		for _, it := range s {
			if n, ok := it.(*ir.Node); ok {
				flush()
				children = append(children, copyNode(n)...)
				continue
			}
			text = append(text, it.String())
		}
		flush()
	}
	return ir.Single(ir.NewElement(e.Name, children...)), nil
}

// copyNode deep-copies a node with fresh identities. A document contributes
// its children.
func copyNode(n *ir.Node) []ir.Item {
	var children []ir.Item
	for _, c := range n.Children {
		if cn, ok := c.(*ir.Node); ok {
			children = append(children, copyNode(cn)...)
			continue
		}
		children = append(children, c)
	}
	if n.Document {
		return children
	}
	return []ir.Item{ir.NewElement(n.Name, children...)}
}

// TypeCheck enforces a declared sequence type at runtime.
type TypeCheck struct {
	Expr Expr
	Want SeqType
}

func (t *TypeCheck) Flags() Flag   { return t.Expr.Flags() }
func (t *TypeCheck) Size() int64   { return t.Expr.Size() }
func (t *TypeCheck) Type() SeqType { return t.Want }

func (t *TypeCheck) Compile(cc *Context) (Expr, error) {
	e, err := t.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}
	return (&TypeCheck{Expr: e, Want: t.Want}).Optimize(cc)
}

// Optimize removes checks that hold statically and reports checks that can
// never hold as static type errors.
func (t *TypeCheck) Optimize(*Context) (Expr, error) {
	if v, ok := t.Expr.(*Value); ok {
		if !t.Want.Matches(v.Seq) {
			return nil, ir.TypeErrorf("%s does not match %s", TypeOf(v.Seq), t.Want)
		}
		return v, nil
	}
	if t.Expr.Type().InstanceOf(t.Want) {
		return t.Expr, nil
	}
	return t, nil
}

func (t *TypeCheck) Copy(vm VarMap) Expr    { return &TypeCheck{Expr: t.Expr.Copy(vm), Want: t.Want} }
func (t *TypeCheck) Count(v *Var) Usage     { return t.Expr.Count(v) }
func (t *TypeCheck) Inlineable(v *Var) bool { return t.Expr.Inlineable(v) }
func (t *TypeCheck) Children() []Expr       { return []Expr{t.Expr} }
func (t *TypeCheck) String() string         { return paren(t.Expr) + " treat as " + t.Want.String() }

func (t *TypeCheck) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	e, err := t.Expr.Inline(v, with, cc)
	if err != nil || e == nil {
		return nil, err
	}
	return (&TypeCheck{Expr: e, Want: t.Want}).Optimize(cc)
}

func (t *TypeCheck) Eval(env *Env) (ir.Seq, error) {
	s, err := t.Expr.Eval(env)
	if err != nil {
		return nil, err
	}
	if !t.Want.Matches(s) {
		return nil, ir.Errorf(ir.ErrCodeType, "%s does not match %s", TypeOf(s), t.Want)
	}
	return s, nil
}

// Raise is a deferred failure: it raises Err when evaluated and never
// before. It is flagged non-deterministic so it is neither pre-evaluated
// nor moved.
type Raise struct {
	Err *ir.QueryError
	As  SeqType
}

func (r *Raise) Flags() Flag                               { return NDT }
func (r *Raise) Size() int64                               { return -1 }
func (r *Raise) Type() SeqType                             { return r.As }
func (r *Raise) Compile(*Context) (Expr, error)            { return r, nil }
func (r *Raise) Optimize(*Context) (Expr, error)           { return r, nil }
func (r *Raise) Copy(VarMap) Expr                          { return r }
func (r *Raise) Count(*Var) Usage                          { return Never }
func (r *Raise) Inline(*Var, Expr, *Context) (Expr, error) { return nil, nil }
func (r *Raise) Inlineable(*Var) bool                      { return true }
func (r *Raise) Children() []Expr                          { return nil }
func (r *Raise) Eval(*Env) (ir.Seq, error)                 { return nil, r.Err }

func (r *Raise) String() string {
	return "error(" + ir.Literal(ir.Str(r.Err.Code)) + ", " + ir.Literal(ir.Str(r.Err.Message)) + ")"
}
