package flwor

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

// OrderKey is one sort key of an order by clause.
type OrderKey struct {
	Expr       expr.Expr
	Descending bool
	// Collation is a BCP 47 tag; empty compares strings by code point.
	Collation string
}

func (k OrderKey) String() string {
	s := k.Expr.String()
	if k.Descending {
		s += " descending"
	}
	if k.Collation != "" {
		s += " collation " + strconv.Quote(k.Collation)
	}
	return s
}

// OrderBy sorts the tuple stream by its keys; ties keep their input order.
// Refs are the variables whose bindings travel with the tuples through the
// sort.
type OrderBy struct {
	Keys []OrderKey
	Refs []*expr.Var
}

func (*OrderBy) clause() {}

func (o *OrderBy) Vars() []*expr.Var { return nil }

func (o *OrderBy) Flags() expr.Flag {
	var f expr.Flag
	for _, k := range o.Keys {
		f |= k.Expr.Flags()
	}
	return f
}

func (o *OrderBy) Count(v *expr.Var) expr.Usage {
	u := expr.Never
	for _, k := range o.Keys {
		u = u.Plus(k.Expr.Count(v))
	}
	if containsVar(o.Refs, v) {
		u = u.Plus(expr.Once)
	}
	return u
}

func (o *OrderBy) Inlineable(v *expr.Var) bool {
	for _, k := range o.Keys {
		if !k.Expr.Inlineable(v) {
			return false
		}
	}
	return true
}

func (o *OrderBy) Exprs() []expr.Expr {
	out := make([]expr.Expr, len(o.Keys))
	for i, k := range o.Keys {
		out[i] = k.Expr
	}
	return out
}

// Inline substitutes with for v in the keys. A substituted variable no
// longer travels through the sort; the variables with refers to do.
func (o *OrderBy) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error) {
	changed := false
	keys := make([]OrderKey, len(o.Keys))
	for i, k := range o.Keys {
		keys[i] = k
		e, err := k.Expr.Inline(v, with, cc)
		if err != nil {
			return nil, err
		}
		if e != nil {
			keys[i].Expr = e
			changed = true
		}
	}
	refs := o.Refs
	if containsVar(refs, v) {
		refs = nil
		for _, r := range o.Refs {
			if r.ID != v.ID {
				refs = append(refs, r)
			}
		}
		for _, r := range referenced(with) {
			if !containsVar(refs, r) {
				refs = append(refs, r)
			}
		}
		changed = true
	}
	if !changed {
		return nil, nil
	}
	return &OrderBy{Keys: keys, Refs: refs}, nil
}

func (o *OrderBy) Compile(cc *expr.Context) (Clause, error) {
	keys := make([]OrderKey, len(o.Keys))
	for i, k := range o.Keys {
		if k.Collation != "" {
			if _, err := language.Parse(k.Collation); err != nil {
				return nil, ir.StaticErrorf(ir.ErrCodeCollation, "unsupported collation %q", k.Collation)
			}
		}
		e, err := k.Expr.Compile(cc)
		if err != nil {
			return nil, err
		}
		keys[i] = k
		keys[i].Expr = e
	}
	return &OrderBy{Keys: keys, Refs: o.Refs}, nil
}

func (o *OrderBy) Copy(vm expr.VarMap) Clause {
	keys := make([]OrderKey, len(o.Keys))
	for i, k := range o.Keys {
		keys[i] = k
		keys[i].Expr = k.Expr.Copy(vm)
	}
	refs := make([]*expr.Var, len(o.Refs))
	for i, r := range o.Refs {
		refs[i] = vm.Get(r)
	}
	return &OrderBy{Keys: keys, Refs: refs}
}

func (o *OrderBy) String() string {
	parts := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		parts[i] = k.String()
	}
	return "order by " + strings.Join(parts, ", ")
}

// GroupSpec is a grouping key: Var is bound to the atomized key value.
type GroupSpec struct {
	Var  *expr.Var
	Expr expr.Expr
}

// GroupBy partitions the tuple stream by its keys, in order of first
// appearance. For each group, Post[i] is bound to the concatenation of the
// values Pre[i] had in the tuples of the group. Pre starts out as
// references to the variables in scope and may be rewritten by inlining
// like any other expression.
type GroupBy struct {
	Specs []GroupSpec
	Pre   []expr.Expr
	Post  []*expr.Var
}

func (*GroupBy) clause() {}

func (g *GroupBy) Vars() []*expr.Var {
	out := make([]*expr.Var, 0, len(g.Specs)+len(g.Post))
	for _, s := range g.Specs {
		out = append(out, s.Var)
	}
	return append(out, g.Post...)
}

func (g *GroupBy) Flags() expr.Flag {
	var f expr.Flag
	for _, e := range g.Exprs() {
		f |= e.Flags()
	}
	return f
}

// Count counts a variable read by a grouped input as used many times: its
// values of all tuples of a group are collected.
func (g *GroupBy) Count(v *expr.Var) expr.Usage {
	u := expr.Never
	for _, s := range g.Specs {
		u = u.Plus(s.Expr.Count(v))
	}
	for _, e := range g.Pre {
		if e.Count(v) != expr.Never {
			return expr.Multiple
		}
	}
	return u
}

func (g *GroupBy) Inlineable(v *expr.Var) bool {
	for _, e := range g.Exprs() {
		if !e.Inlineable(v) {
			return false
		}
	}
	return true
}

func (g *GroupBy) Exprs() []expr.Expr {
	out := make([]expr.Expr, 0, len(g.Specs)+len(g.Pre))
	for _, s := range g.Specs {
		out = append(out, s.Expr)
	}
	return append(out, g.Pre...)
}

// Inline substitutes with for v in the keys and the grouped inputs.
func (g *GroupBy) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error) {
	var specs []GroupSpec
	for i, s := range g.Specs {
		e, err := s.Expr.Inline(v, with, cc)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		if specs == nil {
			specs = append([]GroupSpec(nil), g.Specs...)
		}
		specs[i].Expr = e
	}
	var pre []expr.Expr
	for i, p := range g.Pre {
		e, err := p.Inline(v, with, cc)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		if pre == nil {
			pre = append([]expr.Expr(nil), g.Pre...)
		}
		pre[i] = e
	}
	if specs == nil && pre == nil {
		return nil, nil
	}
	if specs == nil {
		specs = g.Specs
	}
	if pre == nil {
		pre = g.Pre
	}
	return &GroupBy{Specs: specs, Pre: pre, Post: g.Post}, nil
}

func (g *GroupBy) Compile(cc *expr.Context) (Clause, error) {
	specs := make([]GroupSpec, len(g.Specs))
	for i, s := range g.Specs {
		e, err := s.Expr.Compile(cc)
		if err != nil {
			return nil, err
		}
		s.Var.Refine(expr.SeqType{Item: e.Type().Item, Occ: expr.OccZeroOrOne})
		specs[i] = GroupSpec{Var: s.Var, Expr: e}
	}
	pre := make([]expr.Expr, len(g.Pre))
	for i, p := range g.Pre {
		e, err := p.Compile(cc)
		if err != nil {
			return nil, err
		}
		pre[i] = e
	}
	return &GroupBy{Specs: specs, Pre: pre, Post: g.Post}, nil
}

func (g *GroupBy) Copy(vm expr.VarMap) Clause {
	specs := make([]GroupSpec, len(g.Specs))
	for i, s := range g.Specs {
		e := s.Expr.Copy(vm)
		specs[i] = GroupSpec{Var: vm.Copy(s.Var), Expr: e}
	}
	pre := make([]expr.Expr, len(g.Pre))
	for i, p := range g.Pre {
		pre[i] = p.Copy(vm)
	}
	post := make([]*expr.Var, len(g.Post))
	for i, v := range g.Post {
		post[i] = vm.Copy(v)
	}
	return &GroupBy{Specs: specs, Pre: pre, Post: post}
}

func (g *GroupBy) String() string {
	parts := make([]string, len(g.Specs))
	for i, s := range g.Specs {
		parts[i] = s.Var.String() + " := " + s.Expr.String()
	}
	return "group by " + strings.Join(parts, ", ")
}
