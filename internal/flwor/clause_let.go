package flwor

import (
	"github.com/HGData/basex/internal/expr"
)

// Let binds Var to the value of Expr, once per incoming tuple. A scoring
// let binds the score of Expr instead.
type Let struct {
	Var     *expr.Var
	Expr    expr.Expr
	Scoring bool
}

func (*Let) clause() {}

func (l *Let) Vars() []*expr.Var            { return declared(l.Var) }
func (l *Let) Flags() expr.Flag             { return l.Expr.Flags() }
func (l *Let) Count(v *expr.Var) expr.Usage { return l.Expr.Count(v) }
func (l *Let) Inlineable(v *expr.Var) bool  { return l.Expr.Inlineable(v) }
func (l *Let) Exprs() []expr.Expr           { return []expr.Expr{l.Expr} }

func (l *Let) withExpr(e expr.Expr) *Let {
	nl := *l
	nl.Expr = e
	return &nl
}

func (l *Let) Inline(v *expr.Var, with expr.Expr, cc *expr.Context) (Clause, error) {
	e, err := l.Expr.Inline(v, with, cc)
	if err != nil || e == nil {
		return nil, err
	}
	return l.withExpr(e), nil
}

func (l *Let) Compile(cc *expr.Context) (Clause, error) {
	e, err := l.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}
	if l.Scoring {
		l.Var.Refine(expr.DecimalOne)
		return l.withExpr(e), nil
	}
	if err := l.Var.CheckType(e); err != nil {
		return nil, err
	}
	l.Var.Refine(e.Type())
	return l.withExpr(e), nil
}

func (l *Let) Copy(vm expr.VarMap) Clause {
	e := l.Expr.Copy(vm)
	return &Let{Var: vm.Copy(l.Var), Expr: e, Scoring: l.Scoring}
}

func (l *Let) String() string {
	if l.Scoring {
		return "let score " + l.Var.String() + " := " + l.Expr.String()
	}
	return "let " + l.Var.String() + typeSuffix(l.Var) + " := " + l.Expr.String()
}

// inlineExpr returns the expression that replaces references to the
// variable: the score for a scoring let, otherwise the bound expression
// wrapped in a type check if the binding enforces one.
func (l *Let) inlineExpr(cc *expr.Context) (expr.Expr, error) {
	if l.Scoring {
		return (&expr.Call{Name: "score", Args: []expr.Expr{l.Expr}}).Optimize(cc)
	}
	return l.Var.Checked(l.Expr)
}

// Count binds Var to the 1-based ordinal of each tuple.
type Count struct {
	Var *expr.Var
}

func (*Count) clause() {}

func (c *Count) Vars() []*expr.Var          { return declared(c.Var) }
func (c *Count) Flags() expr.Flag           { return 0 }
func (c *Count) Count(*expr.Var) expr.Usage { return expr.Never }
func (c *Count) Inlineable(*expr.Var) bool  { return true }
func (c *Count) Exprs() []expr.Expr         { return nil }
func (c *Count) Copy(vm expr.VarMap) Clause { return &Count{Var: vm.Copy(c.Var)} }
func (c *Count) String() string             { return "count " + c.Var.String() }

func (c *Count) Inline(*expr.Var, expr.Expr, *expr.Context) (Clause, error) {
	return nil, nil
}

func (c *Count) Compile(*expr.Context) (Clause, error) {
	c.Var.Refine(expr.IntegerOne)
	return c, nil
}
