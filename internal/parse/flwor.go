package parse

import (
	"strconv"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/flwor"
	"github.com/HGData/basex/internal/ir"
)

// flwor parses a FLWOR expression. Variables bound by its clauses are
// visible in the later clauses and in the return expression.
func (p *parser) flwor() (expr.Expr, error) {
	s := p.push()
	defer p.pop()
	var clauses []flwor.Clause
	for {
		var (
			cs  []flwor.Clause
			err error
		)
		switch {
		case p.is("for") && (p.isAt(1, "tumbling") || p.isAt(1, "sliding")):
			cs, err = p.window()
		case p.is("for"):
			cs, err = p.forClause()
		case p.is("let"):
			cs, err = p.letClause()
		case p.is("where"):
			p.advance()
			var e expr.Expr
			if e, err = p.exprSingle(); err == nil {
				cs = []flwor.Clause{&flwor.Where{Expr: e}}
			}
		case p.is("order") || p.is("stable"):
			cs, err = p.orderBy(s)
		case p.is("group"):
			cs, err = p.groupBy(s)
		case p.is("count"):
			p.advance()
			var name string
			if name, err = p.varName(); err == nil {
				v := expr.NewVar(name, nil)
				p.declare(v)
				cs = []flwor.Clause{&flwor.Count{Var: v}}
			}
		case p.is("return"):
			if len(clauses) == 0 {
				return nil, p.errorf(p.peek(), "FLWOR expression without clauses")
			}
			p.advance()
			ret, err := p.exprSingle()
			if err != nil {
				return nil, err
			}
			return flwor.New(ret, clauses...), nil
		default:
			return nil, p.errorf(p.peek(), "expected clause or return, found %s", p.peek())
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, cs...)
	}
}

// forClause parses `for $x [as T] [allowing empty] [at $p] [score $s] in E`
// with any number of comma-separated bindings.
func (p *parser) forClause() ([]flwor.Clause, error) {
	p.advance()
	var out []flwor.Clause
	for {
		name, err := p.varName()
		if err != nil {
			return nil, err
		}
		declared, err := p.optType()
		if err != nil {
			return nil, err
		}
		f := &flwor.For{Var: expr.NewVar(name, declared)}
		for !p.is("in") {
			switch {
			case p.is("allowing") && p.isAt(1, "empty"):
				p.advance()
				p.advance()
				f.AllowEmpty = true
			case p.accept("at"):
				n, err := p.varName()
				if err != nil {
					return nil, err
				}
				f.Pos = expr.NewVar(n, nil)
			case p.accept("score"):
				n, err := p.varName()
				if err != nil {
					return nil, err
				}
				f.Score = expr.NewVar(n, nil)
			default:
				return nil, p.errorf(p.peek(), "expected \"in\", found %s", p.peek())
			}
		}
		p.advance()
		if f.Expr, err = p.exprSingle(); err != nil {
			return nil, err
		}
		for _, v := range f.Vars() {
			p.declare(v)
		}
		out = append(out, f)
		if !p.accept(",") {
			return out, nil
		}
	}
}

// letClause parses `let $x [as T] := E` and `let score $s := E` with any
// number of comma-separated bindings.
func (p *parser) letClause() ([]flwor.Clause, error) {
	p.advance()
	var out []flwor.Clause
	for {
		scoring := p.accept("score")
		name, err := p.varName()
		if err != nil {
			return nil, err
		}
		var declared *expr.SeqType
		if !scoring {
			if declared, err = p.optType(); err != nil {
				return nil, err
			}
		}
		if err := p.expect(":="); err != nil {
			return nil, err
		}
		e, err := p.exprSingle()
		if err != nil {
			return nil, err
		}
		l := &flwor.Let{Var: expr.NewVar(name, declared), Expr: e, Scoring: scoring}
		p.declare(l.Var)
		out = append(out, l)
		if !p.accept(",") {
			return out, nil
		}
	}
}

// window parses `for tumbling|sliding window $w in E size N`.
func (p *parser) window() ([]flwor.Clause, error) {
	p.advance()
	sliding := p.advance().text == "sliding"
	if err := p.expect("window"); err != nil {
		return nil, err
	}
	name, err := p.varName()
	if err != nil {
		return nil, err
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	e, err := p.exprSingle()
	if err != nil {
		return nil, err
	}
	if err := p.expect("size"); err != nil {
		return nil, err
	}
	neg := p.accept("-")
	t := p.peek()
	if t.kind != tokInt {
		return nil, p.errorf(t, "expected window size, found %s", t)
	}
	p.advance()
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return nil, p.errorf(t, "window size out of range: %s", t.text)
	}
	if neg {
		n = -n
	}
	v := expr.NewVar(name, nil)
	w, err := flwor.NewWindow(v, e, sliding, n)
	if err != nil {
		return nil, err
	}
	p.declare(v)
	return []flwor.Clause{w}, nil
}

// orderBy parses `[stable] order by E [ascending|descending]
// [collation "tag"], ...`. Every FLWOR variable visible at this point
// travels through the sort.
func (p *parser) orderBy(s *scope) ([]flwor.Clause, error) {
	p.accept("stable")
	if err := p.expect("order"); err != nil {
		return nil, err
	}
	if err := p.expect("by"); err != nil {
		return nil, err
	}
	ob := &flwor.OrderBy{Refs: p.flworVars(s)}
	for {
		e, err := p.exprSingle()
		if err != nil {
			return nil, err
		}
		k := flwor.OrderKey{Expr: e}
		if p.accept("descending") {
			k.Descending = true
		} else {
			p.accept("ascending")
		}
		if p.accept("collation") {
			t := p.peek()
			if t.kind != tokStr {
				return nil, p.errorf(t, "expected collation string, found %s", t)
			}
			p.advance()
			k.Collation = t.text
		}
		ob.Keys = append(ob.Keys, k)
		if !p.accept(",") {
			return []flwor.Clause{ob}, nil
		}
	}
}

// groupBy parses `group by $k [:= E], ...`. The FLWOR variables visible
// before the clause are rebound to the concatenation of their values in
// each group.
func (p *parser) groupBy(s *scope) ([]flwor.Clause, error) {
	p.advance()
	if err := p.expect("by"); err != nil {
		return nil, err
	}
	g := &flwor.GroupBy{}
	for {
		t := p.peek()
		name, err := p.varName()
		if err != nil {
			return nil, err
		}
		var e expr.Expr
		if p.accept(":=") {
			if e, err = p.exprSingle(); err != nil {
				return nil, err
			}
		} else {
			v := p.lookup(name)
			if v == nil {
				return nil, ir.StaticErrorf(ir.ErrCodeUndefinedVar, "offset %d: undefined variable $%s", t.pos, name)
			}
			e = &expr.VarRef{Var: v}
		}
		g.Specs = append(g.Specs, flwor.GroupSpec{Var: expr.NewVar(name, nil), Expr: e})
		if !p.accept(",") {
			break
		}
	}
	for _, v := range p.flworVars(s) {
		if grouping(g, v.Name) {
			continue
		}
		g.Pre = append(g.Pre, &expr.VarRef{Var: v})
		g.Post = append(g.Post, expr.NewVar(v.Name, nil))
	}
	for _, v := range g.Post {
		p.declare(v)
	}
	for _, spec := range g.Specs {
		p.declare(spec.Var)
	}
	return []flwor.Clause{g}, nil
}

func grouping(g *flwor.GroupBy, name string) bool {
	for _, s := range g.Specs {
		if s.Var.Name == name {
			return true
		}
	}
	return false
}
