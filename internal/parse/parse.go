package parse

import (
	"fmt"
	"strconv"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

// Query is a parsed query: its external variables and its body.
type Query struct {
	Externals []*expr.Var
	Body      expr.Expr
}

// External returns the external variable with the given name, or nil.
func (q *Query) External(name string) *expr.Var {
	for _, v := range q.Externals {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Parse parses a query. Variable references are resolved to their
// declarations; a reference to an undeclared variable is a static error.
func Parse(query string) (*Query, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	q, err := p.module()
	if err != nil {
		return nil, err
	}
	return q, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(query string) *Query {
	q, err := Parse(query)
	if err != nil {
		panic(err)
	}
	return q
}

// scope is one level of variable bindings: the prolog or one FLWOR
// expression.
type scope struct {
	vars []*expr.Var
}

type parser struct {
	toks   []token
	i      int
	scopes []*scope
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return ir.StaticErrorf(ir.ErrCodeSyntax, "offset %d: %s", t.pos, fmt.Sprintf(format, args...))
}

// is reports whether the next token is the symbol or name text.
func (p *parser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokName) && t.text == text
}

func (p *parser) isAt(n int, text string) bool {
	t := p.peekAt(n)
	return (t.kind == tokPunct || t.kind == tokName) && t.text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf(p.peek(), "expected %q, found %s", text, p.peek())
	}
	return nil
}

func (p *parser) varName() (string, error) {
	t := p.peek()
	if t.kind != tokVar {
		return "", p.errorf(t, "expected variable, found %s", t)
	}
	p.advance()
	return t.text, nil
}

func (p *parser) push() *scope {
	s := &scope{}
	p.scopes = append(p.scopes, s)
	return s
}

func (p *parser) pop() { p.scopes = p.scopes[:len(p.scopes)-1] }

func (p *parser) declare(v *expr.Var) {
	s := p.scopes[len(p.scopes)-1]
	s.vars = append(s.vars, v)
}

func (p *parser) lookup(name string) *expr.Var {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		vs := p.scopes[i].vars
		for j := len(vs) - 1; j >= 0; j-- {
			if vs[j].Name == name {
				return vs[j]
			}
		}
	}
	return nil
}

// flworVars returns the variables of s that are not shadowed, in
// declaration order.
func (p *parser) flworVars(s *scope) []*expr.Var {
	var out []*expr.Var
	for i, v := range s.vars {
		shadowed := false
		for _, w := range s.vars[i+1:] {
			if w.Name == v.Name {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, v)
		}
	}
	return out
}

func (p *parser) module() (*Query, error) {
	q := &Query{}
	p.push()
	for p.is("declare") {
		v, err := p.external()
		if err != nil {
			return nil, err
		}
		q.Externals = append(q.Externals, v)
		p.declare(v)
	}
	body, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	q.Body = body
	return q, nil
}

// external parses `declare variable $x [as T] external;`.
func (p *parser) external() (*expr.Var, error) {
	p.advance()
	if err := p.expect("variable"); err != nil {
		return nil, err
	}
	name, err := p.varName()
	if err != nil {
		return nil, err
	}
	declared, err := p.optType()
	if err != nil {
		return nil, err
	}
	if err := p.expect("external"); err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return expr.NewVar(name, declared), nil
}

// optType parses an optional `as T`.
func (p *parser) optType() (*expr.SeqType, error) {
	if !p.accept("as") {
		return nil, nil
	}
	st, err := p.seqType()
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (p *parser) seqType() (expr.SeqType, error) {
	t := p.peek()
	if t.kind != tokName {
		return expr.SeqType{}, p.errorf(t, "expected sequence type, found %s", t)
	}
	p.advance()
	s := t.text
	if p.is("(") && p.isAt(1, ")") {
		p.advance()
		p.advance()
		s += "()"
	}
	for _, occ := range []string{"?", "*", "+"} {
		if p.accept(occ) {
			s += occ
			break
		}
	}
	return expr.ParseSeqType(s)
}

// exprList parses a comma-separated sequence of expressions.
func (p *parser) exprList() (expr.Expr, error) {
	e, err := p.exprSingle()
	if err != nil {
		return nil, err
	}
	if !p.is(",") {
		return e, nil
	}
	items := []expr.Expr{e}
	for p.accept(",") {
		e, err := p.exprSingle()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return &expr.List{Items: items}, nil
}

func (p *parser) exprSingle() (expr.Expr, error) {
	switch {
	case (p.is("for") || p.is("let")) && (p.peekAt(1).kind == tokVar || p.isAt(1, "score") ||
		p.isAt(1, "tumbling") || p.isAt(1, "sliding")):
		return p.flwor()
	case p.is("if") && p.isAt(1, "("):
		return p.ifExpr()
	}
	return p.orExpr()
}

func (p *parser) ifExpr() (expr.Expr, error) {
	p.advance()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if err := p.expect("then"); err != nil {
		return nil, err
	}
	then, err := p.exprSingle()
	if err != nil {
		return nil, err
	}
	if err := p.expect("else"); err != nil {
		return nil, err
	}
	els, err := p.exprSingle()
	if err != nil {
		return nil, err
	}
	return &expr.If{Cond: cond, Then: then, Else: els}, nil
}

func (p *parser) orExpr() (expr.Expr, error) {
	e, err := p.andExpr()
	if err != nil || !p.is("or") {
		return e, err
	}
	ops := []expr.Expr{e}
	for p.accept("or") {
		e, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, e)
	}
	return &expr.Or{Ops: ops}, nil
}

func (p *parser) andExpr() (expr.Expr, error) {
	e, err := p.cmpExpr()
	if err != nil || !p.is("and") {
		return e, err
	}
	ops := []expr.Expr{e}
	for p.accept("and") {
		e, err := p.cmpExpr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, e)
	}
	return expr.NewAnd(ops...), nil
}

var cmpOps = map[string]ir.CmpOp{
	"=": ir.OpEq, "!=": ir.OpNe, "<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe,
}

func (p *parser) cmpExpr() (expr.Expr, error) {
	l, err := p.rangeExpr()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	op, ok := cmpOps[t.text]
	if t.kind != tokPunct || !ok {
		return l, nil
	}
	p.advance()
	r, err := p.rangeExpr()
	if err != nil {
		return nil, err
	}
	return &expr.Cmp{Op: op, L: l, R: r}, nil
}

func (p *parser) rangeExpr() (expr.Expr, error) {
	lo, err := p.additive()
	if err != nil || !p.accept("to") {
		return lo, err
	}
	hi, err := p.additive()
	if err != nil {
		return nil, err
	}
	return &expr.Range{Lo: lo, Hi: hi}, nil
}

func (p *parser) additive() (expr.Expr, error) {
	l, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op ir.ArithOp
		switch {
		case p.is("+"):
			op = ir.OpAdd
		case p.is("-"):
			op = ir.OpSub
		default:
			return l, nil
		}
		p.advance()
		r, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		l = &expr.Arith{Op: op, L: l, R: r}
	}
}

var mulOps = map[string]ir.ArithOp{"*": ir.OpMul, "div": ir.OpDiv, "idiv": ir.OpIDiv, "mod": ir.OpMod}

func (p *parser) multiplicative() (expr.Expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op, ok := mulOps[t.text]
		if !ok || (t.kind != tokPunct && t.kind != tokName) {
			return l, nil
		}
		p.advance()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = &expr.Arith{Op: op, L: l, R: r}
	}
}

func (p *parser) unary() (expr.Expr, error) {
	if p.accept("-") {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &expr.Arith{Op: ir.OpSub, L: expr.Int(0), R: e}, nil
	}
	e, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.is("treat") && p.isAt(1, "as") {
		p.advance()
		p.advance()
		st, err := p.seqType()
		if err != nil {
			return nil, err
		}
		return &expr.TypeCheck{Expr: e, Want: st}, nil
	}
	return e, nil
}

func (p *parser) postfix() (expr.Expr, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("["):
			pred, err := p.exprList()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = expr.NewFilter(e, pred)
		case p.is("/"):
			steps, err := p.steps()
			if err != nil {
				return nil, err
			}
			e = &expr.Path{Root: e, Steps: steps}
		default:
			return e, nil
		}
	}
}

// steps parses `/name/name...`; the name may be "*".
func (p *parser) steps() ([]string, error) {
	var steps []string
	for p.accept("/") {
		t := p.peek()
		if t.kind != tokName && !(t.kind == tokPunct && t.text == "*") {
			return nil, p.errorf(t, "expected step, found %s", t)
		}
		p.advance()
		steps = append(steps, t.text)
	}
	return steps, nil
}

func (p *parser) primary() (expr.Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokInt:
		p.advance()
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "integer out of range: %s", t.text)
		}
		return expr.Int(n), nil
	case tokDec:
		p.advance()
		d, err := ir.ParseDec(t.text)
		if err != nil {
			return nil, p.errorf(t, "invalid decimal %s", t.text)
		}
		return expr.NewValue(ir.Single(d)), nil
	case tokStr:
		p.advance()
		return expr.Str(t.text), nil
	case tokVar:
		p.advance()
		v := p.lookup(t.text)
		if v == nil {
			return nil, ir.StaticErrorf(ir.ErrCodeUndefinedVar, "offset %d: undefined variable $%s", t.pos, t.text)
		}
		return &expr.VarRef{Var: v}, nil
	case tokName:
		if p.isAt(1, "(") {
			return p.call()
		}
		p.advance()
		steps := []string{t.text}
		more, err := p.steps()
		if err != nil {
			return nil, err
		}
		return &expr.Path{Steps: append(steps, more...)}, nil
	case tokPunct:
		switch t.text {
		case "(":
			p.advance()
			if p.accept(")") {
				return expr.EmptyValue(), nil
			}
			e, err := p.exprList()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		case ".":
			p.advance()
			return &expr.ContextItem{}, nil
		case "<":
			return p.elem()
		}
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

func (p *parser) args() ([]expr.Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []expr.Expr
	if p.accept(")") {
		return nil, nil
	}
	for {
		a, err := p.exprSingle()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.accept(")") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) call() (expr.Expr, error) {
	name := p.advance()
	args, err := p.args()
	if err != nil {
		return nil, err
	}
	switch name.text {
	case "replicate", "util:replicate":
		if len(args) != 2 {
			return nil, ir.StaticErrorf(ir.ErrCodeUnknownFunction, "offset %d: unknown function %s#%d", name.pos, name.text, len(args))
		}
		n, ok := intLiteral(args[1])
		if !ok {
			return nil, p.errorf(name, "replicate count must be an integer literal")
		}
		return expr.NewReplicate(args[0], n)
	case "fn:true", "fn:false":
		name.text = name.text[3:]
	}
	return expr.NewCall(name.text, args...)
}

// intLiteral returns the value of an integer literal, possibly negated.
func intLiteral(e expr.Expr) (int64, bool) {
	neg := false
	if a, ok := e.(*expr.Arith); ok && a.Op == ir.OpSub {
		if z, ok := intLiteral(a.L); !ok || z != 0 {
			return 0, false
		}
		e, neg = a.R, true
	}
	v, ok := e.(*expr.Value)
	if !ok || len(v.Seq) != 1 {
		return 0, false
	}
	n, ok := v.Seq[0].(ir.Int)
	if !ok {
		return 0, false
	}
	if neg {
		return -int64(n), true
	}
	return int64(n), true
}

// elem parses a direct element constructor whose content is a sequence of
// enclosed expressions: <a/> or <a>{E}{F}</a>.
func (p *parser) elem() (expr.Expr, error) {
	p.advance()
	t := p.peek()
	if t.kind != tokName {
		return nil, p.errorf(t, "expected element name, found %s", t)
	}
	p.advance()
	if p.accept("/>") {
		return &expr.Elem{Name: t.text}, nil
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	var content []expr.Expr
	for p.accept("{") {
		e, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		content = append(content, e)
	}
	if err := p.expect("</"); err != nil {
		return nil, err
	}
	if end := p.peek(); end.kind != tokName || end.text != t.text {
		return nil, p.errorf(end, "expected </%s>", t.text)
	}
	p.advance()
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	return &expr.Elem{Name: t.text, Content: content}, nil
}
