package expr

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/HGData/basex/internal/ir"
)

// builtin describes a built-in function.
type builtin struct {
	min, max int // arity; max -1 is variadic
	flags    Flag
	env      bool // reads dynamic state beyond the focus (documents, random, updates)
	typ      func(args []Expr) SeqType
	eval     func(env *Env, args []Expr) (ir.Seq, error)
}

func fixed(t SeqType) func([]Expr) SeqType { return func([]Expr) SeqType { return t } }

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"true": {typ: fixed(BooleanOne), eval: func(*Env, []Expr) (ir.Seq, error) {
			return ir.Single(ir.Bool(true)), nil
		}},
		"false": {typ: fixed(BooleanOne), eval: func(*Env, []Expr) (ir.Seq, error) {
			return ir.Single(ir.Bool(false)), nil
		}},
		"not": {min: 1, max: 1, typ: fixed(BooleanOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			b, err := ebv(env, args[0])
			return ir.Single(ir.Bool(!b)), err
		}},
		"boolean": {min: 1, max: 1, typ: fixed(BooleanOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			b, err := ebv(env, args[0])
			return ir.Single(ir.Bool(b)), err
		}},
		"count": {min: 1, max: 1, typ: fixed(IntegerOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			s, err := args[0].Eval(env)
			return ir.Single(ir.Int(len(s))), err
		}},
		"empty": {min: 1, max: 1, typ: fixed(BooleanOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			s, err := args[0].Eval(env)
			return ir.Single(ir.Bool(len(s) == 0)), err
		}},
		"exists": {min: 1, max: 1, typ: fixed(BooleanOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			s, err := args[0].Eval(env)
			return ir.Single(ir.Bool(len(s) > 0)), err
		}},
		"sum": {min: 1, max: 1, typ: sumType, eval: evalSum},
		"concat": {min: 1, max: -1, typ: fixed(StringOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			var b strings.Builder
			for _, a := range args {
				s, err := a.Eval(env)
				if err != nil {
					return nil, err
				}
				for _, it := range ir.Atomize(s) {
					b.WriteString(it.String())
				}
			}
			return ir.Single(ir.Str(b.String())), nil
		}},
		"string": {min: 1, max: 1, typ: fixed(StringOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			s, err := stringArg(env, args[0])
			return ir.Single(ir.Str(s)), err
		}},
		"upper-case": {min: 1, max: 1, typ: fixed(StringOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			s, err := stringArg(env, args[0])
			return ir.Single(ir.Str(strings.ToUpper(s))), err
		}},
		"data": {min: 1, max: 1, typ: fixed(ItemStar), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			s, err := args[0].Eval(env)
			return ir.Atomize(s), err
		}},
		"distinct-values": {min: 1, max: 1, typ: fixed(ItemStar), eval: evalDistinct},
		"score": {min: 1, max: 1, typ: fixed(DecimalOne), eval: func(env *Env, args []Expr) (ir.Seq, error) {
			b, err := ebv(env, args[0])
			if err != nil {
				return nil, err
			}
			if b {
				return ir.Single(ir.NewDec(decimal.NewFromInt(1))), nil
			}
			return ir.Single(ir.NewDec(decimal.Zero)), nil
		}},
		"position": {flags: CTX, typ: fixed(IntegerOne), eval: func(env *Env, _ []Expr) (ir.Seq, error) {
			f, err := env.contextItem()
			if err != nil {
				return nil, err
			}
			return ir.Single(ir.Int(f.Pos)), nil
		}},
		"last": {flags: CTX, typ: fixed(IntegerOne), eval: func(env *Env, _ []Expr) (ir.Seq, error) {
			f, err := env.contextItem()
			if err != nil {
				return nil, err
			}
			return ir.Single(ir.Int(f.Size)), nil
		}},
		"random": {flags: NDT, env: true, typ: fixed(DecimalOne), eval: func(env *Env, _ []Expr) (ir.Seq, error) {
			return ir.Single(ir.NewDec(decimal.New(env.Rand.Int64N(1_000_000), -6))), nil
		}},
		"error": {max: 2, flags: NDT, env: true, typ: fixed(EmptySeq), eval: evalError},
		"doc": {min: 1, max: 1, env: true, typ: fixed(SeqType{Item: ir.TypeNode, Occ: OccOne}), eval: evalDoc},
		"put": {min: 2, max: 2, flags: UPD, env: true, typ: fixed(EmptySeq), eval: evalPut},
	}
}

// IsBuiltin reports whether name is a built-in function with the given arity.
func IsBuiltin(name string, arity int) bool {
	def, ok := builtins[name]
	return ok && arity >= def.min && (def.max < 0 || arity <= def.max)
}

// Builtins returns the names of all built-in functions, sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call is a call of a built-in function.
type Call struct {
	Name string
	Args []Expr
}

// NewCall creates a call, checking the function name and arity.
func NewCall(name string, args ...Expr) (*Call, error) {
	if !IsBuiltin(name, len(args)) {
		return nil, ir.StaticErrorf(ir.ErrCodeUnknownFunction, "unknown function %s#%d", name, len(args))
	}
	return &Call{Name: name, Args: args}, nil
}

func (c *Call) def() builtin { return builtins[c.Name] }

func (c *Call) Flags() Flag { return c.def().flags | flagsOf(c.Args...) }

func (c *Call) Size() int64 {
	lo, hi := c.Type().Occ.Bounds()
	if lo == hi {
		return lo
	}
	return -1
}

func (c *Call) Type() SeqType { return c.def().typ(c.Args) }

func (c *Call) Compile(cc *Context) (Expr, error) {
	args, err := compileOf(cc, c.Args)
	if err != nil {
		return nil, err
	}
	return (&Call{Name: c.Name, Args: args}).Optimize(cc)
}

// Optimize pre-evaluates pure calls over values and answers count, empty
// and exists from the static size of their argument.
func (c *Call) Optimize(cc *Context) (Expr, error) {
	if len(c.Args) == 1 && !Has(c.Args[0], NDT|UPD) {
		switch n := c.Args[0].Size(); {
		case n < 0:
		case c.Name == "count":
			return Int(n), nil
		case c.Name == "empty":
			return Bool(n == 0), nil
		case c.Name == "exists":
			return Bool(n > 0), nil
		}
	}
	if c.Name == "boolean" && c.Args[0].Type().InstanceOf(BooleanOne) {
		return c.Args[0], nil
	}
	if c.def().env {
		return c, nil
	}
	return fold(cc, c, c.Args...)
}

func (c *Call) Copy(vm VarMap) Expr    { return &Call{Name: c.Name, Args: copyOf(vm, c.Args)} }
func (c *Call) Count(v *Var) Usage     { return countOf(v, c.Args...) }
func (c *Call) Inlineable(v *Var) bool { return inlineableOf(v, c.Args...) }
func (c *Call) Children() []Expr       { return c.Args }

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (c *Call) Inline(v *Var, with Expr, cc *Context) (Expr, error) {
	args, err := inlineOf(cc, v, with, c.Args)
	if err != nil || args == nil {
		return nil, err
	}
	return (&Call{Name: c.Name, Args: args}).Optimize(cc)
}

func (c *Call) Eval(env *Env) (ir.Seq, error) { return c.def().eval(env, c.Args) }

func sumType(args []Expr) SeqType {
	if args[0].Type().Item == ir.TypeInteger {
		return IntegerOne
	}
	return DecimalOne
}

func evalSum(env *Env, args []Expr) (ir.Seq, error) {
	s, err := args[0].Eval(env)
	if err != nil {
		return nil, err
	}
	acc := ir.Single(ir.Int(0))
	for _, it := range s {
		acc, err = ir.Arith(ir.OpAdd, acc, ir.Single(it))
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func evalDistinct(env *Env, args []Expr) (ir.Seq, error) {
	s, err := args[0].Eval(env)
	if err != nil {
		return nil, err
	}
	var out ir.Seq
	for _, it := range ir.Atomize(s) {
		dup := false
		for _, seen := range out {
			if ir.DeepEqual(seen, it) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return out, nil
}

func stringArg(env *Env, e Expr) (string, error) {
	s, err := e.Eval(env)
	if err != nil || len(s) == 0 {
		return "", err
	}
	if len(s) > 1 {
		return "", ir.Errorf(ir.ErrCodeType, "expected at most one item, got %d", len(s))
	}
	return s[0].String(), nil
}

func evalError(env *Env, args []Expr) (ir.Seq, error) {
	code, msg := ir.ErrCodeUser, "error() called"
	if len(args) > 0 {
		s, err := stringArg(env, args[0])
		if err != nil {
			return nil, err
		}
		code = ir.ErrorCode(s)
	}
	if len(args) > 1 {
		s, err := stringArg(env, args[1])
		if err != nil {
			return nil, err
		}
		msg = s
	}
	return nil, ir.Errorf(code, "%s", msg)
}

func evalDoc(env *Env, args []Expr) (ir.Seq, error) {
	uri, err := stringArg(env, args[0])
	if err != nil {
		return nil, err
	}
	doc, ok := env.Docs[uri]
	if !ok {
		return nil, ir.Errorf(ir.ErrCodeDocument, "document %q not found", uri)
	}
	return ir.Single(doc), nil
}

func evalPut(env *Env, args []Expr) (ir.Seq, error) {
	it, err := evalOne(env, args[0])
	if err != nil {
		return nil, err
	}
	n, ok := it.(*ir.Node)
	if !ok {
		return nil, ir.Errorf(ir.ErrCodeType, "put() expects a node, got %s", it.Type())
	}
	uri, err := stringArg(env, args[1])
	if err != nil {
		return nil, err
	}
	env.Updates = append(env.Updates, Update{Node: n, URI: uri})
	return ir.Empty, nil
}
