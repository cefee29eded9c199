package expr

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HGData/basex/internal/ir"
)

func newCC() *Context { return NewContext(context.Background()) }

func mustCall(t *testing.T, name string, args ...Expr) *Call {
	t.Helper()
	c, err := NewCall(name, args...)
	require.NoError(t, err)
	return c
}

func TestUsageArithmetic(t *testing.T) {
	assert.Equal(t, Once, Never.Plus(Once))
	assert.Equal(t, Multiple, Once.Plus(Once))
	assert.Equal(t, Never, Once.Times(0))
	assert.Equal(t, Once, Once.Times(1))
	assert.Equal(t, Multiple, Once.Times(-1))
	assert.Equal(t, Multiple, Once.Times(3))
	assert.Equal(t, Never, Never.Times(-1))
}

func TestConstantFolding(t *testing.T) {
	cc := newCC()
	e, err := (&Arith{Op: ir.OpAdd, L: Int(1), R: Int(2)}).Compile(cc)
	require.NoError(t, err)
	assert.Equal(t, "3", e.String())

	e, err = (&Cmp{Op: ir.OpEq, L: Str("a"), R: Str("a")}).Compile(cc)
	require.NoError(t, err)
	assert.Equal(t, "true()", e.String())
}

func TestFoldingErrorFailsCompilation(t *testing.T) {
	_, err := (&Arith{Op: ir.OpDiv, L: Int(1), R: Int(0)}).Compile(newCC())
	require.Error(t, err)
	assert.True(t, ir.HasCode(err, ir.ErrCodeDivZero))
}

func TestNoFoldingOfSideEffects(t *testing.T) {
	cc := newCC()
	rnd := mustCall(t, "random")
	e, err := (&Arith{Op: ir.OpAdd, L: rnd, R: Int(1)}).Compile(cc)
	require.NoError(t, err)
	assert.IsType(t, &Arith{}, e)
	assert.True(t, Has(e, NDT))

	elem := &Elem{Name: "a"}
	assert.True(t, Has(&List{Items: []Expr{Int(1), elem}}, CNS), "flags are monotone")
}

func TestCountOfStaticSize(t *testing.T) {
	cc := newCC()
	e, err := mustCall(t, "count", &Range{Lo: Int(1), Hi: Int(1000)}).Compile(cc)
	require.NoError(t, err)
	assert.Equal(t, "1000", e.String())
}

func TestVarRefInlineCopiesPerUse(t *testing.T) {
	cc := newCC()
	x := NewVar("x", nil)
	inner := NewVar("y", nil)
	// A with-expression that itself contains a variable reference.
	with := &Filter{Source: &VarRef{Var: inner}, Preds: []Expr{&Cmp{Op: ir.OpEq, L: &ContextItem{}, R: Int(1)}}}

	body := &List{Items: []Expr{&VarRef{Var: x}, &VarRef{Var: x}}}
	out, err := body.Inline(x, with, cc)
	require.NoError(t, err)
	list, ok := out.(*List)
	require.True(t, ok)
	require.Len(t, list.Items, 2)
	assert.NotSame(t, list.Items[0], list.Items[1], "non-value expressions are copied per use site")
	assert.Equal(t, Never, out.Count(x))
}

func TestInlineValueShared(t *testing.T) {
	cc := newCC()
	x := NewVar("x", nil)
	v := NewValue(ir.Ints(1, 3))
	out, err := (&Arith{Op: ir.OpAdd, L: &VarRef{Var: x}, R: mustCall(t, "random")}).Inline(x, v, cc)
	require.NoError(t, err)
	assert.Same(t, v, out.(*Arith).L)
}

func TestInlineUnchangedReturnsNil(t *testing.T) {
	x := NewVar("x", nil)
	out, err := (&Arith{Op: ir.OpAdd, L: Int(1), R: mustCall(t, "random")}).Inline(x, Int(2), newCC())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestFilterInlineable(t *testing.T) {
	x := NewVar("x", nil)
	inPred := &Filter{Source: Int(1), Preds: []Expr{&Cmp{Op: ir.OpEq, L: &VarRef{Var: x}, R: Int(1)}}}
	assert.False(t, inPred.Inlineable(x), "the focus differs inside a predicate")

	inSource := &Filter{Source: &VarRef{Var: x}, Preds: []Expr{&ContextItem{}}}
	assert.True(t, inSource.Inlineable(x))
	assert.False(t, Has(inSource, CTX), "predicates bind their own focus")
}

func TestFilterEval(t *testing.T) {
	cc := newCC()
	f := &Filter{Source: NewValue(ir.Seq{ir.Str("a"), ir.Str("b"), ir.Str("c")}),
		Preds: []Expr{&Cmp{Op: ir.OpEq, L: &ContextItem{}, R: Str("b")}}}
	out, err := f.Compile(cc)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, out.String())

	pos := &Filter{Source: &Range{Lo: Int(1), Hi: Int(10)}, Preds: []Expr{Int(2)}}
	out, err = pos.Compile(cc)
	require.NoError(t, err)
	assert.Equal(t, "2", out.String())
}

func TestPosRangeSize(t *testing.T) {
	f := &Filter{Source: &Range{Lo: Int(1), Hi: Int(1000)}, Preds: []Expr{&PosRange{Lo: 3, Hi: 5}}}
	assert.Equal(t, int64(3), f.Size())
	f = &Filter{Source: &Range{Lo: Int(1), Hi: Int(1000)}, Preds: []Expr{&PosRange{Lo: 999, Hi: -1}}}
	assert.Equal(t, int64(2), f.Size())
}

func TestCmpIntRange(t *testing.T) {
	st := IntegerOne
	p := NewVar("p", &st)
	tests := []struct {
		name   string
		op     ir.CmpOp
		r      Expr
		lo, hi int64
	}{
		{"eq", ir.OpEq, Int(2), 2, 2},
		{"eq range", ir.OpEq, &Range{Lo: Int(2), Hi: Int(4)}, 2, 4},
		{"eq range below one", ir.OpEq, &Range{Lo: Int(-3), Hi: Int(2)}, 1, 2},
		{"eq zero", ir.OpEq, Int(0), 1, 0},
		{"eq negative", ir.OpEq, Int(-1), 1, 0},
		{"ge", ir.OpGe, Int(2), 2, -1},
		{"ge negative", ir.OpGe, Int(-5), 1, -1},
		{"gt", ir.OpGt, Int(2), 3, -1},
		{"gt max", ir.OpGt, Int(math.MaxInt64), 1, 0},
		{"le", ir.OpLe, Int(3), 1, 3},
		{"le negative", ir.OpLe, Int(-2), 1, 0},
		{"lt", ir.OpLt, Int(3), 1, 2},
		{"lt zero", ir.OpLt, Int(0), 1, 0},
		{"lt min", ir.OpLt, Int(math.MinInt64), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, lo, hi, ok := (&Cmp{Op: tt.op, L: &VarRef{Var: p}, R: tt.r}).IntRange()
			require.True(t, ok)
			assert.Same(t, p, v)
			assert.Equal(t, tt.lo, lo, "lo")
			assert.Equal(t, tt.hi, hi, "hi")
		})
	}
}

func TestFilterNonPositivePosition(t *testing.T) {
	cc := newCC()
	src := NewValue(ir.Seq{ir.Int(4), ir.Int(5), ir.Int(6)})

	for _, n := range []int64{0, -1} {
		out, err := (&Filter{Source: src, Preds: []Expr{Int(n)}}).Compile(cc)
		require.NoError(t, err)
		assert.Equal(t, "()", out.String(), "[%d]", n)
	}

	x := NewVar("in", nil)
	out, err := (&Filter{Source: &VarRef{Var: x}, Preds: []Expr{&PosRange{Lo: 1, Hi: 0}}}).Optimize(cc)
	require.NoError(t, err)
	assert.Equal(t, "()", out.String())
}

func TestCopyRemapsVariables(t *testing.T) {
	x := NewVar("x", nil)
	vm := VarMap{}
	nx := vm.Copy(x)
	ref := (&VarRef{Var: x}).Copy(vm).(*VarRef)
	assert.Same(t, nx, ref.Var)
	assert.NotEqual(t, x.ID, nx.ID)

	outer := NewVar("o", nil)
	assert.Same(t, outer, (&VarRef{Var: outer}).Copy(vm).(*VarRef).Var, "outer variables are kept")
}

func TestVarTypeChecks(t *testing.T) {
	st := IntegerOne
	x := NewVar("x", &st)
	assert.True(t, x.ChecksType())

	err := x.CheckType(Str("a"))
	require.Error(t, err)
	qe, ok := ir.AsQueryError(err)
	require.True(t, ok)
	assert.Equal(t, ir.KindStaticType, qe.Kind)

	x.Refine(IntegerOne)
	assert.False(t, x.ChecksType(), "a proven declared type needs no runtime check")
}

func TestTypeCheckStaticFailure(t *testing.T) {
	_, err := (&TypeCheck{Expr: Str("a"), Want: IntegerOne}).Optimize(newCC())
	require.Error(t, err)
	qe, _ := ir.AsQueryError(err)
	assert.Equal(t, ir.KindStaticType, qe.Kind)
}

func TestContextErrorBoxing(t *testing.T) {
	cc := newCC()
	e, err := cc.Error(ir.Errorf(ir.ErrCodeDivZero, "division by zero"), Int(1))
	require.NoError(t, err)
	r, ok := e.(*Raise)
	require.True(t, ok)
	assert.True(t, Has(r, NDT))
	assert.Len(t, cc.Deferred(), 1)

	_, err = r.Eval(NewEnv(context.Background()))
	assert.True(t, ir.HasCode(err, ir.ErrCodeDivZero))

	_, err = cc.Error(ir.TypeErrorf("bad"), Int(1))
	assert.Error(t, err, "static type errors are never deferred")
}

func TestContextTrace(t *testing.T) {
	cc := NewContext(context.Background(), WithDisabledRules("inlineLets"))
	cc.Info("forToLet", "%s", "$i")
	cc.Info("inlineLets", "%s", "$i")
	require.Len(t, cc.Trace(), 2)
	assert.Equal(t, int64(1), cc.Trace()[0].Seq)
	assert.Equal(t, int64(2), cc.Trace()[1].Seq)
	assert.False(t, cc.Enabled("inlineLets"))
	assert.True(t, cc.Enabled("forToLet"))
}

func TestPathEval(t *testing.T) {
	doc := ir.NewDocument(ir.NewElement("root", ir.NewElement("a", ir.Str("1")), ir.NewElement("a", ir.Str("2"))))
	env := NewEnv(context.Background())
	env.Docs["d.xml"] = doc

	p := &Path{Root: mustCall(t, "doc", Str("d.xml")), Steps: []string{"root", "a"}}
	s, err := p.Eval(env)
	require.NoError(t, err)
	assert.Len(t, s, 2)

	single := &Path{Root: mustCall(t, "doc", Str("d.xml")), Steps: []string{"*"}}
	assert.Equal(t, int64(1), single.Size())
	assert.Equal(t, int64(-1), p.Size())
}

func TestElemConstructsFreshNodes(t *testing.T) {
	env := NewEnv(context.Background())
	e := &Elem{Name: "r", Content: []Expr{NewValue(ir.Seq{ir.Int(1), ir.Int(2)})}}
	a, err := e.Eval(env)
	require.NoError(t, err)
	b, err := e.Eval(env)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].(*ir.Node).ID, b[0].(*ir.Node).ID)
	assert.Equal(t, "1 2", a[0].String())
}

func TestParseSeqType(t *testing.T) {
	tests := map[string]SeqType{
		"xs:integer":       IntegerOne,
		"xs:integer*":      IntegerStar,
		"item()*":          ItemStar,
		"node()?":          {Item: ir.TypeNode, Occ: OccZeroOrOne},
		"empty-sequence()": EmptySeq,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseSeqType(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, in, got.String())
		})
	}
	_, err := ParseSeqType("xs:float")
	assert.True(t, ir.HasCode(err, ir.ErrCodeSyntax))
}

func TestSeqTypeInstanceOf(t *testing.T) {
	assert.True(t, IntegerOne.InstanceOf(SeqType{Item: ir.TypeDecimal, Occ: OccZeroOrMore}))
	assert.False(t, IntegerStar.InstanceOf(IntegerOne))
	assert.True(t, EmptySeq.InstanceOf(IntegerStar))
	assert.False(t, EmptySeq.InstanceOf(IntegerOne))
}

func TestAndOptimize(t *testing.T) {
	cc := newCC()
	x := NewVar("x", nil)
	cmp := &Cmp{Op: ir.OpEq, L: &VarRef{Var: x}, R: Int(1)}

	e, err := NewAnd(Bool(true), cmp).Optimize(cc)
	require.NoError(t, err)
	assert.Same(t, cmp, e)

	e, err = NewAnd(cmp, Bool(false)).Optimize(cc)
	require.NoError(t, err)
	assert.Equal(t, "false()", e.String())
}
