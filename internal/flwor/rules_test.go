package flwor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

func newCC() *expr.Context { return expr.NewContext(context.Background()) }

func ref(v *expr.Var) *expr.VarRef { return &expr.VarRef{Var: v} }

func ints(ns ...int64) *expr.Value {
	s := make(ir.Seq, len(ns))
	for i, n := range ns {
		s[i] = ir.Int(n)
	}
	return expr.NewValue(s)
}

func eq(l, r expr.Expr) *expr.Cmp { return &expr.Cmp{Op: ir.OpEq, L: l, R: r} }

func TestBounds(t *testing.T) {
	assert.Equal(t, Bounds{Min: 6, Max: 6}, Bounds{2, 2}.times(Bounds{3, 3}))
	assert.Equal(t, Bounds{Min: 0, Max: -1}, Bounds{0, -1}.times(Bounds{1, 1}))
	assert.Equal(t, Bounds{Min: 0, Max: 0}, Bounds{0, 0}.times(Bounds{1, -1}), "zero wins over unbounded")
	assert.Equal(t, int64(4), Bounds{4, 4}.Exact())
	assert.Equal(t, int64(-1), Bounds{0, 4}.Exact())
	assert.True(t, Bounds{1, -1}.Contains(1000))
	assert.False(t, Bounds{1, 3}.Contains(0))
	assert.Equal(t, "[1, *]", Bounds{1, -1}.String())
	assert.Equal(t, "[0, 2]", Bounds{0, 2}.String())
}

func TestCalcSize(t *testing.T) {
	x := expr.NewVar("x", nil)
	w := expr.NewVar("w", nil)

	tests := []struct {
		name    string
		clauses []Clause
		want    Bounds
	}{
		{"for", []Clause{&For{Var: x, Expr: ints(1, 2, 3)}}, Bounds{3, 3}},
		{"let", []Clause{&Let{Var: x, Expr: ints(1, 2, 3)}}, Bounds{1, 1}},
		{"where", []Clause{&For{Var: x, Expr: ints(1, 2, 3)}, &Where{Expr: eq(ref(x), expr.Int(1))}}, Bounds{0, 3}},
		{"false where", []Clause{&For{Var: x, Expr: ints(1, 2)}, &Where{Expr: expr.Bool(false)}}, Bounds{0, 0}},
		{"true where", []Clause{&For{Var: x, Expr: ints(1, 2)}, &Where{Expr: expr.Bool(true)}}, Bounds{2, 2}},
		{"allowing empty", []Clause{&For{Var: x, Expr: expr.EmptyValue(), AllowEmpty: true}}, Bounds{1, 1}},
		{"group", []Clause{&For{Var: x, Expr: ints(1, 2, 3)}, &GroupBy{Specs: []GroupSpec{{Var: w, Expr: ref(x)}}}}, Bounds{1, 3}},
		{"tumbling", []Clause{&Window{Var: w, Expr: ints(1, 2, 3, 4, 5), Size: 2}}, Bounds{3, 3}},
		{"sliding", []Clause{&Window{Var: w, Expr: ints(1, 2, 3, 4, 5), Size: 2, Sliding: true}}, Bounds{5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pipeline{clauses: tt.clauses, ret: expr.Int(0)}
			assert.Equal(t, tt.want, p.calcSize(false))
		})
	}
}

func TestCountMultipliesByTuples(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)

	loop := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(1, 2)}}, ret: ref(y)}
	assert.Equal(t, expr.Multiple, loop.count(y, 0))

	single := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(1)}}, ret: ref(y)}
	assert.Equal(t, expr.Once, single.count(y, 0))

	dead := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(1, 2)}, &Where{Expr: expr.Bool(false)}}, ret: ref(y)}
	assert.Equal(t, expr.Once, dead.count(y, 0), "a reference behind a dead clause is still a reference")
}

func TestUnusedVarsKeepsBindingsReadBehindEmptyFor(t *testing.T) {
	v1 := expr.NewVar("v1", nil)
	v2 := expr.NewVar("v2", nil)
	v3 := expr.NewVar("v3", nil)
	in := expr.NewVar("in", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: v1, Pos: v2, Expr: ref(in), AllowEmpty: true},
			&For{Var: v3, Expr: expr.EmptyValue()},
			&Where{Expr: &expr.Cmp{Op: ir.OpLt, L: ref(v2), R: expr.Int(1)}},
		},
		ret: expr.Int(1),
	}
	np, _, err := unusedVars(newCC(), p)
	require.NoError(t, err)
	f, ok := np.clauses[0].(*For)
	require.True(t, ok)
	assert.Same(t, v2, f.Pos, "the where clause still reads the positional variable")
}

func TestFlattenAnd(t *testing.T) {
	x := expr.NewVar("x", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2, 3)},
			&Where{Expr: expr.NewAnd(eq(ref(x), expr.Int(1)), eq(ref(x), expr.Int(2)))},
		},
		ret: ref(x),
	}
	np, ok, err := flattenAnd(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, np.clauses, 3)
	assert.Equal(t, "where $x = 1", np.clauses[1].String())
	assert.Equal(t, "where $x = 2", np.clauses[2].String())
	assert.Len(t, p.clauses, 2, "input pipeline is left alone")
}

func TestFlattenReturn(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	inner := New(ref(y), &For{Var: y, Expr: ref(x)})
	p := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(1, 2)}}, ret: inner}

	np, ok, err := flattenReturn(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "for $x in (1, 2) for $y in $x return $y", np.String())

	grouped := New(ref(y), &For{Var: y, Expr: ref(x)}, &Count{Var: expr.NewVar("c", nil)})
	_, ok, err = flattenReturn(newCC(), p.with(p.clauses, grouped))
	require.NoError(t, err)
	assert.False(t, ok, "only for/let/where pipelines are spliced")
}

func TestFlattenForCountBecomesPosition(t *testing.T) {
	x := expr.NewVar("x", nil)
	c := expr.NewVar("c", nil)
	p := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(5, 6)}, &Count{Var: c}}, ret: ref(c)}

	np, ok, err := flattenFor(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, np.clauses, 1)
	assert.Same(t, c, np.clauses[0].(*For).Pos)
}

func TestFlattenForCountWithPosition(t *testing.T) {
	x := expr.NewVar("x", nil)
	pos := expr.NewVar("p", nil)
	c := expr.NewVar("c", nil)
	p := pipeline{clauses: []Clause{&For{Var: x, Pos: pos, Expr: ints(5, 6)}, &Count{Var: c}}, ret: ref(c)}

	np, ok, err := flattenFor(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "for $x at $p in (5, 6) let $c := $p return $c", np.String())
}

func TestFlattenForNestedSource(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	sub := New(&expr.Arith{Op: ir.OpAdd, L: ref(y), R: expr.Int(1)}, &For{Var: y, Expr: ints(1, 2)})
	p := pipeline{clauses: []Clause{&For{Var: x, Expr: sub}}, ret: ref(x)}

	np, ok, err := flattenFor(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "for $y in (1, 2) for $x in $y + 1 return $x", np.String())
}

func TestForToLet(t *testing.T) {
	x := expr.NewVar("x", nil)
	pos := expr.NewVar("p", nil)
	p := pipeline{clauses: []Clause{&For{Var: x, Pos: pos, Expr: expr.Int(5)}}, ret: &expr.List{Items: []expr.Expr{ref(x), ref(pos)}}}

	np, ok, err := forToLet(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "let $x := 5 let $p := 1 return ($x, $p)", np.String())

	many := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(1, 2)}}, ret: ref(x)}
	_, ok, err = forToLet(newCC(), many)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInlineLets(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2)},
			&Let{Var: y, Expr: expr.Int(10)},
		},
		ret: &expr.Arith{Op: ir.OpAdd, L: ref(x), R: ref(y)},
	}
	np, ok, err := inlineLets(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "for $x in (1, 2) return $x + 10", np.String())
}

func TestInlineLetsKeepsNonDeterministicBindings(t *testing.T) {
	y := expr.NewVar("y", nil)
	rnd, err := expr.NewCall("random")
	require.NoError(t, err)
	p := pipeline{clauses: []Clause{&Let{Var: y, Expr: rnd}}, ret: &expr.List{Items: []expr.Expr{ref(y), ref(y)}}}

	_, ok, err := inlineLets(newCC(), p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInlineLetsIntoGroupedInputs(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	k := expr.NewVar("k", nil)
	post := expr.NewVar("y", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2)},
			&Let{Var: y, Expr: expr.Int(3)},
			&GroupBy{Specs: []GroupSpec{{Var: k, Expr: ref(x)}}, Pre: []expr.Expr{ref(y)}, Post: []*expr.Var{post}},
		},
		ret: ref(post),
	}
	np, ok, err := inlineLets(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, np.clauses, 2)
	g := np.clauses[1].(*GroupBy)
	assert.Equal(t, "3", g.Pre[0].String(), "each tuple contributes the inlined value")
	assert.Equal(t, expr.Never, g.Count(y))
}

func TestGroupByCountsGroupedInputsAsMultiple(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	k := expr.NewVar("k", nil)
	g := &GroupBy{Specs: []GroupSpec{{Var: k, Expr: ref(x)}}, Pre: []expr.Expr{ref(y)}, Post: []*expr.Var{expr.NewVar("y", nil)}}

	assert.Equal(t, expr.Once, g.Count(x))
	assert.Equal(t, expr.Multiple, g.Count(y))
	assert.Contains(t, g.Exprs(), expr.Expr(g.Pre[0]))

	vm := expr.VarMap{}
	ny := vm.Copy(y)
	cp := g.Copy(vm).(*GroupBy)
	assert.Same(t, ny, cp.Pre[0].(*expr.VarRef).Var)
}

func TestSlideLetsOut(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2)},
			&Let{Var: y, Expr: &expr.Range{Lo: expr.Int(1), Hi: expr.Int(100)}},
		},
		ret: &expr.List{Items: []expr.Expr{ref(x), ref(y)}},
	}
	np, ok, err := slideLetsOut(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.IsType(t, &Let{}, np.clauses[0])
	assert.IsType(t, &For{}, np.clauses[1])

	dependent := p.set(1, &Let{Var: y, Expr: ref(x)})
	_, ok, err = slideLetsOut(newCC(), dependent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnusedVars(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	pos := expr.NewVar("p", nil)
	p := pipeline{
		clauses: []Clause{
			&Let{Var: y, Expr: expr.Int(1)},
			&For{Var: x, Pos: pos, Expr: ints(7, 8, 9)},
		},
		ret: expr.Str("a"),
	}
	np, ok, err := unusedVars(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, np.clauses, 1)
	f := np.clauses[0].(*For)
	assert.Nil(t, f.Pos)
	assert.True(t, isPlaceholder(f.Expr))
	assert.Equal(t, int64(3), f.Expr.Size())

	_, ok, err = unusedVars(newCC(), np)
	require.NoError(t, err)
	assert.False(t, ok, "placeholders are not replaced again")
}

func TestUnusedVarsChecksDeclaredType(t *testing.T) {
	st := expr.StringOne
	y := expr.NewVar("y", &st)
	p := pipeline{clauses: []Clause{&Let{Var: y, Expr: expr.Int(1)}}, ret: expr.Int(0)}

	_, _, err := unusedVars(newCC(), p)
	require.Error(t, err)
	qe, ok := ir.AsQueryError(err)
	require.True(t, ok)
	assert.Equal(t, ir.KindStaticType, qe.Kind)
}

func TestCleanDeadVars(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	s := expr.NewVar("s", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Score: s, Expr: ints(3, 1, 2)},
			&Let{Var: y, Expr: expr.Str("k")},
			&OrderBy{Keys: []OrderKey{{Expr: ref(x)}}, Refs: []*expr.Var{x, y, s}},
		},
		ret: ref(x),
	}
	np, ok, err := cleanDeadVars(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	ob := np.clauses[2].(*OrderBy)
	assert.Equal(t, []*expr.Var{x}, ob.Refs)
	assert.Nil(t, np.clauses[0].(*For).Score)
}

func TestCleanDeadVarsGroupBy(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	k := expr.NewVar("k", nil)
	postX := expr.NewVar("x", nil)
	postY := expr.NewVar("y", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2, 1)},
			&Let{Var: y, Expr: ref(x)},
			&GroupBy{
				Specs: []GroupSpec{{Var: k, Expr: ref(x)}},
				Pre:   []expr.Expr{ref(x), ref(y)},
				Post:  []*expr.Var{postX, postY},
			},
		},
		ret: &expr.List{Items: []expr.Expr{ref(k), ref(postY)}},
	}
	np, ok, err := cleanDeadVars(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	g := np.clauses[2].(*GroupBy)
	assert.Equal(t, []expr.Expr{ref(y)}, g.Pre)
	assert.Equal(t, []*expr.Var{postY}, g.Post)
}

func TestOptimizeWhereHoistsAndFolds(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2)},
			&For{Var: y, Expr: ints(3, 4)},
			&Where{Expr: eq(ref(x), expr.Int(1))},
		},
		ret: &expr.List{Items: []expr.Expr{ref(x), ref(y)}},
	}
	np, ok, err := optimizeWhere(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "for $x in 1 for $y in (3, 4) return ($x, $y)", np.String())
}

func TestOptimizeWhereDropsTrue(t *testing.T) {
	x := expr.NewVar("x", nil)
	p := pipeline{
		clauses: []Clause{&For{Var: x, Expr: ints(1, 2)}, &Where{Expr: expr.Bool(true)}},
		ret:     ref(x),
	}
	np, ok, err := optimizeWhere(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, np.clauses, 1)
}

func TestOptimizePos(t *testing.T) {
	x := expr.NewVar("x", nil)
	pos := expr.NewVar("p", nil)
	pos.Refine(expr.IntegerOne)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Pos: pos, Expr: expr.NewValue(ir.Seq{ir.Str("a"), ir.Str("b"), ir.Str("c")})},
			&Where{Expr: eq(ref(pos), expr.Int(2))},
		},
		ret: ref(x),
	}
	np, ok, err := optimizePos(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, np.clauses, 1)
	f := np.clauses[0].(*For)
	assert.Nil(t, f.Pos)
	assert.Equal(t, `"b"`, f.Expr.String())
}

func TestOptimizePosKeepsUsedPosition(t *testing.T) {
	x := expr.NewVar("x", nil)
	pos := expr.NewVar("p", nil)
	pos.Refine(expr.IntegerOne)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Pos: pos, Expr: ints(4, 5, 6)},
			&Where{Expr: eq(ref(pos), expr.Int(2))},
		},
		ret: ref(pos),
	}
	_, ok, err := optimizePos(newCC(), p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeLastClause(t *testing.T) {
	x := expr.NewVar("x", nil)
	p := pipeline{clauses: []Clause{&Let{Var: x, Expr: ints(1, 2)}}, ret: ref(x)}
	np, ok, err := mergeLastClause(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, np.clauses)
	assert.Equal(t, "(1, 2)", np.ret.String())

	st := expr.IntegerStar
	typed := expr.NewVar("t", &st)
	p = pipeline{clauses: []Clause{&Let{Var: typed, Expr: ref(x)}}, ret: ref(typed)}
	_, ok, err = mergeLastClause(newCC(), p)
	require.NoError(t, err)
	assert.False(t, ok, "a binding that checks its type stays")
}

func TestUnnestLets(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	z := expr.NewVar("z", nil)
	inner := New(&expr.List{Items: []expr.Expr{ref(y), ref(z)}},
		&Let{Var: y, Expr: ref(x)},
		&For{Var: z, Expr: ints(1, 2)},
	)
	p := pipeline{clauses: []Clause{&For{Var: x, Expr: ints(5, 6)}}, ret: inner}

	np, ok, err := unnestLets(newCC(), p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, np.clauses, 2)
	assert.IsType(t, &Let{}, np.clauses[1])
	assert.IsType(t, &FLWOR{}, np.ret)
}

func TestRecoverFrom(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	dynamic := ir.Errorf(ir.ErrCodeDivZero, "division by zero")

	guarded := pipeline{
		clauses: []Clause{&Let{Var: y, Expr: expr.Int(1)}, &For{Var: x, Expr: ints(1, 2)}},
		ret:     ref(x),
	}
	cc := newCC()
	np, err := guarded.recoverFrom(cc, 2, dynamic)
	require.NoError(t, err)
	assert.Len(t, np.clauses, 2)
	assert.IsType(t, &expr.Raise{}, np.ret)
	require.Len(t, cc.Deferred(), 1)
	assert.Equal(t, ir.ErrCodeDivZero, cc.Deferred()[0].Code)

	unguarded := pipeline{clauses: []Clause{&Let{Var: y, Expr: expr.Int(1)}}, ret: ref(y)}
	_, err = unguarded.recoverFrom(newCC(), 1, dynamic)
	assert.ErrorIs(t, err, dynamic)

	_, err = guarded.recoverFrom(newCC(), 2, ir.TypeErrorf("never deferred"))
	require.Error(t, err)
	assert.True(t, ir.HasCode(err, ir.ErrCodeType))
}

func TestRuleCatalogue(t *testing.T) {
	names := Rules()
	assert.Equal(t, "flattenAnd", names[0])
	assert.Equal(t, "mergeLastClause", names[len(names)-1])
	assert.Len(t, names, 13)
	assert.True(t, IsRule("inlineLets"))
	assert.False(t, IsRule("mergeWheres"))
}

func TestMergeWheres(t *testing.T) {
	x := expr.NewVar("x", nil)
	p := pipeline{
		clauses: []Clause{
			&For{Var: x, Expr: ints(1, 2, 3)},
			&Where{Expr: eq(ref(x), expr.Int(1))},
			&Where{Expr: eq(ref(x), expr.Int(2))},
		},
		ret: ref(x),
	}
	np := mergeWheres(newCC(), p)
	require.Len(t, np.clauses, 2)
	assert.Equal(t, "where ($x = 1) and ($x = 2)", np.clauses[1].String())

	off := mergeWheres(expr.NewContext(context.Background(), expr.WithDisabledRules("mergeWheres")), p)
	assert.Len(t, off.clauses, 3)
}

func TestIterationLimit(t *testing.T) {
	x := expr.NewVar("x", nil)
	f := New(ref(x), &For{Var: x, Expr: ints(1, 2)})
	cc := expr.NewContext(context.Background(), expr.WithMaxIterations(1))

	_, err := f.Optimize(cc)
	var limit *IterationLimitError
	require.True(t, errors.As(err, &limit))
	assert.Equal(t, 1, limit.Limit)
	assert.Contains(t, limit.Plan, "return")
}

func TestOptimizeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := expr.NewVar("x", nil)
	f := New(ref(x), &For{Var: x, Expr: ints(1, 2)})

	_, err := f.Optimize(expr.NewContext(ctx))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeLeavesInputAlone(t *testing.T) {
	x := expr.NewVar("x", nil)
	y := expr.NewVar("y", nil)
	f := New(&expr.List{Items: []expr.Expr{ref(x), ref(y)}},
		&For{Var: x, Expr: ints(1, 2)},
		&Let{Var: y, Expr: expr.Int(3)},
	)
	before := f.String()
	_, err := f.Optimize(newCC())
	require.NoError(t, err)
	assert.Equal(t, before, f.String())
	assert.Len(t, f.Clauses, 2)
}
