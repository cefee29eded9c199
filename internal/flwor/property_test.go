package flwor_test

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
	"github.com/HGData/basex/internal/parse"
)

func TestMain(m *testing.M) {
	// A command line -rapid.checks still wins: flags are parsed in m.Run.
	if err := flag.Set("rapid.checks", "1000"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// queryGen draws random FLWOR expressions over integers that cannot raise
// dynamic errors. items holds variables bound to at most one integer, seqs
// variables bound to integer sequences and pos positional variables.
type queryGen struct {
	t     *rapid.T
	items []string
	seqs  []string
	pos   []string
	n     int
}

func (g *queryGen) fresh() string {
	g.n++
	return fmt.Sprintf("$v%d", g.n)
}

func (g *queryGen) pick(label string, vars []string) string {
	return rapid.SampledFrom(vars).Draw(g.t, label)
}

func (g *queryGen) source(depth int) string {
	switch rapid.IntRange(0, 5).Draw(g.t, "source") {
	case 0:
		lo := rapid.IntRange(0, 3).Draw(g.t, "lo")
		hi := rapid.IntRange(0, 5).Draw(g.t, "hi")
		return fmt.Sprintf("(%d to %d)", lo, hi)
	case 1:
		return "$in"
	case 2:
		return "()"
	case 3:
		if len(g.seqs) > 0 {
			return g.pick("seq", g.seqs)
		}
		return "(1, 2)"
	case 4:
		if len(g.items) > 0 {
			return fmt.Sprintf("(1 to %s)", g.pick("item", g.items))
		}
		return "(2, 3, 2)"
	default:
		if depth > 1 {
			return "(4, 5)"
		}
		v := g.fresh()
		k := rapid.IntRange(0, 3).Draw(g.t, "k")
		return fmt.Sprintf("(for %s in %s where %s > %d return %s * 2)", v, g.source(depth+1), v, k, v)
	}
}

func (g *queryGen) scalar(depth int) string {
	switch rapid.IntRange(0, 4).Draw(g.t, "scalar") {
	case 0:
		return fmt.Sprint(rapid.IntRange(-2, 5).Draw(g.t, "lit"))
	case 1:
		if len(g.items) > 0 {
			return g.pick("item", g.items)
		}
		return "1"
	case 2:
		return fmt.Sprintf("count(%s)", g.source(depth))
	case 3:
		return fmt.Sprintf("sum(%s)", g.source(depth))
	default:
		if len(g.items) > 0 {
			return fmt.Sprintf("%s + %d", g.pick("item", g.items), rapid.IntRange(0, 3).Draw(g.t, "add"))
		}
		return "2"
	}
}

func (g *queryGen) condition() string {
	switch rapid.IntRange(0, 4).Draw(g.t, "cond") {
	case 0:
		return fmt.Sprintf("%s > %d", g.scalar(0), rapid.IntRange(-2, 4).Draw(g.t, "bound"))
	case 1:
		return fmt.Sprintf("(%s) mod 2 = 0", g.scalar(0))
	case 2:
		return fmt.Sprintf("exists(%s)", g.source(0))
	case 3:
		if len(g.pos) == 0 {
			return "true()"
		}
		op := rapid.SampledFrom([]string{"=", "<", "<=", ">", ">="}).Draw(g.t, "posop")
		bound := rapid.SampledFrom([]int64{-2, -1, 0, 1, 2, 4, math.MaxInt64}).Draw(g.t, "posbound")
		return fmt.Sprintf("%s %s %d", g.pick("pos", g.pos), op, bound)
	default:
		return rapid.SampledFrom([]string{"true()", "false()"}).Draw(g.t, "const")
	}
}

func (g *queryGen) clause(first bool) string {
	kind := rapid.IntRange(0, 7).Draw(g.t, "clause")
	if first {
		kind %= 3
	}
	switch kind {
	case 0:
		v := g.fresh()
		src := g.source(0)
		var b strings.Builder
		b.WriteString("for " + v)
		if rapid.Bool().Draw(g.t, "empty") {
			b.WriteString(" allowing empty")
		}
		g.items = append(g.items, v)
		if rapid.Bool().Draw(g.t, "at") {
			p := g.fresh()
			b.WriteString(" at " + p)
			g.items = append(g.items, p)
			g.pos = append(g.pos, p)
		}
		b.WriteString(" in " + src)
		return b.String()
	case 1:
		v := g.fresh()
		s := g.scalar(0)
		g.items = append(g.items, v)
		return fmt.Sprintf("let %s := %s", v, s)
	case 2:
		v := g.fresh()
		s := g.source(0)
		g.seqs = append(g.seqs, v)
		return fmt.Sprintf("let %s := %s", v, s)
	case 3:
		return "where " + g.condition()
	case 4:
		v := g.fresh()
		g.items = append(g.items, v)
		return "count " + v
	case 5:
		if len(g.items) == 0 {
			return "where true()"
		}
		dir := rapid.SampledFrom([]string{"", " descending"}).Draw(g.t, "dir")
		return fmt.Sprintf("order by %s%s", g.pick("key", g.items), dir)
	case 6:
		if len(g.items) == 0 {
			return "where false()"
		}
		key := g.pick("key", g.items)
		k := g.fresh()
		g.seqs = append(g.seqs, g.items...)
		g.items = []string{k}
		g.pos = nil
		return fmt.Sprintf("group by %s := %s", k, key)
	default:
		v := g.fresh()
		src := g.source(0)
		size := rapid.IntRange(1, 3).Draw(g.t, "size")
		g.seqs = append(g.seqs, v)
		mode := rapid.SampledFrom([]string{"tumbling", "sliding"}).Draw(g.t, "mode")
		return fmt.Sprintf("for %s window %s in %s size %d", mode, v, src, size)
	}
}

func (g *queryGen) ret(depth int) string {
	n := rapid.IntRange(1, 3).Draw(g.t, "results")
	parts := make([]string, n)
	for i := range parts {
		switch {
		case depth == 0 && rapid.IntRange(0, 3).Draw(g.t, "nested") == 0:
			parts[i] = g.nested()
		case len(g.seqs) > 0 && rapid.Bool().Draw(g.t, "agg"):
			parts[i] = fmt.Sprintf("count(%s)", g.pick("seq", g.seqs))
		default:
			parts[i] = g.scalar(0)
		}
	}
	if n == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// nested draws a FLWOR expression that sees the variables in scope. Its own
// bindings go out of scope afterwards.
func (g *queryGen) nested() string {
	items, seqs, pos := g.items, g.seqs, g.pos
	g.items, g.seqs, g.pos = slices.Clone(items), slices.Clone(seqs), slices.Clone(pos)
	defer func() { g.items, g.seqs, g.pos = items, seqs, pos }()
	return "(" + g.flwor(1, 3, 1) + ")"
}

func (g *queryGen) flwor(lo, hi, depth int) string {
	var b strings.Builder
	n := rapid.IntRange(lo, hi).Draw(g.t, "clauses")
	for i := 0; i < n; i++ {
		b.WriteString(g.clause(i == 0))
		b.WriteByte(' ')
	}
	b.WriteString("return ")
	b.WriteString(g.ret(depth))
	return b.String()
}

func drawQuery(t *rapid.T) string {
	g := &queryGen{t: t}
	return "declare variable $in external; " + g.flwor(1, 5, 0)
}

func drawInput(t *rapid.T) ir.Seq {
	vals := rapid.SliceOfN(rapid.IntRange(0, 9), 0, 4).Draw(t, "in")
	out := make(ir.Seq, len(vals))
	for i, v := range vals {
		out[i] = ir.Int(v)
	}
	return out
}

func evalParsed(t *rapid.T, q *parse.Query, e expr.Expr, in ir.Seq) ir.Seq {
	env := expr.NewEnv(context.Background())
	env.Bind(q.External("in"), in)
	got, err := e.Eval(env)
	require.NoError(t, err, "%s", e)
	return got
}

func TestOptimizePreservesResults(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		query := drawQuery(t)
		in := drawInput(t)

		raw, err := parse.Parse(query)
		require.NoError(t, err, query)
		want := evalParsed(t, raw, raw.Body, in)

		q, err := parse.Parse(query)
		require.NoError(t, err, query)
		plan, err := q.Body.Compile(expr.NewContext(context.Background()))
		require.NoError(t, err, query)
		got := evalParsed(t, q, plan, in)

		require.Equal(t, want.String(), got.String(), "query: %s\nplan: %s", query, plan)
	})
}

func TestOptimizedCardinalityIsSound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		query := drawQuery(t)
		in := drawInput(t)

		q, err := parse.Parse(query)
		require.NoError(t, err, query)
		plan, err := q.Body.Compile(expr.NewContext(context.Background()))
		require.NoError(t, err, query)
		n := int64(len(evalParsed(t, q, plan, in)))

		lo, hi := plan.Type().Occ.Bounds()
		require.GreaterOrEqual(t, n, lo, "plan: %s", plan)
		if hi >= 0 {
			require.LessOrEqual(t, n, hi, "plan: %s", plan)
		}
		if size := plan.Size(); size >= 0 {
			require.Equal(t, size, n, "plan: %s", plan)
		}
	})
}

func TestOptimizeIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		query := drawQuery(t)
		q, err := parse.Parse(query)
		require.NoError(t, err, query)
		plan, err := q.Body.Compile(expr.NewContext(context.Background()))
		require.NoError(t, err, query)
		once := plan.String()

		again, err := plan.Compile(expr.NewContext(context.Background()))
		require.NoError(t, err, "plan: %s", once)
		require.Equal(t, once, again.String(), "query: %s", query)
	})
}
