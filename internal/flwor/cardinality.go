package flwor

import (
	"fmt"
	"math"

	"github.com/HGData/basex/internal/expr"
)

// Bounds are conservative bounds on a number of tuples or items. Max is -1
// when unbounded.
type Bounds struct {
	Min, Max int64
}

// one is the single tuple that enters a pipeline.
var one = Bounds{Min: 1, Max: 1}

// Exact returns the exact count, or -1 if the bounds differ.
func (b Bounds) Exact() int64 {
	if b.Min == b.Max {
		return b.Min
	}
	return -1
}

// Contains reports whether n lies within the bounds.
func (b Bounds) Contains(n int64) bool {
	return n >= b.Min && (b.Max < 0 || n <= b.Max)
}

func (b Bounds) String() string {
	if b.Max < 0 {
		return fmt.Sprintf("[%d, *]", b.Min)
	}
	return fmt.Sprintf("[%d, %d]", b.Min, b.Max)
}

// times multiplies bounds; a zero factor wins over an unbounded one.
func (b Bounds) times(o Bounds) Bounds {
	return Bounds{Min: mulMin(b.Min, o.Min), Max: mulMax(b.Max, o.Max)}
}

func mulMin(a, b int64) int64 {
	if a != 0 && b > math.MaxInt64/a {
		return math.MaxInt64
	}
	return a * b
}

func mulMax(a, b int64) int64 {
	switch {
	case a == 0 || b == 0:
		return 0
	case a < 0 || b < 0:
		return -1
	case b > math.MaxInt64/a:
		return -1
	}
	return a * b
}

// sizeOf returns the bounds on the number of items e yields.
func sizeOf(e expr.Expr) Bounds {
	if n := e.Size(); n >= 0 {
		return Bounds{Min: n, Max: n}
	}
	lo, hi := e.Type().Occ.Bounds()
	return Bounds{Min: lo, Max: hi}
}

// estimate updates the incoming tuple bounds b with the effect of c.
func estimate(c Clause, b Bounds) Bounds {
	switch c := c.(type) {
	case *For:
		sz := sizeOf(c.Expr)
		if c.AllowEmpty {
			sz.Min = max(sz.Min, 1)
			if sz.Max == 0 {
				sz.Max = 1
			}
		}
		return b.times(sz)
	case *Window:
		sz := sizeOf(c.Expr)
		return b.times(Bounds{Min: c.windows(sz.Min), Max: c.windows(sz.Max)})
	case *Where:
		if c.isFalse() {
			return Bounds{}
		}
		if v, ok, err := c.constant(); err == nil && ok && v {
			return b
		}
		return Bounds{Min: 0, Max: b.Max}
	case *GroupBy:
		return Bounds{Min: min(b.Min, 1), Max: b.Max}
	case *Let, *Count, *OrderBy:
		return b
	default:
		panic(fmt.Sprintf("flwor: unknown clause %T", c))
	}
}

// calcSize returns the bounds on the number of tuples the clauses produce.
// With ret, the return expression's own size is included. The estimate
// stops once no tuple can be produced.
func (p pipeline) calcSize(ret bool) Bounds {
	b := one
	for _, c := range p.clauses {
		if b.Max == 0 {
			break
		}
		b = estimate(c, b)
	}
	if !ret || b.Max == 0 {
		return b
	}
	size := p.ret.Size()
	b.Min = mulMin(b.Min, max(size, 0))
	switch {
	case b.Max > 0 && size >= 0:
		b.Max = mulMax(b.Max, size)
	case b.Max > 0:
		b.Max = -1
	case size == 0:
		b.Max = 0
	}
	return b
}
