package flwor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/ir"
)

// stage is one step of the tuple stream. next binds the variables of the
// next tuple in env and reports whether there was one.
type stage interface {
	next(env *expr.Env) (bool, error)
}

// Eval evaluates the clauses as a pull pipeline and concatenates the
// results of the return expression for every tuple.
func (f *FLWOR) Eval(env *expr.Env) (ir.Seq, error) {
	var st stage = &startStage{}
	for _, c := range f.Clauses {
		st = newStage(c, st)
	}
	var out ir.Seq
	for {
		ok, err := st.next(env)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		s, err := f.Return.Eval(env)
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
}

func newStage(c Clause, sub stage) stage {
	switch c := c.(type) {
	case *For:
		return &forStage{sub: sub, c: c}
	case *Let:
		return &letStage{sub: sub, c: c}
	case *Where:
		return &whereStage{sub: sub, c: c}
	case *Count:
		return &countStage{sub: sub, c: c}
	case *Window:
		return &windowStage{sub: sub, c: c}
	case *OrderBy:
		return &orderStage{sub: sub, c: c}
	case *GroupBy:
		return &groupStage{sub: sub, c: c}
	default:
		panic(fmt.Sprintf("flwor: unknown clause %T", c))
	}
}

// startStage yields the single empty tuple.
type startStage struct{ done bool }

func (s *startStage) next(*expr.Env) (bool, error) {
	if s.done {
		return false, nil
	}
	s.done = true
	return true, nil
}

func scoreOf(s ir.Seq) (ir.Item, error) {
	b, err := ir.EBV(s)
	if err != nil {
		return nil, err
	}
	if b {
		return ir.NewDec(decimal.NewFromInt(1)), nil
	}
	return ir.NewDec(decimal.Zero), nil
}

func bind(env *expr.Env, v *expr.Var, s ir.Seq) error {
	if err := v.Check(s); err != nil {
		return err
	}
	env.Bind(v, s)
	return nil
}

type forStage struct {
	sub    stage
	c      *For
	items  ir.Seq
	i      int
	active bool
}

func (s *forStage) next(env *expr.Env) (bool, error) {
	for {
		if err := env.Err(); err != nil {
			return false, err
		}
		if s.active && s.i < len(s.items) {
			it := s.items[s.i]
			s.i++
			return true, s.bind(env, ir.Single(it), int64(s.i))
		}
		s.active = false
		ok, err := s.sub.next(env)
		if err != nil || !ok {
			return false, err
		}
		items, err := s.c.Expr.Eval(env)
		if err != nil {
			return false, err
		}
		if len(items) == 0 && s.c.AllowEmpty {
			return true, s.bind(env, ir.Empty, 0)
		}
		s.items, s.i, s.active = items, 0, true
	}
}

func (s *forStage) bind(env *expr.Env, item ir.Seq, pos int64) error {
	if err := bind(env, s.c.Var, item); err != nil {
		return err
	}
	if s.c.Pos != nil {
		env.Bind(s.c.Pos, ir.Single(ir.Int(pos)))
	}
	if s.c.Score != nil {
		sc, err := scoreOf(item)
		if err != nil {
			return err
		}
		env.Bind(s.c.Score, ir.Single(sc))
	}
	return nil
}

type letStage struct {
	sub stage
	c   *Let
}

func (s *letStage) next(env *expr.Env) (bool, error) {
	ok, err := s.sub.next(env)
	if err != nil || !ok {
		return false, err
	}
	v, err := s.c.Expr.Eval(env)
	if err != nil {
		return false, err
	}
	if s.c.Scoring {
		sc, err := scoreOf(v)
		if err != nil {
			return false, err
		}
		v = ir.Single(sc)
	}
	return true, bind(env, s.c.Var, v)
}

type whereStage struct {
	sub stage
	c   *Where
}

func (s *whereStage) next(env *expr.Env) (bool, error) {
	for {
		ok, err := s.sub.next(env)
		if err != nil || !ok {
			return false, err
		}
		v, err := s.c.Expr.Eval(env)
		if err != nil {
			return false, err
		}
		b, err := ir.EBV(v)
		if err != nil {
			return false, err
		}
		if b {
			return true, nil
		}
	}
}

type countStage struct {
	sub stage
	c   *Count
	n   int64
}

func (s *countStage) next(env *expr.Env) (bool, error) {
	ok, err := s.sub.next(env)
	if err != nil || !ok {
		return false, err
	}
	s.n++
	env.Bind(s.c.Var, ir.Single(ir.Int(s.n)))
	return true, nil
}

type windowStage struct {
	sub    stage
	c      *Window
	items  ir.Seq
	start  int
	active bool
}

func (s *windowStage) next(env *expr.Env) (bool, error) {
	for {
		if err := env.Err(); err != nil {
			return false, err
		}
		if s.active && s.start < len(s.items) {
			end := min(s.start+int(s.c.Size), len(s.items))
			w := slices.Clone(s.items[s.start:end])
			if s.c.Sliding {
				s.start++
			} else {
				s.start = end
			}
			return true, bind(env, s.c.Var, w)
		}
		s.active = false
		ok, err := s.sub.next(env)
		if err != nil || !ok {
			return false, err
		}
		items, err := s.c.Expr.Eval(env)
		if err != nil {
			return false, err
		}
		s.items, s.start, s.active = items, 0, true
	}
}

// tuple is a snapshot of the bindings a blocking stage carries over.
type tuple struct {
	keys ir.Seq
	vals []ir.Seq
}

// atomKey evaluates a sort or grouping key: at most one atomic item.
func atomKey(env *expr.Env, e expr.Expr) (ir.Item, error) {
	s, err := e.Eval(env)
	if err != nil {
		return nil, err
	}
	s = ir.Atomize(s)
	switch len(s) {
	case 0:
		return nil, nil
	case 1:
		return s[0], nil
	}
	return nil, ir.Errorf(ir.ErrCodeType, "key %s yields %d items", e, len(s))
}

type orderStage struct {
	sub    stage
	c      *OrderBy
	tuples []tuple
	i      int
	sorted bool
}

func (s *orderStage) next(env *expr.Env) (bool, error) {
	if !s.sorted {
		if err := s.drain(env); err != nil {
			return false, err
		}
		s.sorted = true
	}
	if s.i >= len(s.tuples) {
		return false, nil
	}
	t := s.tuples[s.i]
	s.i++
	for j, v := range s.c.Refs {
		env.Bind(v, t.vals[j])
	}
	return true, nil
}

func (s *orderStage) drain(env *expr.Env) error {
	for {
		ok, err := s.sub.next(env)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t := tuple{keys: make(ir.Seq, len(s.c.Keys)), vals: make([]ir.Seq, len(s.c.Refs))}
		for j, k := range s.c.Keys {
			if t.keys[j], err = atomKey(env, k.Expr); err != nil {
				return err
			}
		}
		for j, v := range s.c.Refs {
			if t.vals[j], err = env.Lookup(v); err != nil {
				return err
			}
		}
		s.tuples = append(s.tuples, t)
	}
	colls := make([]*collate.Collator, len(s.c.Keys))
	for j, k := range s.c.Keys {
		if k.Collation != "" {
			tag, err := language.Parse(k.Collation)
			if err != nil {
				return ir.Errorf(ir.ErrCodeCollation, "unsupported collation %q", k.Collation)
			}
			colls[j] = collate.New(tag)
		}
	}
	var sortErr error
	slices.SortStableFunc(s.tuples, func(a, b tuple) int {
		for j, k := range s.c.Keys {
			c, err := compareKeys(a.keys[j], b.keys[j], colls[j])
			if err != nil && sortErr == nil {
				sortErr = err
			}
			if k.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return sortErr
}

// compareKeys orders sort keys; the empty key sorts first.
func compareKeys(a, b ir.Item, coll *collate.Collator) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	if coll != nil {
		if x, ok := a.(ir.Str); ok {
			if y, ok := b.(ir.Str); ok {
				return coll.CompareString(string(x), string(y)), nil
			}
		}
	}
	return ir.CompareItems(a, b)
}

type group struct {
	keys ir.Seq
	vals []ir.Seq
}

type groupStage struct {
	sub    stage
	c      *GroupBy
	groups []*group
	i      int
	done   bool
}

func (s *groupStage) next(env *expr.Env) (bool, error) {
	if !s.done {
		if err := s.drain(env); err != nil {
			return false, err
		}
		s.done = true
	}
	if s.i >= len(s.groups) {
		return false, nil
	}
	g := s.groups[s.i]
	s.i++
	for j, spec := range s.c.Specs {
		var v ir.Seq
		if g.keys[j] != nil {
			v = ir.Single(g.keys[j])
		}
		env.Bind(spec.Var, v)
	}
	for j, v := range s.c.Post {
		env.Bind(v, g.vals[j])
	}
	return true, nil
}

func (s *groupStage) drain(env *expr.Env) error {
	buckets := map[uint64][]*group{}
	for {
		ok, err := s.sub.next(env)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		keys := make(ir.Seq, len(s.c.Specs))
		for j, spec := range s.c.Specs {
			if keys[j], err = atomKey(env, spec.Expr); err != nil {
				return err
			}
		}
		h := xxhash.Sum64String(groupKey(keys))
		var g *group
		for _, cand := range buckets[h] {
			if sameKeys(cand.keys, keys) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &group{keys: keys, vals: make([]ir.Seq, len(s.c.Pre))}
			buckets[h] = append(buckets[h], g)
			s.groups = append(s.groups, g)
		}
		for j, e := range s.c.Pre {
			val, err := e.Eval(env)
			if err != nil {
				return err
			}
			g.vals[j] = append(g.vals[j], val...)
		}
	}
}

// groupKey renders keys so that equal keys render equally: numbers by
// value regardless of integer or decimal type.
func groupKey(keys ir.Seq) string {
	var b strings.Builder
	for _, k := range keys {
		switch k := k.(type) {
		case nil:
			b.WriteString("e")
		case ir.Int:
			b.WriteString("n" + decimal.NewFromInt(int64(k)).String())
		case ir.Dec:
			b.WriteString("n" + k.Decimal.String())
		default:
			b.WriteString(k.Type().String() + ":" + k.String())
		}
		b.WriteByte(0)
	}
	return b.String()
}

func sameKeys(a, b ir.Seq) bool {
	for i := range a {
		switch {
		case a[i] == nil || b[i] == nil:
			if a[i] != b[i] {
				return false
			}
		case !ir.DeepEqual(a[i], b[i]):
			return false
		}
	}
	return true
}
