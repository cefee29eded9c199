package expr

import (
	"context"
	"math/rand/v2"

	"github.com/HGData/basex/internal/ir"
)

// Focus is the context item, position and size.
type Focus struct {
	Item ir.Item
	Pos  int64
	Size int64
}

// Update is a pending update produced by put().
type Update struct {
	Node *ir.Node
	URI  string
}

// Env is the dynamic context of one evaluation. It is not safe for
// concurrent use; each evaluation owns its Env.
type Env struct {
	ctx   context.Context
	focus *Focus
	vars  map[int64]ir.Seq

	// Docs resolves doc() arguments.
	Docs map[string]*ir.Node

	// Rand backs random().
	Rand *rand.Rand

	// Updates is the pending update list.
	Updates []Update
}

// NewEnv creates an empty dynamic context.
func NewEnv(ctx context.Context) *Env {
	return &Env{
		ctx:  ctx,
		vars: map[int64]ir.Seq{},
		Docs: map[string]*ir.Node{},
		Rand: rand.New(rand.NewPCG(1, 2)),
	}
}

// Err reports cancellation of the evaluation.
func (env *Env) Err() error { return env.ctx.Err() }

// Focus returns the current focus, nil if undefined.
func (env *Env) Focus() *Focus { return env.focus }

// WithFocus installs f and returns the previous focus.
func (env *Env) WithFocus(f *Focus) *Focus {
	prev := env.focus
	env.focus = f
	return prev
}

// Bind binds v to s.
func (env *Env) Bind(v *Var, s ir.Seq) { env.vars[v.ID] = s }

// Lookup returns the value bound to v.
func (env *Env) Lookup(v *Var) (ir.Seq, error) {
	s, ok := env.vars[v.ID]
	if !ok {
		return nil, ir.Errorf(ir.ErrCodeNoValue, "no value bound to %s", v)
	}
	return s, nil
}

// Bound reports whether v has a value.
func (env *Env) Bound(v *Var) bool {
	_, ok := env.vars[v.ID]
	return ok
}

func (env *Env) contextItem() (*Focus, error) {
	if env.focus == nil {
		return nil, ir.Errorf(ir.ErrCodeNoValue, "context item is undefined")
	}
	return env.focus, nil
}
