package expr

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/HGData/basex/internal/ir"
)

// Sequencer hands out logical timestamps for rewrite trace entries.
type Sequencer interface {
	Next() int64
}

type counter struct{ n int64 }

func (c *counter) Next() int64 {
	c.n++
	return c.n
}

// Rewrite is one entry of the rewrite trace: which rule fired and on what.
type Rewrite struct {
	Seq    int64  `json:"seq"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Context is the compile context. It is owned by a single compilation and
// is not safe for concurrent use.
type Context struct {
	ctx    context.Context
	logger *slog.Logger
	seq    Sequencer

	// MaxIterations bounds the fixed-point loop of a single FLWOR node.
	MaxIterations int

	// Disabled lists rewrite rules that must not fire.
	Disabled map[string]bool

	// Docs resolves doc() at compile time; constant folding never reads it.
	Docs map[string]*ir.Node

	trace    []Rewrite
	deferred []*ir.QueryError
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger rewrites are reported to.
func WithLogger(l *slog.Logger) ContextOption {
	return func(cc *Context) { cc.logger = l }
}

// WithSequencer sets the clock that stamps trace entries.
func WithSequencer(s Sequencer) ContextOption {
	return func(cc *Context) { cc.seq = s }
}

// WithMaxIterations bounds the fixed-point loop.
func WithMaxIterations(n int) ContextOption {
	return func(cc *Context) { cc.MaxIterations = n }
}

// WithDisabledRules turns off the named rewrite rules.
func WithDisabledRules(rules ...string) ContextOption {
	return func(cc *Context) {
		for _, r := range rules {
			cc.Disabled[r] = true
		}
	}
}

// NewContext creates a compile context bound to ctx for cancellation.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	cc := &Context{
		ctx:           ctx,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		seq:           &counter{},
		MaxIterations: 1000,
		Disabled:      map[string]bool{},
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// Ctx returns the context.Context of the compilation.
func (cc *Context) Ctx() context.Context { return cc.ctx }

// Err reports cancellation of the compilation.
func (cc *Context) Err() error { return cc.ctx.Err() }

// Logger returns the compile logger.
func (cc *Context) Logger() *slog.Logger { return cc.logger }

// Enabled reports whether a rewrite rule may fire.
func (cc *Context) Enabled(rule string) bool { return !cc.Disabled[rule] }

// Info records that a rewrite fired. Purely observational.
func (cc *Context) Info(rule, format string, args ...any) {
	r := Rewrite{Seq: cc.seq.Next(), Rule: rule, Detail: fmt.Sprintf(format, args...)}
	cc.trace = append(cc.trace, r)
	cc.logger.Debug("rewrite", "rule", r.Rule, "detail", r.Detail, "seq", r.Seq)
}

// Trace returns the rewrites recorded so far.
func (cc *Context) Trace() []Rewrite { return cc.trace }

// Deferred returns the errors that were downgraded to Raise nodes.
func (cc *Context) Deferred() []*ir.QueryError { return cc.deferred }

// Error boxes a caught compile-time failure as a deferred-failure
// expression standing in for e. Only dynamic errors can be deferred; any
// other error is returned unchanged and fails the compilation.
func (cc *Context) Error(err error, e Expr) (Expr, error) {
	qe, ok := ir.AsQueryError(err)
	if !ok || qe.Kind != ir.KindDynamic {
		return nil, err
	}
	cc.deferred = append(cc.deferred, qe)
	cc.logger.Debug("deferred error", "code", string(qe.Code), "message", qe.Message)
	return &Raise{Err: qe, As: e.Type()}, nil
}

// env returns the dynamic context used for constant folding.
func (cc *Context) env() *Env {
	return NewEnv(cc.ctx)
}
