package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/HGData/basex/internal/expr"
	"github.com/HGData/basex/internal/flwor"
	"github.com/HGData/basex/internal/ir"
	"github.com/HGData/basex/internal/parse"
	"github.com/HGData/basex/internal/store"
)

// Engine compiles and evaluates queries.
//
// Thread-safety model:
//   - Compile, Run, CompileAll, Replay: safe from any goroutine
//   - each compilation owns its compile context and is single-threaded
//   - the clock, id generator and store are shared
type Engine struct {
	opts   Options
	logger *slog.Logger
	clock  *Clock
	ids    IDGenerator
	store  *store.Store
	docs   map[string]*ir.Node
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions replaces the engine options. Zero fields take their
// defaults.
func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

// WithMaxIterations sets the fixed-point iteration quota.
//
// Default: 1000 passes per FLWOR expression.
// Use WithMaxIterations(1) for testing quota enforcement.
func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.opts.MaxIterations = n }
}

// WithDisabledRules turns off the named rewrite rules.
func WithDisabledRules(rules ...string) Option {
	return func(e *Engine) { e.opts.DisabledRules = append(e.opts.DisabledRules, rules...) }
}

// WithLogger sets the logger. Rewrites are logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the logical clock, e.g. to continue numbering after the
// compilations already in a store.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the compilation id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithStore persists every successful compilation and its rewrite trace.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithDocuments makes documents available to doc().
func WithDocuments(docs map[string]*ir.Node) Option {
	return func(e *Engine) { e.docs = docs }
}

// New creates an Engine. Options are validated after defaults are
// applied; an invalid option is a range error.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}

	o, err := e.opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, &CompileError{Class: classifyOption(err), Err: err}
	}
	e.opts = o
	return e, nil
}

func classifyOption(err error) ErrorClass {
	if errors.Is(err, ErrUnknownRule) {
		return ClassStatic
	}
	return ClassRange
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Plan is a compiled query.
type Plan struct {
	// ID identifies the compilation.
	ID string

	// Source is the query text.
	Source string

	// Root is the optimized expression.
	Root expr.Expr

	// Hash is the content hash of the rendered plan.
	Hash string

	// Trace lists the rewrites that fired, in order.
	Trace []expr.Rewrite

	// Deferred lists the conditional errors that were downgraded to
	// run-time failures.
	Deferred []*CompileError

	// ClausesBefore and ClausesAfter count FLWOR clauses in the parsed
	// and the optimized query.
	ClausesBefore int
	ClausesAfter  int

	// Seq orders the compilation among all compilations of the engine.
	Seq int64

	query *parse.Query
}

// String renders the optimized plan.
func (p *Plan) String() string { return p.Root.String() }

// Externals returns the names of the external variables of the query.
func (p *Plan) Externals() []string {
	out := make([]string, len(p.query.Externals))
	for i, v := range p.query.Externals {
		out[i] = v.Name
	}
	return out
}

// Record converts p to its store representation.
func (p *Plan) Record() (ir.CompilationRecord, []ir.RewriteRecord) {
	rec := ir.CompilationRecord{
		ID:            p.ID,
		Query:         p.Source,
		PlanHash:      p.Hash,
		Plan:          p.String(),
		ClausesBefore: p.ClausesBefore,
		ClausesAfter:  p.ClausesAfter,
		Deferred:      len(p.Deferred),
		Seq:           p.Seq,
	}
	rws := make([]ir.RewriteRecord, len(p.Trace))
	for i, r := range p.Trace {
		rws[i] = ir.RewriteRecord{CompilationID: p.ID, Seq: r.Seq, Rule: r.Rule, Detail: r.Detail}
	}
	return rec, rws
}

// Compile parses and compiles a query. Errors are *CompileError or
// *StepsExceededError; cancellation of ctx is returned as ctx.Err().
//
// With a store configured, the plan and its rewrite trace are persisted.
func (e *Engine) Compile(ctx context.Context, query string) (*Plan, error) {
	plan, err := e.compile(ctx, e.ids.Generate(), query)
	if err != nil {
		return nil, err
	}
	if e.store != nil {
		rec, rws := plan.Record()
		if _, err := e.store.WriteCompilation(ctx, rec, rws); err != nil {
			return nil, fmt.Errorf("persist compilation %s: %w", plan.ID, err)
		}
	}
	return plan, nil
}

func (e *Engine) compile(ctx context.Context, id, query string) (*Plan, error) {
	log := e.logger.With("query_id", id)

	q, err := parse.Parse(query)
	if err != nil {
		log.Debug("parse failed", "error", err)
		return nil, wrapCompileError(id, err)
	}

	cc := expr.NewContext(ctx,
		expr.WithLogger(log),
		expr.WithSequencer(e.clock),
		expr.WithMaxIterations(e.opts.MaxIterations),
		expr.WithDisabledRules(e.opts.DisabledRules...),
	)
	cc.Docs = e.docs

	before := countClauses(q.Body)
	root, err := q.Body.Compile(cc)
	if err != nil {
		log.Debug("compile failed", "error", err)
		return nil, wrapCompileError(id, err)
	}

	plan := &Plan{
		ID:            id,
		Source:        query,
		Root:          root,
		Hash:          ir.PlanHash(root.String()),
		Trace:         cc.Trace(),
		ClausesBefore: before,
		ClausesAfter:  countClauses(root),
		Seq:           e.clock.Next(),
		query:         q,
	}
	for _, qe := range cc.Deferred() {
		plan.Deferred = append(plan.Deferred, &CompileError{Class: ClassConditional, QueryID: id, Err: qe})
	}

	log.Info("compiled",
		"plan_hash", plan.Hash,
		"rewrites", len(plan.Trace),
		"deferred", len(plan.Deferred),
		"clauses_before", plan.ClausesBefore,
		"clauses_after", plan.ClausesAfter,
	)
	return plan, nil
}

// CompileAll compiles independent queries concurrently, at most
// Options.Parallelism at a time. Plans are returned in input order. The
// first error cancels the remaining compilations.
func (e *Engine) CompileAll(ctx context.Context, queries []string) ([]*Plan, error) {
	plans := make([]*Plan, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i, q := range queries {
		g.Go(func() error {
			p, err := e.Compile(gctx, q)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// Result is the outcome of evaluating a plan.
type Result struct {
	Items   ir.Seq
	Updates []expr.Update
}

// ErrUnknownVariable is returned when a binding names no external
// variable of the plan.
var ErrUnknownVariable = errors.New("unknown external variable")

// Run evaluates a plan with the given external variable bindings.
// Unbound externals raise XPDY0002 when referenced.
func (e *Engine) Run(ctx context.Context, plan *Plan, bindings map[string]ir.Seq) (*Result, error) {
	env := expr.NewEnv(ctx)
	env.Rand = rand.New(rand.NewPCG(e.opts.Seed, e.opts.Seed))
	for uri, doc := range e.docs {
		env.Docs[uri] = doc
	}
	for name, s := range bindings {
		v := plan.query.External(name)
		if v == nil {
			return nil, fmt.Errorf("%w $%s", ErrUnknownVariable, name)
		}
		if err := v.Check(s); err != nil {
			return nil, fmt.Errorf("bind $%s: %w", name, err)
		}
		env.Bind(v, s)
	}

	items, err := plan.Root.Eval(env)
	if err != nil {
		e.logger.Debug("evaluation failed", "query_id", plan.ID, "error", err)
		return nil, fmt.Errorf("run %s: %w", plan.ID, err)
	}
	return &Result{Items: items, Updates: env.Updates}, nil
}

// countClauses counts the FLWOR clauses in e and its descendants.
func countClauses(e expr.Expr) int {
	n := 0
	if f, ok := e.(*flwor.FLWOR); ok {
		n += len(f.Clauses)
	}
	for _, c := range e.Children() {
		n += countClauses(c)
	}
	return n
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
