package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/HGData/basex/internal/engine"
	"github.com/HGData/basex/internal/ir"
	"github.com/HGData/basex/internal/store"
	"github.com/HGData/basex/internal/testutil"
)

// Harness runs scenarios against a fresh engine with sequential query
// IDs, a logical clock starting at zero, and an in-memory store.
type Harness struct {
	engine *engine.Engine
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the query; the plan and its rewrites are persisted
// 2. Replay the stored compilation and check the plan hash is reproduced
// 3. Evaluate the plan with the scenario bindings
// 4. Evaluate assertions against the outcome
//
// A returned error means the harness itself failed; query failures are
// recorded on the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	eng, err := engine.New(
		engine.WithOptions(scenario.Options.engineOptions()),
		engine.WithIDGenerator(testutil.NewSequentialIDs("q")),
		engine.WithClock(engine.NewClock()),
		engine.WithStore(st),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{engine: eng}
	result := NewResult()
	if err := h.execute(ctx, scenario, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.allAssertions()) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, result *Result) error {
	plan, err := h.engine.Compile(ctx, scenario.Query)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		result.CompileError = describeError(err)
		return nil
	}

	result.QueryID = plan.ID
	result.Plan = plan.String()
	result.PlanHash = plan.Hash
	result.ClausesBefore = plan.ClausesBefore
	result.ClausesAfter = plan.ClausesAfter
	for _, rw := range plan.Trace {
		result.Trace = append(result.Trace, TraceEvent{Seq: rw.Seq, Rule: rw.Rule, Detail: rw.Detail})
	}
	for _, d := range plan.Deferred {
		result.Deferred = append(result.Deferred, string(d.Code()))
	}

	if _, err := h.engine.Replay(ctx, plan.ID); err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
	}

	bindings := make(map[string]ir.Seq, len(scenario.Bindings))
	for name, values := range scenario.Bindings {
		s, err := toSeq(values)
		if err != nil {
			return fmt.Errorf("binding $%s: %w", name, err)
		}
		bindings[name] = s
	}

	res, err := h.engine.Run(ctx, plan, bindings)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		result.RuntimeError = describeError(err)
		return nil
	}
	result.Items = res.Items
	result.Output = res.Items.String()
	return nil
}

// Report pairs a scenario with its outcome.
type Report struct {
	Path     string
	Scenario *Scenario
	Result   *Result
}

// RunAll runs scenarios concurrently, at most parallelism at a time.
// Reports are returned in input order. A harness failure cancels the
// remaining runs.
func RunAll(ctx context.Context, paths []string, scenarios []*Scenario, parallelism int) ([]Report, error) {
	reports := make([]Report, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			res, err := Run(gctx, s)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			reports[i] = Report{Scenario: s, Result: res}
			if i < len(paths) {
				reports[i].Path = paths[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// RunDir loads and runs every scenario in dir.
func RunDir(ctx context.Context, dir string, parallelism int) ([]Report, error) {
	paths, scenarios, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return RunAll(ctx, paths, scenarios, parallelism)
}

// toSeq converts YAML scalars to items.
func toSeq(values []any) (ir.Seq, error) {
	out := make(ir.Seq, 0, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case int:
			out = append(out, ir.Int(x))
		case string:
			out = append(out, ir.Str(x))
		case bool:
			out = append(out, ir.Bool(x))
		case float64:
			out = append(out, ir.NewDec(decimal.NewFromFloat(x)))
		default:
			return nil, fmt.Errorf("item %d: unsupported value %v (%T)", i, v, v)
		}
	}
	return out, nil
}
