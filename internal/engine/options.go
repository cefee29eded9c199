package engine

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"

	"github.com/HGData/basex/internal/flwor"
	"github.com/HGData/basex/internal/ir"
)

// ErrUnknownRule is returned when DisabledRules names no rewrite rule.
var ErrUnknownRule = errors.New("unknown rewrite rule")

// Options configures compilation and evaluation. Zero fields take the
// values of their default tags.
type Options struct {
	// MaxIterations bounds the fixed-point loop of each FLWOR expression.
	MaxIterations int `json:"max_iterations" default:"1000"`

	// DisabledRules names rewrite rules that must not fire. "mergeWheres"
	// disables the merge of adjacent where clauses after the loop.
	DisabledRules []string `json:"disabled_rules"`

	// Parallelism bounds the number of concurrent compilations in
	// CompileAll.
	Parallelism int `json:"parallelism" default:"4"`

	// Seed seeds random(); evaluation with the same seed is reproducible.
	Seed uint64 `json:"seed" default:"1"`
}

// DefaultOptions returns Options with every default applied.
func DefaultOptions() Options {
	var o Options
	defaults.MustSet(&o)
	return o
}

// withDefaults fills the zero fields of o.
func (o Options) withDefaults() (Options, error) {
	if err := defaults.Set(&o); err != nil {
		return o, fmt.Errorf("apply option defaults: %w", err)
	}
	return o, nil
}

// Validate checks o after defaults are applied.
func (o Options) Validate() error {
	if o.MaxIterations < 1 {
		return ir.RangeErrorf("max_iterations must be at least 1, got %d", o.MaxIterations)
	}
	if o.Parallelism < 1 {
		return ir.RangeErrorf("parallelism must be at least 1, got %d", o.Parallelism)
	}
	for _, r := range o.DisabledRules {
		if r != flwor.MergeWheres && !flwor.IsRule(r) {
			return fmt.Errorf("%w %q", ErrUnknownRule, r)
		}
	}
	return nil
}
