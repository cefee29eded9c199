package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/HGData/basex/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// Config is a decoded options file.
type Config struct {
	MaxIterations int               `json:"max_iterations"`
	DisabledRules []string          `json:"disabled_rules"`
	Parallelism   int               `json:"parallelism"`
	Seed          uint64            `json:"seed"`
	LogLevel      string            `json:"log_level"`
	Store         string            `json:"store"`
	Documents     map[string]string `json:"documents"`
}

// EngineOptions converts c to engine options. Fields c leaves unset take
// the engine defaults.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		MaxIterations: c.MaxIterations,
		DisabledRules: slices.Clone(c.DisabledRules),
		Parallelism:   c.Parallelism,
		Seed:          c.Seed,
	}
}

// LoadError is an error in an options file, with its source position
// when CUE reports one.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and decodes the options file at path. The file is unified
// with the embedded schema, so unknown fields and out-of-range values are
// rejected with their position.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes options from CUE source. filename is used in positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#Options"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("options schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var c Config
	if err := v.Decode(&c); err != nil {
		return nil, formatCUEError(err)
	}
	return &c, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors; report the first.
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
