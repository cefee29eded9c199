package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/HGData/basex/internal/engine"
	"github.com/HGData/basex/internal/flwor"
)

// Scenario defines a conformance test scenario: one query, the options it
// is compiled under, its external bindings, and the checks on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is the query text.
	Query string `yaml:"query"`

	// Options overrides engine options. Zero fields take the defaults.
	Options ScenarioOptions `yaml:"options,omitempty"`

	// Bindings binds external variables by name. Values are YAML scalars:
	// integers, strings, booleans, or floats (read as decimals).
	Bindings map[string][]any `yaml:"bindings,omitempty"`

	// Expect is shorthand for the most common assertions.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the plan, the rewrite trace and the result.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioOptions is the subset of engine options a scenario may set.
type ScenarioOptions struct {
	MaxIterations int      `yaml:"max_iterations,omitempty"`
	DisabledRules []string `yaml:"disabled_rules,omitempty"`
	Seed          uint64   `yaml:"seed,omitempty"`
}

func (o ScenarioOptions) engineOptions() engine.Options {
	return engine.Options{
		MaxIterations: o.MaxIterations,
		DisabledRules: o.DisabledRules,
		Seed:          o.Seed,
	}
}

// ExpectClause specifies the expected outcome in brief.
type ExpectClause struct {
	// Plan is the expected optimized plan text.
	Plan string `yaml:"plan,omitempty"`

	// Result is the expected result in query serialization, e.g. (1, 2).
	Result string `yaml:"result,omitempty"`

	// Error is the expected error code, raised at compile or run time.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates one aspect of a scenario outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "plan_equals": Optimized plan text equals Plan
	// - "no_clauses": No FLWOR clause survives optimization
	// - "clause_count": Exactly Count clauses survive optimization
	// - "rewrite_fired": Rule appears in the rewrite trace
	// - "rewrite_not_fired": Rule does not appear in the rewrite trace
	// - "rewrite_order": Rules first fire in the given order
	// - "result_equals": Evaluation result equals Result
	// - "compile_error": Compilation fails with Code (and Class, if set)
	// - "runtime_error": Evaluation fails with Code
	// - "deferred_count": Exactly Count errors were deferred to run time
	Type string `yaml:"type"`

	Plan   string   `yaml:"plan,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Rule   string   `yaml:"rule,omitempty"`
	Rules  []string `yaml:"rules,omitempty"`
	Result string   `yaml:"result,omitempty"`
	Code   string   `yaml:"code,omitempty"`
	Class  string   `yaml:"class,omitempty"`
}

// Assertion type constants.
const (
	AssertPlanEquals      = "plan_equals"
	AssertNoClauses       = "no_clauses"
	AssertClauseCount     = "clause_count"
	AssertRewriteFired    = "rewrite_fired"
	AssertRewriteNotFired = "rewrite_not_fired"
	AssertRewriteOrder    = "rewrite_order"
	AssertResultEquals    = "result_equals"
	AssertCompileError    = "compile_error"
	AssertRuntimeError    = "runtime_error"
	AssertDeferredCount   = "deferred_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
// Scenario names must be unique within the directory.
func LoadDir(dir string) ([]string, []*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)

	names := map[string]string{}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		names[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return paths, scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Query == "" {
		return fmt.Errorf("query is required")
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or a non-empty assertions list is required")
	}

	if s.Expect != nil && s.Expect.Error != "" && s.Expect.Result != "" {
		return fmt.Errorf("expect: error and result are mutually exclusive")
	}

	if s.Options.MaxIterations < 0 {
		return fmt.Errorf("options.max_iterations must be non-negative")
	}
	for i, r := range s.Options.DisabledRules {
		if r != flwor.MergeWheres && !flwor.IsRule(r) {
			return fmt.Errorf("options.disabled_rules[%d]: unknown rewrite rule %q", i, r)
		}
	}

	for name, values := range s.Bindings {
		if _, err := toSeq(values); err != nil {
			return fmt.Errorf("bindings.%s: %w", name, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPlanEquals:
		if a.Plan == "" {
			return fmt.Errorf("assertions[%d]: plan is required for plan_equals", index)
		}
	case AssertNoClauses:
	case AssertClauseCount, AssertDeferredCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRewriteFired, AssertRewriteNotFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for %s", index, a.Type)
		}
		if a.Rule != flwor.MergeWheres && !flwor.IsRule(a.Rule) {
			return fmt.Errorf("assertions[%d]: unknown rewrite rule %q", index, a.Rule)
		}
	case AssertRewriteOrder:
		if len(a.Rules) < 2 {
			return fmt.Errorf("assertions[%d]: at least two rules are required for rewrite_order", index)
		}
	case AssertResultEquals:
		if a.Result == "" {
			return fmt.Errorf("assertions[%d]: result is required for result_equals", index)
		}
	case AssertCompileError, AssertRuntimeError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// allAssertions expands the expect clause and appends the explicit
// assertions.
func (s *Scenario) allAssertions() []Assertion {
	var out []Assertion
	if e := s.Expect; e != nil {
		if e.Plan != "" {
			out = append(out, Assertion{Type: AssertPlanEquals, Plan: e.Plan})
		}
		if e.Result != "" {
			out = append(out, Assertion{Type: AssertResultEquals, Result: e.Result})
		}
		if e.Error != "" {
			out = append(out, Assertion{Type: expectErrorType, Code: e.Error})
		}
	}
	return append(out, s.Assertions...)
}

// expectErrorType matches an error code raised at either phase.
const expectErrorType = "error"
