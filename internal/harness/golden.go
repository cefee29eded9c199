package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"

	"github.com/HGData/basex/internal/ir"
)

// GoldenDir is where golden snapshots live, relative to a scenario
// directory.
const GoldenDir = "testdata/golden"

// Snapshot renders the stable part of a scenario outcome: the query, the
// optimized plan, the clause counts, and either the result (as canonical
// JSON) or the error class and code. Error messages and rewrite details are
// left out so that rewording a diagnostic does not churn every golden file.
func Snapshot(s *Scenario, r *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "query: %s\n", strings.TrimSpace(s.Query))

	if r.CompileError != nil {
		fmt.Fprintf(&buf, "compile_error: %s %s\n", r.CompileError.Class, r.CompileError.Code)
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "plan: %s\n", r.Plan)
	fmt.Fprintf(&buf, "clauses: %d -> %d\n", r.ClausesBefore, r.ClausesAfter)
	for _, code := range r.Deferred {
		fmt.Fprintf(&buf, "deferred: %s\n", code)
	}

	if r.RuntimeError != nil {
		fmt.Fprintf(&buf, "runtime_error: %s\n", r.RuntimeError.Code)
		return buf.Bytes(), nil
	}

	data, err := ir.MarshalCanonical(r.Items)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.Name, err)
	}
	fmt.Fprintf(&buf, "result: %s\n", data)
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

// GoldenMismatchError reports a snapshot that differs from its golden file.
type GoldenMismatchError struct {
	Path string
	Diff string
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("golden file %s differs (-want +got):\n%s", e.Path, e.Diff)
}

// CheckGolden compares a snapshot with dir/testdata/golden/{name}.golden
// outside of go test. With update set the golden file is (re)written
// instead. A missing golden file is an error unless updating.
func CheckGolden(dir, name string, snapshot []byte, update bool) error {
	path := filepath.Join(dir, GoldenDir, name+".golden")
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, snapshot, 0o644)
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("golden file %s not found (run with --update)", path)
	}
	if err != nil {
		return err
	}
	if diff := cmp.Diff(string(want), string(snapshot)); diff != "" {
		return &GoldenMismatchError{Path: path, Diff: diff}
	}
	return nil
}
