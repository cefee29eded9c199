package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/HGData/basex/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update      bool   // regenerate golden files
	Filter      string // scenario filter (glob pattern on the scenario name)
	Watch       bool   // re-run when a scenario file changes
	Parallelism int
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Plan   string   `json:"plan,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run the YAML conformance scenarios in a directory.

Each scenario compiles its query, replays the stored compilation, evaluates
the plan and checks its assertions. Scenarios with a golden file under
<scenarios-dir>/testdata/golden are also compared against it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)

Examples:
  flwor test ./scenarios
  flwor test ./scenarios --filter "where_*"
  flwor test ./scenarios --update
  flwor test ./scenarios --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return watchTests(cmd.Context(), opts, args[0], cmd)
			}
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-run scenarios when files in the directory change")
	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 4, "scenarios run concurrently")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, dir string, cmd *cobra.Command) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	paths, scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	paths, scenarios, err = filterScenarios(paths, scenarios, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd.OutOrStdout(), TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	reports, err := harness.RunAll(ctx, paths, scenarios, opts.Parallelism)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(reports)),
		Total:     len(reports),
	}
	for _, rep := range reports {
		sr := checkReport(dir, rep, opts.Update)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := outputTestJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		outputTestText(cmd.OutOrStdout(), result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// checkReport folds the golden comparison into a scenario result. A
// scenario without a golden file is only compared when updating.
func checkReport(dir string, rep harness.Report, update bool) ScenarioResult {
	sr := ScenarioResult{
		Name:   rep.Scenario.Name,
		Pass:   rep.Result.Pass,
		Plan:   rep.Result.Plan,
		Errors: rep.Result.Errors,
	}

	golden := filepath.Join(dir, harness.GoldenDir, rep.Scenario.Name+".golden")
	if _, err := os.Stat(golden); err != nil && !update {
		return sr
	}
	snapshot, err := harness.Snapshot(rep.Scenario, rep.Result)
	if err == nil {
		err = harness.CheckGolden(dir, rep.Scenario.Name, snapshot, update)
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	}
	return sr
}

func filterScenarios(paths []string, scenarios []*harness.Scenario, pattern string) ([]string, []*harness.Scenario, error) {
	if pattern == "" {
		return paths, scenarios, nil
	}
	var outPaths []string
	var out []*harness.Scenario
	for i, s := range scenarios {
		ok, err := filepath.Match(pattern, s.Name)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			outPaths = append(outPaths, paths[i])
			out = append(out, s)
		}
	}
	return outPaths, out, nil
}

func outputTestJSON(w io.Writer, result TestResult) error {
	return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: result})
}

func outputTestText(w io.Writer, result TestResult) {
	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "%s %s\n", passMark, sr.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", failMark, sr.Name)
		for _, e := range sr.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// watchTests runs the scenarios once, then again after every change to
// the directory until ctx is cancelled. Failures are reported but do not
// stop the watch.
func watchTests(ctx context.Context, opts *TestOptions, dir string, cmd *cobra.Command) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}

	run := func() {
		if err := runTests(ctx, opts, dir, cmd); err != nil && GetExitCode(err) != ExitFailure {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", failMark, err)
		}
	}
	run()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				pending = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-pending:
			pending = nil
			fmt.Fprintf(cmd.OutOrStdout(), "\n--- %s changed, re-running ---\n", dir)
			run()
		}
	}
}
