package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HGData/basex/internal/engine"
)

// QueryOptions holds the flags shared by the commands that compile a query.
type QueryOptions struct {
	*RootOptions
	File     string // query file ("-" for stdin)
	Database string // trace store; overrides the options file
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.File, "file", "f", "", "read the query from a file (- for stdin)")
	cmd.Flags().StringVar(&o.Database, "db", "", "persist the compilation to this SQLite trace store")
}

// DeferredError is a runtime error postponed to evaluation.
type DeferredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OptimizeResult is the output of the optimize command.
type OptimizeResult struct {
	ID            string          `json:"id"`
	Plan          string          `json:"plan"`
	PlanHash      string          `json:"plan_hash"`
	ClausesBefore int             `json:"clauses_before"`
	ClausesAfter  int             `json:"clauses_after"`
	Rewrites      int             `json:"rewrites"`
	Deferred      []DeferredError `json:"deferred,omitempty"`
	Externals     []string        `json:"externals,omitempty"`
}

func newOptimizeResult(p *engine.Plan) OptimizeResult {
	res := OptimizeResult{
		ID:            p.ID,
		Plan:          p.String(),
		PlanHash:      p.Hash,
		ClausesBefore: p.ClausesBefore,
		ClausesAfter:  p.ClausesAfter,
		Rewrites:      len(p.Trace),
		Externals:     p.Externals(),
	}
	for _, d := range p.Deferred {
		res.Deferred = append(res.Deferred, DeferredError{Code: string(d.Code()), Message: d.Err.Error()})
	}
	return res
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize [query]",
		Short: "Compile a query and print the optimized plan",
		Long: `Compile a query, rewrite it to a fixed point and print the optimized plan.

Runtime errors found while folding constants behind a for or where clause
do not fail compilation; they are reported as deferred errors.

Exit codes:
  0 - Query compiled
  1 - Compilation failed
  2 - Command error (missing query, unreadable file, etc.)

Examples:
  flwor optimize 'for $x in (1, 2, 3) return $x'
  flwor optimize -f query.xq --db trace.db
  flwor optimize -f - --format json < query.xq`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args, cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runOptimize(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	plan, s, err := compileQuery(opts, args, cmd, formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	res := newOptimizeResult(plan)
	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s %s: %s rewrite(s), %d → %d clause(s)\n",
		passMark, res.ID, humanize.Comma(int64(res.Rewrites)), res.ClausesBefore, res.ClausesAfter)
	fmt.Fprintln(w, res.Plan)
	for _, d := range res.Deferred {
		fmt.Fprintf(w, "%s deferred %s: %s\n", warnMark, d.Code, d.Message)
	}
	return nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// compileQuery reads the query, opens a session and compiles. On success
// the caller owns the session.
func compileQuery(opts *QueryOptions, args []string, cmd *cobra.Command, formatter *OutputFormatter) (*engine.Plan, *session, error) {
	query, err := readQuery(args, opts.File, cmd.InOrStdin())
	if err != nil {
		return nil, nil, err
	}

	s, err := openSession(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.engine.Compile(cmd.Context(), query)
	if err != nil {
		s.Close()
		return nil, nil, formatter.Fail(ExitFailure, compileErrorCode(err), err)
	}
	formatter.VerboseLog("compiled %s (%s)", plan.ID, plan.Hash)
	return plan, s, nil
}
