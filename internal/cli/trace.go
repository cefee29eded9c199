package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HGData/basex/internal/ir"
	"github.com/HGData/basex/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Rule     string // optional - filter rewrites to one rule
}

// TraceListing is the trace output without an id: every stored
// compilation plus per-rule firing counts.
type TraceListing struct {
	Compilations []CompilationSummary `json:"compilations"`
	Rules        []store.RuleCount    `json:"rules"`
}

// CompilationSummary is one row of the listing.
type CompilationSummary struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	PlanHash      string `json:"plan_hash"`
	PlanSize      int    `json:"plan_size"`
	ClausesBefore int    `json:"clauses_before"`
	ClausesAfter  int    `json:"clauses_after"`
	Deferred      int    `json:"deferred"`
}

// TraceDetail is the trace output for one compilation.
type TraceDetail struct {
	Compilation ir.CompilationRecord `json:"compilation"`
	Rewrites    []ir.RewriteRecord   `json:"rewrites"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [id]",
		Short: "Inspect persisted compilations",
		Long: `Inspect the compilations persisted in a trace store.

Without an id, lists every compilation in order together with how often
each rewrite rule fired. With an id, shows the query, the plan and the
full rewrite trace of that compilation.

Examples:
  flwor trace --db ./trace.db
  flwor trace --db ./trace.db q-0001
  flwor trace --db ./trace.db q-0001 --rule inlineLets --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only show rewrites of this rule")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if len(args) == 0 {
		recs, err := st.ListCompilations(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list compilations", err)
		}
		stats, err := st.RuleStats(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read rule statistics", err)
		}
		listing := TraceListing{Compilations: make([]CompilationSummary, 0, len(recs)), Rules: stats}
		for _, r := range recs {
			listing.Compilations = append(listing.Compilations, CompilationSummary{
				ID:            r.ID,
				Seq:           r.Seq,
				PlanHash:      r.PlanHash,
				PlanSize:      len(r.Plan),
				ClausesBefore: r.ClausesBefore,
				ClausesAfter:  r.ClausesAfter,
				Deferred:      r.Deferred,
			})
		}
		if formatter.Format == "json" {
			return formatter.Success(listing)
		}
		outputTraceListing(formatter.Writer, listing)
		return nil
	}

	id := args[0]
	rec, err := st.ReadCompilation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("compilation %s not found", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read compilation", err)
	}
	rws, err := st.ReadRewrites(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rewrites", err)
	}
	if opts.Rule != "" {
		filtered := rws[:0]
		for _, rw := range rws {
			if rw.Rule == opts.Rule {
				filtered = append(filtered, rw)
			}
		}
		rws = filtered
	}

	detail := TraceDetail{Compilation: rec, Rewrites: rws}
	if formatter.Format == "json" {
		return formatter.Success(detail)
	}
	outputTraceDetail(formatter.Writer, detail)
	return nil
}

func outputTraceListing(w io.Writer, l TraceListing) {
	if len(l.Compilations) == 0 {
		fmt.Fprintln(w, "No compilations.")
		return
	}

	fmt.Fprintf(w, "%s compilation(s):\n", humanize.Comma(int64(len(l.Compilations))))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SEQ\tID\tCLAUSES\tPLAN\tHASH")
	for _, c := range l.Compilations {
		fmt.Fprintf(tw, "  %d\t%s\t%d → %d\t%s\t%s\n",
			c.Seq, c.ID, c.ClausesBefore, c.ClausesAfter,
			humanize.Bytes(uint64(c.PlanSize)), shortHash(c.PlanHash))
	}
	tw.Flush()

	if len(l.Rules) > 0 {
		fmt.Fprintln(w, "\nRule firings:")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, r := range l.Rules {
			fmt.Fprintf(tw, "  %s\t%s\n", r.Rule, humanize.Comma(r.Count))
		}
		tw.Flush()
	}
}

func outputTraceDetail(w io.Writer, d TraceDetail) {
	c := d.Compilation
	fmt.Fprintf(w, "Compilation %s (seq %d)\n", c.ID, c.Seq)
	fmt.Fprintf(w, "  query: %s\n", c.Query)
	fmt.Fprintf(w, "  plan:  %s\n", c.Plan)
	fmt.Fprintf(w, "  hash:  %s\n", c.PlanHash)
	fmt.Fprintf(w, "  clauses: %d → %d\n", c.ClausesBefore, c.ClausesAfter)
	if c.Deferred > 0 {
		fmt.Fprintf(w, "  %s %d deferred error(s)\n", warnMark, c.Deferred)
	}

	fmt.Fprintf(w, "\nRewrites (%d):\n", len(d.Rewrites))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, rw := range d.Rewrites {
		fmt.Fprintf(tw, "  [%d]\t%s\t%s\n", rw.Seq, rw.Rule, rw.Detail)
	}
	tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
