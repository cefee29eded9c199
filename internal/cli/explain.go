package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ExplainRewrite is one fired rewrite rule.
type ExplainRewrite struct {
	Seq    int64  `json:"seq"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// ExplainResult is the output of the explain command.
type ExplainResult struct {
	OptimizeResult
	Source string           `json:"source"`
	Trace  []ExplainRewrite `json:"trace"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain [query]",
		Short: "Show the rewrite trace of a query",
		Long: `Compile a query and list every rewrite rule that fired, in order,
followed by the optimized plan.

Examples:
  flwor explain 'let $x := 3 for $y in (1, 2) return $y + $x'
  flwor explain -f query.xq --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args, cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runExplain(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	plan, s, err := compileQuery(opts, args, cmd, formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	res := ExplainResult{
		OptimizeResult: newOptimizeResult(plan),
		Source:         plan.Source,
		Trace:          make([]ExplainRewrite, 0, len(plan.Trace)),
	}
	for _, rw := range plan.Trace {
		res.Trace = append(res.Trace, ExplainRewrite{Seq: rw.Seq, Rule: rw.Rule, Detail: rw.Detail})
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Query %s:\n  %s\n\n", res.ID, res.Source)
	if len(res.Trace) == 0 {
		fmt.Fprintln(w, "No rewrites.")
	} else {
		fmt.Fprintln(w, "Rewrites:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, rw := range res.Trace {
			fmt.Fprintf(tw, "  [%d]\t%s\t%s\n", rw.Seq, rw.Rule, rw.Detail)
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "\nPlan (%d → %d clauses):\n  %s\n", res.ClausesBefore, res.ClausesAfter, res.Plan)
	for _, d := range res.Deferred {
		fmt.Fprintf(w, "%s deferred %s: %s\n", warnMark, d.Code, d.Message)
	}
	return nil
}
