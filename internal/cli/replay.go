package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HGData/basex/internal/engine"
	"github.com/HGData/basex/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayCompilationResult holds the replay result for a single compilation.
type ReplayCompilationResult struct {
	ID            string `json:"id"`
	Deterministic bool   `json:"deterministic"`
	Stored        string `json:"stored_plan"`
	Replayed      string `json:"replayed_plan,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Compilations     []ReplayCompilationResult `json:"compilations"`
	Total            int                       `json:"total"`
	AllDeterministic bool                      `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [id]",
		Short: "Recompile stored queries and verify their plans",
		Long: `Recompile stored queries and verify that the optimizer still produces
the recorded plans.

Without an id every stored compilation is replayed. Replays are not written
back to the store. Use the same --config as the original compilations: a
different set of disabled rules changes the plans.

Exit codes:
  0 - All plans reproduced
  1 - At least one plan changed or failed to compile
  2 - Command error (database not found, unknown id, etc.)

Examples:
  flwor replay --db ./trace.db
  flwor replay --db ./trace.db q-0001
  flwor replay --db ./trace.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	var ids []string
	if len(args) == 1 {
		ids = args
	} else {
		recs, err := s.store.ListCompilations(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list compilations", err)
		}
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
	}

	result := ReplayResult{
		Compilations:     make([]ReplayCompilationResult, 0, len(ids)),
		Total:            len(ids),
		AllDeterministic: true,
	}
	for _, id := range ids {
		rec, err := s.store.ReadCompilation(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("compilation %s not found", id))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read compilation", err)
		}

		cr := ReplayCompilationResult{ID: id, Stored: rec.Plan, Deterministic: true}
		plan, err := s.engine.Replay(ctx, id)
		var mismatch *engine.ReplayMismatchError
		switch {
		case errors.As(err, &mismatch):
			cr.Deterministic = false
			cr.Replayed = mismatch.Got
		case err != nil:
			cr.Deterministic = false
			cr.Error = err.Error()
		default:
			cr.Replayed = plan.String()
		}
		formatter.VerboseLog("replayed %s", id)
		if !cr.Deterministic {
			result.AllDeterministic = false
		}
		result.Compilations = append(result.Compilations, cr)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Total == 0 {
			fmt.Fprintln(w, "No compilations.")
		}
		for _, cr := range result.Compilations {
			switch {
			case cr.Deterministic:
				fmt.Fprintf(w, "%s %s\n", passMark, cr.ID)
			case cr.Error != "":
				fmt.Fprintf(w, "%s %s: %s\n", failMark, cr.ID, cr.Error)
			default:
				fmt.Fprintf(w, "%s %s: plan changed\n    stored: %s\n    now:    %s\n", failMark, cr.ID, cr.Stored, cr.Replayed)
			}
		}
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay produced different plans")
	}
	return nil
}
