package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HGData/basex/internal/config"
)

// ConfigValidateResult is the output of config validate.
type ConfigValidateResult struct {
	Valid   bool                     `json:"valid"`
	Options *config.Config           `json:"options,omitempty"`
	Errors  []config.ValidationError `json:"errors,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with flwor.cue options files",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.cue>",
		Short: "Validate an options file",
		Long: `Validate an options file against the options schema, then check the
disabled rules against the rule catalogue and the document and store paths
against the file system. Relative paths resolve against the file's directory.

Exit codes:
  0 - Options are valid
  1 - Validation errors found
  2 - Command error (file not found, etc.)

Examples:
  flwor config validate flwor.cue
  flwor config validate flwor.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(rootOpts, args[0], cmd)
		},
	}
}

func runConfigValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return WrapExitError(ExitCommandError, "failed to load options", err)
		}
		return formatter.Fail(ExitFailure, ErrCodeConfig, err)
	}

	errs := config.Validate(cfg, filepath.Dir(path))
	result := ConfigValidateResult{Valid: len(errs) == 0, Options: cfg, Errors: errs}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(formatter.Writer, "%s %s is valid\n", passMark, path)
	} else {
		fmt.Fprintf(formatter.Writer, "%s %s has %d error(s):\n", failMark, path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
	}
	return nil
}
