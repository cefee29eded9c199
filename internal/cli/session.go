package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"
	"github.com/spf13/cobra"

	"github.com/HGData/basex/internal/config"
	"github.com/HGData/basex/internal/engine"
	"github.com/HGData/basex/internal/ir"
	"github.com/HGData/basex/internal/store"
)

// session is an engine configured from the global flags and the options
// file, plus the trace store it writes to (if any).
type session struct {
	engine *engine.Engine
	store  *store.Store
	logger *slog.Logger
}

func (s *session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// openSession loads the options file named by --config, sets up logging
// and opens the trace store. db overrides the store named in the options
// file; with neither, compilations are not persisted.
func openSession(opts *RootOptions, cmd *cobra.Command, db string) (*session, error) {
	cfg, dir, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}

	docs, err := cfg.LoadDocuments(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load documents", err)
	}

	s := &session{logger: logger}
	engineOpts := []engine.Option{
		engine.WithOptions(cfg.EngineOptions()),
		engine.WithLogger(logger),
		engine.WithDocuments(docs),
	}

	if db == "" && cfg.Store != "" {
		db = config.Resolve(dir, cfg.Store)
	}
	if db != "" {
		st, err := store.Open(db)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		s.store = st
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	s.engine, err = engine.New(engineOpts...)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "invalid engine options", err)
	}
	return s, nil
}

// loadConfig loads and validates the options file at path. An empty path
// yields the defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		return &config.Config{}, "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to load options", err)
	}
	dir := filepath.Dir(path)
	if verrs := config.Validate(cfg, dir); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, "", WrapExitError(ExitCommandError, "invalid options", errors.Join(errs...))
	}
	return cfg, dir, nil
}

// newLogger returns a slog logger writing zerolog console output to w.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	if level == "" {
		level = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor}).With().Timestamp().Logger()
	return slog.New(slogzerolog.Option{Level: lvl, Logger: &zl}.NewZerologHandler()), nil
}

// readQuery returns the query from the single positional argument, or
// from file ("-" reads stdin).
func readQuery(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", NewExitError(ExitCommandError, "pass either a query argument or --file, not both")
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read query file", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", NewExitError(ExitCommandError, "a query argument or --file is required")
	}
}

// parseBindings parses name=v1,v2,... flags. Values that parse as
// integers, decimals or booleans take that type; anything else is a
// string. "name=" binds the empty sequence.
func parseBindings(flags []string) (map[string]ir.Seq, error) {
	out := make(map[string]ir.Seq, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		name = strings.TrimPrefix(name, "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid binding %q: want name=value[,value...]", f)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("variable $%s bound twice", name)
		}
		s := ir.Seq{}
		if value != "" {
			for _, v := range strings.Split(value, ",") {
				s = append(s, parseItem(v))
			}
		}
		out[name] = s
	}
	return out, nil
}

func parseItem(v string) ir.Item {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ir.Int(i)
	}
	if strings.Contains(v, ".") {
		if d, err := ir.ParseDec(v); err == nil {
			return d
		}
	}
	switch v {
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	return ir.Str(v)
}
