package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/HGData/basex/internal/flwor"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownRule     = "E101" // disabled rule is not a rewrite rule
	ErrDuplicateRule   = "E102" // rule disabled twice
	ErrMissingDocument = "E103" // document file does not exist
	ErrStoreIsDir      = "E104" // store path names a directory
)

// ValidationError represents a semantic error in an options file that
// the schema cannot express.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks c against the rule catalogue and the file system.
// Relative document and store paths are resolved against dir.
// Returns all errors found (does not fail-fast).
func Validate(c *Config, dir string) []ValidationError {
	var errs []ValidationError

	seen := map[string]bool{}
	for i, r := range c.DisabledRules {
		field := fmt.Sprintf("disabled_rules[%d]", i)
		if r != flwor.MergeWheres && !flwor.IsRule(r) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown rewrite rule %q", r),
				Code:    ErrUnknownRule,
			})
			continue
		}
		if seen[r] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("rule %q disabled twice", r),
				Code:    ErrDuplicateRule,
			})
		}
		seen[r] = true
	}

	// Sorted for deterministic output.
	uris := make([]string, 0, len(c.Documents))
	for uri := range c.Documents {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		path := Resolve(dir, c.Documents[uri])
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, ValidationError{
				Field:   "documents." + uri,
				Message: fmt.Sprintf("document %s: %v", path, err),
				Code:    ErrMissingDocument,
			})
		}
	}

	if c.Store != "" {
		if info, err := os.Stat(Resolve(dir, c.Store)); err == nil && info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "store",
				Message: fmt.Sprintf("%s is a directory", c.Store),
				Code:    ErrStoreIsDir,
			})
		}
	}

	return errs
}

// Resolve returns path relative to dir unless it is absolute.
func Resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
