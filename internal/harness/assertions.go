package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full rewrite trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nRewrite trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s: %s\n", i+1, event.Rule, event.Detail)
		}
	}

	return buf.String()
}

func compiled(r *Result, typ string) error {
	if r.CompileError == nil {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: "successful compilation",
		Actual:   fmt.Sprintf("compile error: %s", r.CompileError.Message),
	}
}

func assertPlanEquals(r *Result, a Assertion) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	want := strings.TrimSpace(a.Plan)
	if r.Plan != want {
		return &AssertionError{Type: a.Type, Expected: want, Actual: r.Plan, Trace: r.Trace}
	}
	return nil
}

func assertClauseCount(r *Result, a Assertion) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	if r.ClausesAfter != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d clauses after optimization", a.Count),
			Actual:   fmt.Sprintf("%d clauses in %s", r.ClausesAfter, r.Plan),
			Trace:    r.Trace,
		}
	}
	return nil
}

func assertRewriteFired(r *Result, a Assertion, want bool) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	if r.Fired(a.Rule) == want {
		return nil
	}
	expected, actual := "rule %s fires", "rule %s never fired"
	if !want {
		expected, actual = "rule %s never fires", "rule %s fired"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf(expected, a.Rule),
		Actual:   fmt.Sprintf(actual, a.Rule),
		Trace:    r.Trace,
	}
}

// assertRewriteOrder checks that rules first fire in the given order.
// Other rules may fire in between.
func assertRewriteOrder(r *Result, a Assertion) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	positions := make([]int, len(a.Rules))
	for i, rule := range a.Rules {
		positions[i] = r.firstFired(rule)
		if positions[i] < 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("all rules fire: %v", a.Rules),
				Actual:   fmt.Sprintf("rule %s never fired", rule),
				Trace:    r.Trace,
			}
		}
	}
	for i := 1; i < len(a.Rules); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("rules in order: %v", a.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					a.Rules[i-1], positions[i-1]+1, a.Rules[i], positions[i]+1),
				Trace: r.Trace,
			}
		}
	}
	return nil
}

func assertResultEquals(r *Result, a Assertion) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	want := strings.TrimSpace(a.Result)
	if r.RuntimeError != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: want,
			Actual:   fmt.Sprintf("runtime error: %s", r.RuntimeError.Message),
		}
	}
	if r.Output != want {
		return &AssertionError{Type: a.Type, Expected: want, Actual: r.Output, Trace: r.Trace}
	}
	return nil
}

func assertCompileError(r *Result, a Assertion) error {
	if r.CompileError == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("compile error %s", a.Code),
			Actual:   fmt.Sprintf("compiled to %s", r.Plan),
			Trace:    r.Trace,
		}
	}
	if r.CompileError.Code != a.Code || (a.Class != "" && r.CompileError.Class != a.Class) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("compile error %s %s", a.Class, a.Code),
			Actual:   fmt.Sprintf("compile error %s %s: %s", r.CompileError.Class, r.CompileError.Code, r.CompileError.Message),
		}
	}
	return nil
}

func assertRuntimeError(r *Result, a Assertion) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	if r.RuntimeError == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("runtime error %s", a.Code),
			Actual:   fmt.Sprintf("result %s", r.Output),
			Trace:    r.Trace,
		}
	}
	if r.RuntimeError.Code != a.Code {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("runtime error %s", a.Code),
			Actual:   fmt.Sprintf("runtime error %s: %s", r.RuntimeError.Code, r.RuntimeError.Message),
		}
	}
	return nil
}

// assertAnyError accepts the code from either phase.
func assertAnyError(r *Result, a Assertion) error {
	switch {
	case r.CompileError != nil && r.CompileError.Code == a.Code:
		return nil
	case r.RuntimeError != nil && r.RuntimeError.Code == a.Code:
		return nil
	}
	actual := fmt.Sprintf("result %s", r.Output)
	if r.CompileError != nil {
		actual = fmt.Sprintf("compile error %s: %s", r.CompileError.Code, r.CompileError.Message)
	} else if r.RuntimeError != nil {
		actual = fmt.Sprintf("runtime error %s: %s", r.RuntimeError.Code, r.RuntimeError.Message)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("error %s", a.Code),
		Actual:   actual,
	}
}

func assertDeferredCount(r *Result, a Assertion) error {
	if err := compiled(r, a.Type); err != nil {
		return err
	}
	if len(r.Deferred) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d deferred errors", a.Count),
			Actual:   fmt.Sprintf("%d deferred errors %v", len(r.Deferred), r.Deferred),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPlanEquals:
			err = assertPlanEquals(result, assertion)
		case AssertNoClauses:
			assertion.Count = 0
			err = assertClauseCount(result, assertion)
		case AssertClauseCount:
			err = assertClauseCount(result, assertion)
		case AssertRewriteFired:
			err = assertRewriteFired(result, assertion, true)
		case AssertRewriteNotFired:
			err = assertRewriteFired(result, assertion, false)
		case AssertRewriteOrder:
			err = assertRewriteOrder(result, assertion)
		case AssertResultEquals:
			err = assertResultEquals(result, assertion)
		case AssertCompileError:
			err = assertCompileError(result, assertion)
		case AssertRuntimeError:
			err = assertRuntimeError(result, assertion)
		case AssertDeferredCount:
			err = assertDeferredCount(result, assertion)
		case expectErrorType:
			err = assertAnyError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
