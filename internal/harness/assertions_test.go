package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Plan = "for $y in (1, 2) return $y + 3"
	r.ClausesBefore = 2
	r.ClausesAfter = 1
	r.Trace = []TraceEvent{
		{Seq: 1, Rule: "inlineLets", Detail: "inlined $x"},
		{Seq: 2, Rule: "unusedVars", Detail: "removed let $x"},
		{Seq: 3, Rule: "inlineLets", Detail: "inlined $z"},
	}
	r.Output = "(4, 5)"
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertPlanEquals, Plan: "for $y in (1, 2) return $y + 3\n"},
		{Type: AssertClauseCount, Count: 1},
		{Type: AssertRewriteFired, Rule: "inlineLets"},
		{Type: AssertRewriteNotFired, Rule: "optimizePos"},
		{Type: AssertRewriteOrder, Rules: []string{"inlineLets", "unusedVars"}},
		{Type: AssertResultEquals, Result: "(4, 5)"},
		{Type: AssertDeferredCount, Count: 0},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"plan", Assertion{Type: AssertPlanEquals, Plan: "(4, 5)"}, "Actual: for $y in (1, 2) return $y + 3"},
		{"no clauses", Assertion{Type: AssertNoClauses}, "Expected: 0 clauses after optimization"},
		{"fired", Assertion{Type: AssertRewriteFired, Rule: "optimizePos"}, "rule optimizePos never fired"},
		{"not fired", Assertion{Type: AssertRewriteNotFired, Rule: "unusedVars"}, "Actual: rule unusedVars fired"},
		{"order", Assertion{Type: AssertRewriteOrder, Rules: []string{"unusedVars", "inlineLets"}}, "unusedVars (pos 2) should be before inlineLets (pos 1)"},
		{"order missing", Assertion{Type: AssertRewriteOrder, Rules: []string{"inlineLets", "optimizePos"}}, "rule optimizePos never fired"},
		{"result", Assertion{Type: AssertResultEquals, Result: "(4, 6)"}, "Actual: (4, 5)"},
		{"compile error", Assertion{Type: AssertCompileError, Code: "XPTY0004"}, "compiled to for $y"},
		{"runtime error", Assertion{Type: AssertRuntimeError, Code: "FOAR0001"}, "Actual: result (4, 5)"},
		{"deferred", Assertion{Type: AssertDeferredCount, Count: 2}, "Expected: 2 deferred errors"},
		{"unknown", Assertion{Type: "final_state"}, `unknown assertion type "final_state"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestEvaluateAssertions_CompileFailure(t *testing.T) {
	r := NewResult()
	r.CompileError = &ErrorInfo{Class: "STATIC_TYPE", Code: "XPTY0004", Message: "boom"}

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertCompileError, Code: "XPTY0004"},
		{Type: AssertCompileError, Code: "XPTY0004", Class: "STATIC_TYPE"},
		{Type: expectErrorType, Code: "XPTY0004"},
	}))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCompileError, Code: "XPTY0004", Class: "STATIC"},
		{Type: AssertPlanEquals, Plan: "1"},
		{Type: AssertResultEquals, Result: "1"},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "compile error STATIC_TYPE XPTY0004: boom")
	assert.Contains(t, errs[1], "compile error: boom")
	assert.Contains(t, errs[2], "Expected: successful compilation")
}

func TestEvaluateAssertions_RuntimeFailure(t *testing.T) {
	r := sampleResult()
	r.Output = ""
	r.RuntimeError = &ErrorInfo{Code: "FOAR0001", Message: "division by zero"}

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertRuntimeError, Code: "FOAR0001"},
		{Type: expectErrorType, Code: "FOAR0001"},
	}))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertResultEquals, Result: "(4, 5)"},
		{Type: expectErrorType, Code: "XPDY0002"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "runtime error: division by zero")
	assert.Contains(t, errs[1], "runtime error FOAR0001: division by zero")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertPlanEquals,
		Expected: "1",
		Actual:   "2",
		Trace:    []TraceEvent{{Seq: 1, Rule: "inlineLets", Detail: "inlined $x"}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: plan_equals")
	assert.Contains(t, msg, "[1] inlineLets: inlined $x")
}
