// Package harness provides conformance testing for the FLWOR optimizer.
//
// A scenario compiles one query, replays the stored compilation, evaluates
// the plan, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: positional_where
//	description: "What this scenario validates"
//	query: for $x at $p in ("a", "b", "c") where $p = 2 return $x
//	options:
//	  max_iterations: 100
//	expect:
//	  plan: '"b"'
//	  result: '"b"'
//	assertions:
//	  - type: rewrite_fired
//	    rule: optimizePos
//
// # Assertion Types
//
//   - plan_equals: The optimized plan text matches
//   - no_clauses, clause_count: Number of clauses left after optimization
//   - rewrite_fired, rewrite_not_fired: A rule does (not) appear in the trace
//   - rewrite_order: Rules first fire in the given order
//   - result_equals: The evaluation result in query serialization
//   - compile_error, runtime_error: Failure code (and class) per phase
//   - deferred_count: Number of errors deferred to run time
//
// # Deterministic Testing
//
// Each scenario gets a fresh engine with sequential query IDs (q-0001),
// a logical clock starting at zero and an in-memory SQLite store, so
// rewrite traces and golden snapshots are identical across runs.
//
// # Usage
//
//	reports, err := harness.RunDir(ctx, "testdata/scenarios", 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range reports {
//	    if !r.Result.Pass {
//	        fmt.Println(r.Scenario.Name, r.Result.Errors)
//	    }
//	}
package harness
