// Package flwor implements the FLWOR expression node and its rewrite
// engine.
//
// ARCHITECTURE:
//
// A FLWOR expression is a pipeline of clauses feeding tuples of variable
// bindings to a return expression:
//
//	[For|Let|Where|OrderBy|GroupBy|Count|Window]* → return E
//
// Optimize works on an owned copy of the pipeline. Each rewrite rule takes
// the pipeline and returns a new one plus a changed flag; the rules run in
// a fixed order until a full pass changes nothing, bounded by the
// iteration limit of the compile context:
//
//	flattenAnd, flattenReturn, flattenFor, unnestFLWR, forToLet,
//	inlineLets, slideLetsOut, unusedVars, cleanDeadVars, optimizeWhere,
//	optimizePos, unnestLets, mergeLastClause
//
// Adjacent where clauses are then merged, and the result may collapse into
// the return expression, a conditional, the empty sequence or a
// replication of the return value.
//
// ERROR RECOVERY:
//
// Constant folding can fail at compile time. If a for, window or where
// clause precedes the failing code, the pipeline may never reach it: the
// rest of the pipeline is dropped and the return expression becomes a
// deferred failure that raises the error only when evaluated. Otherwise
// the error fails the compilation.
//
// CARDINALITY:
//
// Bounds are conservative (min, max) estimates of the number of tuples,
// with max -1 for unbounded. Variable usage counting multiplies each
// reference by the maximum number of tuples reaching it, so a reference
// inside a loop counts as multiple uses.
//
// EVALUATION:
//
// Eval builds one pull stage per clause on top of a start stage that yields
// a single empty tuple. Order by and group by are blocking; every other
// stage streams.
package flwor
