// Package engine is the compile and run facade of the FLWOR optimizer.
//
// ARCHITECTURE:
//
//	query text → parse → compile (with error recovery) → optimize → Plan
//	Plan + bindings → Run → Result
//
// Each compilation owns a fresh compile context. Compilations of
// independent queries share nothing but the logical clock, the id
// generator and the optional store, so CompileAll runs them in parallel.
//
// ERRORS:
//
// Every compile failure is a *CompileError classified as static, static
// type, unconditional runtime or range. Conditional runtime errors never
// fail a compilation: they are deferred to run time and listed on
// Plan.Deferred. A FLWOR expression whose rules do not reach a fixed point
// within Options.MaxIterations fails with *StepsExceededError.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Compilations and rewrite trace entries are stamped from Clock.Next().
// Stored traces are ordered by seq, never by wall time.
//
// Replay:
// A stored query recompiled by Replay must render the same plan. Plans
// contain variable names, never variable ids, which keeps them stable
// across processes.
package engine
