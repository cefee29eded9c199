package engine

import (
	"errors"
	"fmt"

	"github.com/HGData/basex/internal/flwor"
	"github.com/HGData/basex/internal/ir"
)

// ErrorClass categorizes compile errors by how the optimizer treats them.
type ErrorClass string

const (
	// ClassStatic indicates a syntax or scoping error.
	ClassStatic ErrorClass = "STATIC"

	// ClassStaticType indicates a declared type that can never be
	// satisfied. Never downgraded, even behind a filtering clause.
	ClassStaticType ErrorClass = "STATIC_TYPE"

	// ClassUnconditional indicates a runtime error raised during constant
	// folding that no clause could filter away. Fails compilation.
	ClassUnconditional ErrorClass = "UNCONDITIONAL_RUNTIME"

	// ClassConditional indicates a runtime error raised during constant
	// folding behind a for, window or where clause. Deferred to run time;
	// reported on Plan.Deferred, never returned from Compile.
	ClassConditional ErrorClass = "CONDITIONAL_RUNTIME"

	// ClassRange indicates a malformed numeric parameter such as a
	// negative replication count or an iteration limit below 1.
	ClassRange ErrorClass = "RANGE"
)

// CompileError is an error detected while compiling a query.
//
// The original diagnostic is preserved: errors.As(err, &*ir.QueryError)
// recovers the XQuery error code and message.
type CompileError struct {
	// Class identifies how the error was treated.
	Class ErrorClass

	// QueryID identifies the compilation.
	QueryID string

	// Err is the underlying error, usually an *ir.QueryError.
	Err error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.QueryID != "" {
		return fmt.Sprintf("%s: %v (query=%s)", e.Class, e.Err, e.QueryID)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Code returns the XQuery error code, or "" when Err is not a query error.
func (e *CompileError) Code() ir.ErrorCode {
	if qe, ok := ir.AsQueryError(e.Err); ok {
		return qe.Code
	}
	return ""
}

// classify maps an error escaping compilation to its class. A dynamic
// error that escapes was not guarded by any clause.
func classify(err error) ErrorClass {
	qe, ok := ir.AsQueryError(err)
	if !ok {
		return ClassUnconditional
	}
	switch qe.Kind {
	case ir.KindStatic:
		return ClassStatic
	case ir.KindStaticType:
		return ClassStaticType
	case ir.KindRange:
		return ClassRange
	case ir.KindDynamic:
		return ClassUnconditional
	default:
		panic(fmt.Sprintf("engine: unknown error kind %v", qe.Kind))
	}
}

func hasClass(err error, class ErrorClass) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Class == class
}

// IsStaticTypeError returns true if err is a static type compile error.
// Uses errors.As to handle wrapped errors.
func IsStaticTypeError(err error) bool { return hasClass(err, ClassStaticType) }

// IsUnconditionalError returns true if err is an unconditional runtime
// error detected at compile time.
func IsUnconditionalError(err error) bool { return hasClass(err, ClassUnconditional) }

// IsRangeError returns true if err is a range compile error.
func IsRangeError(err error) bool { return hasClass(err, ClassRange) }

// IsSyntaxError returns true if err is a static (syntax or scoping) error.
func IsSyntaxError(err error) bool { return hasClass(err, ClassStatic) }

// StepsExceededError is returned when the rewrite rules of a FLWOR
// expression do not reach a fixed point within the iteration quota.
type StepsExceededError struct {
	QueryID string // The compilation that exceeded the quota
	Limit   int    // Maximum allowed passes
	Plan    string // The pipeline when the quota ran out
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("query %s exceeded rewrite quota: no fixed point after %d passes", e.QueryID, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

// wrapCompileError converts an error from parsing or compiling into the
// engine's error types. Context errors pass through unchanged so callers
// can match context.Canceled.
func wrapCompileError(id string, err error) error {
	var limit *flwor.IterationLimitError
	switch {
	case errors.As(err, &limit):
		return &StepsExceededError{QueryID: id, Limit: limit.Limit, Plan: limit.Plan}
	case isContextErr(err):
		return err
	default:
		return &CompileError{Class: classify(err), QueryID: id, Err: err}
	}
}
