package ir

import (
	"errors"
	"fmt"
)

// ErrorCode is an XQuery-style error code.
type ErrorCode string

const (
	// ErrCodeSyntax indicates a malformed query.
	ErrCodeSyntax ErrorCode = "XPST0003"

	// ErrCodeUndefinedVar indicates a reference to an undeclared variable.
	ErrCodeUndefinedVar ErrorCode = "XPST0008"

	// ErrCodeUnknownFunction indicates a call to an unknown function.
	ErrCodeUnknownFunction ErrorCode = "XPST0017"

	// ErrCodeNoValue indicates an undefined context item or unbound variable.
	ErrCodeNoValue ErrorCode = "XPDY0002"

	// ErrCodeType indicates a value does not match the required type.
	ErrCodeType ErrorCode = "XPTY0004"

	// ErrCodeDivZero indicates division by zero.
	ErrCodeDivZero ErrorCode = "FOAR0001"

	// ErrCodeCast indicates an invalid value for a cast or constructor.
	ErrCodeCast ErrorCode = "FORG0001"

	// ErrCodeEBV indicates the effective boolean value is undefined.
	ErrCodeEBV ErrorCode = "FORG0006"

	// ErrCodeUser indicates fn:error() was called.
	ErrCodeUser ErrorCode = "FOER0000"

	// ErrCodeDocument indicates doc() could not resolve its argument.
	ErrCodeDocument ErrorCode = "FODC0002"

	// ErrCodeCollation indicates an unsupported collation.
	ErrCodeCollation ErrorCode = "FOCH0002"

	// ErrCodeRange indicates a malformed numeric parameter (negative counts,
	// intervals, limits).
	ErrCodeRange ErrorCode = "FORG0003"
)

// ErrorKind classifies a QueryError by when it can be detected.
type ErrorKind int

const (
	// KindDynamic errors depend on the data; raised by evaluation, or by
	// constant folding at compile time.
	KindDynamic ErrorKind = iota

	// KindStatic errors are syntax and scoping errors.
	KindStatic

	// KindStaticType errors are violations of a declared type detected
	// without evaluation.
	KindStaticType

	// KindRange errors are malformed parameters reported to the caller.
	KindRange
)

func (k ErrorKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindStaticType:
		return "static-type"
	case KindRange:
		return "range"
	default:
		return "dynamic"
	}
}

// QueryError is an error raised while parsing, compiling or evaluating a
// query. The original diagnostic (code and message) is preserved through
// wrapping so callers can always recover it with errors.As.
type QueryError struct {
	Code    ErrorCode
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Errorf creates a dynamic QueryError.
func Errorf(code ErrorCode, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Kind: KindDynamic, Message: fmt.Sprintf(format, args...)}
}

// StaticErrorf creates a static (syntax/scoping) QueryError.
func StaticErrorf(code ErrorCode, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Kind: KindStatic, Message: fmt.Sprintf(format, args...)}
}

// TypeErrorf creates a static type QueryError.
func TypeErrorf(format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeType, Kind: KindStaticType, Message: fmt.Sprintf(format, args...)}
}

// RangeErrorf creates a range QueryError.
func RangeErrorf(format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeRange, Kind: KindRange, Message: fmt.Sprintf(format, args...)}
}

// AsQueryError extracts the QueryError from err.
// Uses errors.As to handle wrapped errors.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// HasCode returns true if err wraps a QueryError with the given code.
func HasCode(err error, code ErrorCode) bool {
	qe, ok := AsQueryError(err)
	return ok && qe.Code == code
}
