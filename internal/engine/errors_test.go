package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HGData/basex/internal/flwor"
	"github.com/HGData/basex/internal/ir"
)

func TestCompileError_Error(t *testing.T) {
	err := &CompileError{Class: ClassStatic, QueryID: "q-1", Err: ir.StaticErrorf(ir.ErrCodeSyntax, "offset 3: unexpected EOF")}
	assert.Equal(t, "STATIC: [XPST0003] offset 3: unexpected EOF (query=q-1)", err.Error())

	anon := &CompileError{Class: ClassRange, Err: ir.RangeErrorf("bad")}
	assert.Equal(t, "RANGE: [FORG0003] bad", anon.Error())
}

func TestCompileError_Code(t *testing.T) {
	err := &CompileError{Class: ClassUnconditional, Err: errors.New("plain")}
	assert.Equal(t, ir.ErrorCode(""), err.Code())
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	base := &CompileError{Class: ClassStaticType, Err: ir.TypeErrorf("x")}
	wrapped := fmt.Errorf("outer: %w", base)

	assert.True(t, IsStaticTypeError(wrapped))
	assert.False(t, IsRangeError(wrapped))
	assert.False(t, IsStaticTypeError(errors.New("other")))

	steps := fmt.Errorf("outer: %w", &StepsExceededError{QueryID: "q", Limit: 3})
	assert.True(t, IsStepsExceededError(steps))
	assert.Equal(t, "query q exceeded rewrite quota: no fixed point after 3 passes",
		errors.Unwrap(steps).Error())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{ir.StaticErrorf(ir.ErrCodeSyntax, "x"), ClassStatic},
		{ir.TypeErrorf("x"), ClassStaticType},
		{ir.RangeErrorf("x"), ClassRange},
		{ir.Errorf(ir.ErrCodeDivZero, "x"), ClassUnconditional},
		{errors.New("not a query error"), ClassUnconditional},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err), "%v", tt.err)
	}
}

func TestWrapCompileError(t *testing.T) {
	limit := &flwor.IterationLimitError{Limit: 5, Plan: "for $x in (1, 2) return $x"}
	err := wrapCompileError("q-9", fmt.Errorf("nested: %w", limit))
	var se *StepsExceededError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "q-9", se.QueryID)
	assert.Equal(t, limit.Plan, se.Plan)

	qe := ir.Errorf(ir.ErrCodeDivZero, "division by zero")
	err = wrapCompileError("q-9", qe)
	assert.True(t, IsUnconditionalError(err))
	assert.ErrorIs(t, err, qe)
}
