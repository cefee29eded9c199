package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HGData/basex/internal/engine"
	"github.com/HGData/basex/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"plan": "(1, 2)"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeStatic, "unexpected EOF", map[string]int{"offset": 9}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeStatic, resp.Error.Code)
	assert.Equal(t, "unexpected EOF", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeRuntime, "division by zero", "q-0001"))
	assert.Contains(t, buf.String(), "Error [E007]: division by zero")
	assert.Contains(t, buf.String(), "Details: q-0001")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: tt.verbose}

			formatter.VerboseLog("compiled %s", "q-0001")

			assert.Empty(t, out.String(), "diagnostics never go to the JSON stream")
			if tt.wantLog {
				assert.Contains(t, diag.String(), "compiled q-0001")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := errors.New("boom")
	err := formatter.Fail(ExitFailure, ErrCodeGeneric, cause)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "Error [E001]: boom")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestCompileErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&engine.CompileError{Class: engine.ClassStatic, Err: ir.StaticErrorf(ir.ErrCodeSyntax, "x")}, ErrCodeStatic},
		{&engine.CompileError{Class: engine.ClassStaticType, Err: ir.TypeErrorf("x")}, ErrCodeStaticType},
		{&engine.CompileError{Class: engine.ClassUnconditional, Err: ir.Errorf(ir.ErrCodeDivZero, "x")}, ErrCodeUnconditional},
		{&engine.CompileError{Class: engine.ClassRange, Err: ir.RangeErrorf("x")}, ErrCodeRange},
		{fmt.Errorf("q: %w", &engine.StepsExceededError{QueryID: "q", Limit: 1}), ErrCodeStepsExceeded},
		{errors.New("other"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compileErrorCode(tt.err), "%v", tt.err)
	}
}
