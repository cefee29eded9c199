package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HGData/basex/internal/ir"
	"github.com/HGData/basex/internal/store"
)

const scenariosDir = "../harness/testdata/scenarios"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptimizeCommand(t *testing.T) {
	out, err := execute(t, "optimize", "for $x in (1, 2, 3) return $x")
	require.NoError(t, err)
	assert.Contains(t, out, "(1, 2, 3)")
	assert.Contains(t, out, "1 → 0 clause(s)")
}

func TestOptimizeCommand_JSON(t *testing.T) {
	out, err := execute(t, "optimize", "let $x := 3 for $y in (1, 2) return $y + $x", "--format", "json")
	require.NoError(t, err)

	data := decodeData(t, out)
	assert.Equal(t, "for $y in (1, 2) return $y + 3", data["plan"])
	assert.EqualValues(t, 2, data["clauses_before"])
	assert.EqualValues(t, 1, data["clauses_after"])
	assert.NotEmpty(t, data["plan_hash"])
}

func TestOptimizeCommand_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "q.xq", "for $x in (1, 2, 3) return $x")

	out, err := execute(t, "optimize", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(1, 2, 3)")
}

func TestOptimizeCommand_Errors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		out, err := execute(t, "optimize", "for $x in")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]")
	})

	t.Run("static type", func(t *testing.T) {
		out, err := execute(t, "optimize", "for $x in (1, 2) let $y as xs:string := 1 return $y")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E003]")
	})

	t.Run("missing query", func(t *testing.T) {
		_, err := execute(t, "optimize")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("query and file", func(t *testing.T) {
		_, err := execute(t, "optimize", "1", "-f", "q.xq")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "optimize", "-f", filepath.Join(t.TempDir(), "none.xq"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestEvalCommand(t *testing.T) {
	out, err := execute(t, "eval", "declare variable $in external; for $x in $in return $x * 2", "--bind", "in=1,2")
	require.NoError(t, err)
	assert.Contains(t, out, "(2, 4)")
}

func TestEvalCommand_JSON(t *testing.T) {
	out, err := execute(t, "eval", "for $x in (1, 2, 3) return $x", "--format", "json")
	require.NoError(t, err)

	data := decodeData(t, out)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, data["result"])
	assert.EqualValues(t, 3, data["items"])
}

func TestEvalCommand_Documents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "d.xml", "<list><item/><item/></list>")
	cfg := writeFile(t, dir, "flwor.cue", `documents: "d.xml": "d.xml"`+"\n")

	out, err := execute(t, "eval", `count(doc("d.xml")/*/item)`, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "2")
}

func TestEvalCommand_Errors(t *testing.T) {
	t.Run("runtime", func(t *testing.T) {
		out, err := execute(t, "eval", "declare variable $in external; for $x in $in return $x")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E007]")
	})

	t.Run("bad binding", func(t *testing.T) {
		_, err := execute(t, "eval", "1", "--bind", "=1")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, "explain", "for $x in (1, 2, 3) return $x")
	require.NoError(t, err)
	assert.Contains(t, out, "Rewrites:")
	assert.Contains(t, out, "mergeLastClause")
	assert.Contains(t, out, "Plan (1 → 0 clauses):")
}

func TestExplainCommand_JSON(t *testing.T) {
	out, err := execute(t, "explain", "for $x in (1, 2, 3) return $x", "--format", "json")
	require.NoError(t, err)

	data := decodeData(t, out)
	assert.Equal(t, "(1, 2, 3)", data["plan"])
	trace, ok := data["trace"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, trace)
}

func TestTraceAndReplayCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")

	out, err := execute(t, "optimize", "for $x in (1, 2, 3) return $x", "--db", db, "--format", "json")
	require.NoError(t, err)
	id, ok := decodeData(t, out)["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	out, err = execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 compilation(s):")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "mergeLastClause")

	out, err = execute(t, "trace", id, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Compilation "+id)
	assert.Contains(t, out, "plan:  (1, 2, 3)")

	out, err = execute(t, "trace", id, "--db", db, "--rule", "mergeLastClause", "--format", "json")
	require.NoError(t, err)
	rewrites, ok := decodeData(t, out)["rewrites"].([]any)
	require.True(t, ok)
	for _, rw := range rewrites {
		assert.Equal(t, "mergeLastClause", rw.(map[string]any)["rule"])
	}

	out, err = execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = execute(t, "trace", "missing", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayCommand_Mismatch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.WriteCompilation(context.Background(), ir.CompilationRecord{
		ID:       "old",
		Query:    `for $x in (1, 2) return $x`,
		PlanHash: ir.PlanHash("for $x in (1, 2) return $x"),
		Plan:     "for $x in (1, 2) return $x",
		Seq:      1,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "replay", "old", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "plan changed")
	assert.Contains(t, out, "now:    (1, 2)")
}

func TestTraceCommand_RequiresDB(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, dir, "ok.cue", "max_iterations: 10\ndisabled_rules: [\"inlineLets\"]\n")
		out, err := execute(t, "config", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "is valid")
	})

	t.Run("unknown rule", func(t *testing.T) {
		path := writeFile(t, dir, "rule.cue", "disabled_rules: [\"noSuchRule\"]\n")
		out, err := execute(t, "config", "validate", path)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "1 error(s)")
	})

	t.Run("schema violation", func(t *testing.T) {
		path := writeFile(t, dir, "bad.cue", "max_iterations: 0\n")
		_, err := execute(t, "config", "validate", path)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := execute(t, "config", "validate", filepath.Join(dir, "none.cue"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestTestCommand(t *testing.T) {
	out, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "identity_loop")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--filter", "identity_*", "--format", "json")
	require.NoError(t, err)

	data := decodeData(t, out)
	assert.EqualValues(t, 2, data["total"])
	assert.EqualValues(t, 2, data["passed"])
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `name: wrong
description: Expects the wrong order.
query: for $x in (1, 2) return $x
assertions:
  - type: plan_equals
    plan: "(2, 1)"
`)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "1 failed")
}

func TestTestCommand_UpdateGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "loop.yaml", `name: loop
description: Identity loop collapses to its sequence.
query: for $x in (1, 2, 3) return $x
assertions:
  - type: no_clauses
`)

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "testdata", "golden", "loop.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "plan: (1, 2, 3)")

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
