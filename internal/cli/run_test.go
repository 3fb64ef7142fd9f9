package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runSource = `func Main(x) {
  <- y = x * 2
}

func div(a, b) {
  <- q = a / b
  <- r = a % b
}

func spin() {
  out = for i = 0; i < 1 {
    <- i = i
  }
  <- r = out:i
}
`

func TestRunMain(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", runSource)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Workspace: dir}), file, "3")
	require.NoError(t, err)
	assert.Equal(t, "y = 6\n", out)
}

func TestRunNamedDefinition(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", runSource)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Workspace: dir}), file, "--def", "div", "7", "2")
	require.NoError(t, err)
	assert.Equal(t, "q = 3.5\nr = 1\n", out)
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", runSource)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "json", Workspace: dir}), file, "--def", "div", "7", "2")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "model", resp.Data.Root)
	assert.Equal(t, "div", resp.Data.Definition)
	assert.Equal(t, []string{"q", "r"}, resp.Data.Order)
	assert.Equal(t, map[string]string{"q": "3.5", "r": "1"}, resp.Data.Outputs)
}

// =============================================================================
// Failures
// =============================================================================

func TestRunRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"division by zero", []string{"--def", "div", "1", "0"}, "ARITHMETIC"},
		{"undefined definition", []string{"--def", "missing"}, "UNBOUND"},
		{"wrong arity", []string{"1", "2"}, "ARITY"},
		{"loop quota", []string{"--def", "spin", "--max-steps", "5"}, "QUOTA_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			file := writeFile(t, dir, "model.nao", runSource)

			out, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Workspace: dir}), append([]string{file}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestRunBadArgument(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", runSource)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Workspace: dir}), file, "three")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "argument 1:")
}

func TestRunCompileFailure(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", "func Main(x) {\n")

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Workspace: dir}), file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E100:")
}

func TestRunRuntimeErrorJSON(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", runSource)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "json", Workspace: dir}), file, "--def", "div", "1", "0")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ARITHMETIC", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "(in div)")
}
