package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parseSource = "func f(x) {\n  <- y = x\n}\n"

func TestParseShowsBuilderIR(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", parseSource)

	out, err := execute(t, NewParseCommand(&RootOptions{Format: "text", Workspace: dir}), file)
	require.NoError(t, err)

	var doc []any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc, 1)
	assert.Contains(t, out, `"__retval"`)
	assert.Contains(t, out, "\n  ")
}

func TestParseBareOutputDeclaration(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", "func f(x) {\n  <- x\n}\n")

	out, err := execute(t, NewParseCommand(&RootOptions{Format: "json", Workspace: dir}), file)
	require.NoError(t, err)

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, resp.Data))
	assert.Contains(t, compact.String(), `["__retval","x",null,null,null]`)
}

func TestParseRewrite(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", parseSource)

	out, err := execute(t, NewParseCommand(&RootOptions{Format: "text", Workspace: dir}), file, "--rewrite")
	require.NoError(t, err)
	assert.NotContains(t, out, `"__retval"`)
	assert.Contains(t, out, `"_sf_package"`)
	assert.Contains(t, out, `"_sf_function"`)
	assert.Contains(t, out, `"model"`)
}

func TestParseJSON(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "model.nao", "graph g {\n}\n")

	out, err := execute(t, NewParseCommand(&RootOptions{Format: "json", Workspace: dir}), file, "--rewrite")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, `["_sf_package","model",["_named_define_attr","g",["_sf_macro","g",[],[]]]]`, string(resp.Data))
}

func TestParseErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		out, err := execute(t, NewParseCommand(&RootOptions{Format: "text"}), filepath.Join(dir, "absent.nao"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E005]")
	})

	t.Run("syntax error", func(t *testing.T) {
		file := writeFile(t, dir, "bad.nao", "func f(x {\n")
		out, err := execute(t, NewParseCommand(&RootOptions{Format: "text"}), file)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "E100:")
	})

	t.Run("builder error", func(t *testing.T) {
		file := writeFile(t, dir, "dup.nao", "graph g {\n  f(a: 1, a: 2)\n}\n")
		out, err := execute(t, NewParseCommand(&RootOptions{Format: "text"}), file, "--rewrite")
		require.Error(t, err)
		assert.Contains(t, out, "✗ Compilation failed")
		assert.Contains(t, out, "E207:")
	})
}
