package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyGraphCase = `name: empty_graph
description: "An empty graph compiles and passes"
source: |
  graph testEmpty {
  }
expect:
  outcome: compiled
assertions:
  - type: tests_pass
`

const wrongOutcomeCase = `name: wrong_outcome
description: "Expects a failure from a graph that compiles"
source: |
  graph g {
  }
expect:
  outcome: failed
  code: E100
`

const emptyGraphSnapshot = `{"ir":{"packages":[["_sf_package","main",["_named_define_attr","testEmpty",["_sf_macro","testEmpty",[],[]]]]],"version":"1"},"name":"empty_graph","outcome":"compiled","packages":["main"],"tests":[{"name":"testEmpty","passed":true}]}`

func TestCasesUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty_graph.yaml", emptyGraphCase)

	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ empty_graph")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "empty_graph.golden"))
	require.NoError(t, err)
	assert.JSONEq(t, emptyGraphSnapshot, string(golden))

	out, err = execute(t, NewCasesCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Case Summary: 1 passed, 0 failed, 1 total")
}

func TestCasesGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty_graph.yaml", emptyGraphCase)
	writeFile(t, dir, "golden/empty_graph.golden", `{"name":"empty_graph"}`)

	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ empty_graph")
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestCasesFailingCase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty_graph.yaml", emptyGraphCase)
	writeFile(t, dir, "wrong_outcome.yml", wrongOutcomeCase)

	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string      `json:"status"`
		Data   CasesResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CASE_FAILED", resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestCasesFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty_graph.yaml", emptyGraphCase)
	writeFile(t, dir, "wrong_outcome.yaml", wrongOutcomeCase)

	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "text"}), dir, "--filter", "empty_*")
	require.NoError(t, err)
	assert.NotContains(t, out, "wrong_outcome")
	assert.Contains(t, out, "Case Summary: 1 passed, 0 failed, 1 total")
}

func TestCasesInvalidCaseFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nsorce: typo\n")

	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load case")
}

func TestCasesEmptyAndMissingDirectories(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Equal(t, "No cases found.\n", out)

	_, err = execute(t, NewCasesCommand(&RootOptions{Format: "text"}), filepath.Join(dir, "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "cases directory not found")
}

func TestCasesRepositoryCorpus(t *testing.T) {
	out, err := execute(t, NewCasesCommand(&RootOptions{Format: "text"}), filepath.Join("..", "harness", "testdata", "cases"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 failed")
}
