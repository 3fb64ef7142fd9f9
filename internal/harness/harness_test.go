package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inline(name, source string) *Scenario {
	return &Scenario{
		Name:        name,
		Description: name,
		Source:      source,
		Expect:      Expectation{Outcome: OutcomeCompiled},
	}
}

// =============================================================================
// Cases
// =============================================================================

func TestCasesPass(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/cases")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, s.Expect.Outcome, result.Outcome)
		})
	}
}

// =============================================================================
// Compiled Outcomes
// =============================================================================

func TestRunRecordsCompilation(t *testing.T) {
	result, err := Run(inline("record", "graph testNothing {\n}\n"))
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Equal(t, "compilation-0001", result.CompilationID)
	assert.Len(t, result.PalletID, 64)
	assert.Equal(t, []string{"main"}, result.Packages)
	assert.Equal(t, []TestOutcome{{Name: "testNothing", Passed: true}}, result.Tests)
}

func TestRunIsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/cases/imports.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.PalletID, second.PalletID)
	assert.Equal(t, first.Canonical, second.Canonical)
	assert.Equal(t, first.CompilationID, second.CompilationID)
}

func TestRunReportsFailingTests(t *testing.T) {
	result, err := Run(inline("failing", "graph testNo {\n  tf.Assert(false, \"never\")\n}\n"))
	require.NoError(t, err)

	// A failing test is data, not a mismatch, until an assertion says so.
	assert.True(t, result.Pass)
	require.Len(t, result.Tests, 1)
	assert.False(t, result.Tests[0].Passed)
	assert.Equal(t, "ASSERTION_FAILED", result.Tests[0].Code)
	assert.Contains(t, result.Tests[0].Error, "assertion failed: never")
}

func TestRunCallMismatches(t *testing.T) {
	s := inline("calls", "func id(x) {\n  <- y = x\n}\n")
	s.Calls = []CallStep{
		{Function: "id", Args: []string{"1"}, Expect: map[string]string{"y": "2"}},
		{Function: "id", Args: []string{"1"}, Expect: map[string]string{"z": "1"}},
		{Function: "id", Args: []string{"one"}},
		{Function: "id", Args: []string{"1"}, Error: "ARITY"},
		{Function: "missing"},
		{Function: "id", Args: []string{"7"}, Expect: map[string]string{"y": "7"}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Equal(t, "calls[0] id: output y: expected 2, got 1", result.Errors[0])
	assert.Contains(t, result.Errors[1], "calls[1] id: no output z")
	assert.Contains(t, result.Errors[2], "calls[2] id: argument 0")
	assert.Contains(t, result.Errors[3], "calls[3] id: expected runtime error ARITY")
	assert.Contains(t, result.Errors[4], "calls[4] missing: UNBOUND")
}

func TestRunAssertionFailures(t *testing.T) {
	s := inline("assertions", "graph testG {\n}\n")
	s.Assertions = []Assertion{
		{Type: AssertPackageOrder, Packages: []string{"lib", "main"}},
		{Type: AssertIRContains, Text: "_sf_function"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "package_order")
	assert.Contains(t, result.Errors[1], "ir_contains")
}

func TestRunUnexpectedCompilation(t *testing.T) {
	s := inline("unexpected", "graph g {\n}\n")
	s.Expect = Expectation{Outcome: OutcomeFailed, Code: "E100"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, OutcomeCompiled, result.Outcome)
	assert.Contains(t, result.Errors[0], "expected compilation to fail with E100")
}

// =============================================================================
// Failed Outcomes
// =============================================================================

func TestRunFailedCompilation(t *testing.T) {
	s := inline("broken", "graph g {\n")
	s.Expect = Expectation{Outcome: OutcomeFailed, Code: "E100", Message: "main.nao"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "E100", result.Code)
	assert.Equal(t, "compilation-0001", result.CompilationID)
	assert.Empty(t, result.PalletID)
}

func TestRunFailedExpectationMismatch(t *testing.T) {
	tests := []struct {
		name   string
		expect Expectation
		errMsg string
	}{
		{"expected success", Expectation{Outcome: OutcomeCompiled}, "expected compilation to succeed"},
		{"wrong code", Expectation{Outcome: OutcomeFailed, Code: "E302"}, "expected error code E302, got E100"},
		{"wrong message", Expectation{Outcome: OutcomeFailed, Code: "E100", Message: "elsewhere.nao"}, `expected message containing "elsewhere.nao"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := inline("broken", "graph g {\n")
			s.Expect = tt.expect

			result, err := Run(s)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.errMsg)
		})
	}
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := inline("canceled", "import \"lib\"\ngraph g {\n}\n")
	s.Packages = map[string]string{"lib": "graph h {\n}\n"}
	_, err := RunContext(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMissingMain(t *testing.T) {
	s := inline("nomain", "")
	s.Main = "testdata/src/absent.nao"
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read main")
}

// =============================================================================
// Helpers
// =============================================================================

func TestPackageName(t *testing.T) {
	assert.Equal(t, "lib", packageName("math/lib"))
	assert.Equal(t, "y", packageName("lib:x/y"))
	assert.Equal(t, "main", packageName("main"))
}
