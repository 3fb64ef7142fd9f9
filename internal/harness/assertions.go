package harness

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// assertPackageOrder checks the pallet order exactly.
func assertPackageOrder(result *Result, assertion Assertion) error {
	if slices.Equal(result.Packages, assertion.Packages) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPackageOrder,
		Expected: fmt.Sprintf("packages %v", assertion.Packages),
		Actual:   fmt.Sprintf("packages %v", result.Packages),
	}
}

// assertTestsPass checks that main declares tests and all of them pass.
func assertTestsPass(result *Result) error {
	if len(result.Tests) == 0 {
		return &AssertionError{
			Type:     AssertTestsPass,
			Expected: "at least one test definition",
			Actual:   "none found",
		}
	}
	var failed []string
	for _, t := range result.Tests {
		if !t.Passed {
			failed = append(failed, fmt.Sprintf("%s (%s)", t.Name, t.Error))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTestsPass,
		Expected: "all tests pass",
		Actual:   "failed: " + strings.Join(failed, ", "),
	}
}

// assertTestFails checks that a test failed, with the given code if any.
func assertTestFails(result *Result, assertion Assertion) error {
	t, ok := result.Test(assertion.Test)
	switch {
	case !ok:
		return &AssertionError{
			Type:     AssertTestFails,
			Expected: fmt.Sprintf("test %s", assertion.Test),
			Actual:   "no such test",
		}
	case t.Passed:
		return &AssertionError{
			Type:     AssertTestFails,
			Expected: fmt.Sprintf("test %s fails", assertion.Test),
			Actual:   "it passed",
		}
	case assertion.Code != "" && t.Code != assertion.Code:
		return &AssertionError{
			Type:     AssertTestFails,
			Expected: fmt.Sprintf("test %s fails with %s", assertion.Test, assertion.Code),
			Actual:   t.Error,
		}
	}
	return nil
}

func assertIR(result *Result, assertion Assertion) error {
	found := bytes.Contains(result.Canonical, []byte(assertion.Text))
	want := assertion.Type == AssertIRContains
	if found == want {
		return nil
	}
	expected := fmt.Sprintf("IR contains %q", assertion.Text)
	if !want {
		expected = fmt.Sprintf("IR does not contain %q", assertion.Text)
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: expected,
		Actual:   string(result.Canonical),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPackageOrder:
			err = assertPackageOrder(result, assertion)
		case AssertTestsPass:
			err = assertTestsPass(result)
		case AssertTestFails:
			err = assertTestFails(result, assertion)
		case AssertIRContains, AssertIRExcludes:
			err = assertIR(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
