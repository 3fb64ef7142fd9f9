package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance case.
type Scenario struct {
	// Name uniquely identifies this case. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this case validates.
	Description string `yaml:"description"`

	// Source is the root package, inline.
	Source string `yaml:"source,omitempty"`

	// Main is a file holding the root package, used when Source is empty.
	// Relative paths are resolved against the case file's directory.
	Main string `yaml:"main,omitempty"`

	// Packages maps import keys ("path" or "path:scope") to native sources.
	Packages map[string]string `yaml:"packages,omitempty"`

	// Foreign lists packages in other languages.
	Foreign []ForeignSource `yaml:"foreign,omitempty"`

	// Expect is the expected compilation outcome.
	Expect Expectation `yaml:"expect"`

	// Calls apply definitions of main after a successful compilation.
	Calls []CallStep `yaml:"calls,omitempty"`

	// Assertions validate the emitted IR and the test definitions.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ForeignSource is a package carried through untouched.
type ForeignSource struct {
	Path     string `yaml:"path"`
	Language string `yaml:"language"`
	Content  string `yaml:"content"`
}

// Outcome values.
const (
	OutcomeCompiled = "compiled"
	OutcomeFailed   = "failed"
)

// Expectation describes how compilation should end.
type Expectation struct {
	// Outcome is "compiled" or "failed".
	Outcome string `yaml:"outcome"`

	// Code is the expected diagnostic code of a failure.
	Code string `yaml:"code,omitempty"`

	// Message must be a substring of the failure message.
	Message string `yaml:"message,omitempty"`
}

// CallStep applies a definition of main to decimal arguments.
type CallStep struct {
	Function string   `yaml:"function"`
	Args     []string `yaml:"args,omitempty"`

	// Expect maps output names to their formatted values. Subset match.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Error is the expected runtime error code. Expect is ignored when set.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates a compiled case.
type Assertion struct {
	// Type selects the assertion; see the package documentation.
	Type string `yaml:"type"`

	// Packages is the expected pallet order (package_order).
	Packages []string `yaml:"packages,omitempty"`

	// Test names a test definition (test_fails).
	Test string `yaml:"test,omitempty"`

	// Code is a runtime error code (test_fails).
	Code string `yaml:"code,omitempty"`

	// Text is searched for in the canonical IR (ir_contains, ir_excludes).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertPackageOrder = "package_order"
	AssertTestsPass    = "tests_pass"
	AssertTestFails    = "test_fails"
	AssertIRContains   = "ir_contains"
	AssertIRExcludes   = "ir_excludes"
)

// LoadScenario reads and parses a case file. Unknown fields are rejected so
// that typos fail loudly. A relative Main is resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Main != "" && !filepath.IsAbs(scenario.Main) {
		scenario.Main = filepath.Join(filepath.Dir(path), scenario.Main)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml case in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := map[string]string{}
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Source == "" && s.Main == "":
		return fmt.Errorf("one of source or main is required")
	case s.Source != "" && s.Main != "":
		return fmt.Errorf("source and main are mutually exclusive")
	case s.Main != "":
		if _, err := os.Stat(s.Main); os.IsNotExist(err) {
			return fmt.Errorf("main file not found: %s", s.Main)
		}
	}

	for i, f := range s.Foreign {
		if f.Path == "" {
			return fmt.Errorf("foreign[%d]: path is required", i)
		}
		if f.Language == "" {
			return fmt.Errorf("foreign[%d]: language is required", i)
		}
	}

	switch s.Expect.Outcome {
	case OutcomeCompiled:
		if s.Expect.Code != "" || s.Expect.Message != "" {
			return fmt.Errorf("expect: code and message only apply to a failed outcome")
		}
	case OutcomeFailed:
		if s.Expect.Code == "" {
			return fmt.Errorf("expect: code is required for a failed outcome")
		}
		if len(s.Calls) > 0 || len(s.Assertions) > 0 {
			return fmt.Errorf("calls and assertions need a compiled outcome")
		}
	default:
		return fmt.Errorf("expect: outcome must be %q or %q, got %q", OutcomeCompiled, OutcomeFailed, s.Expect.Outcome)
	}

	for i, c := range s.Calls {
		if c.Function == "" {
			return fmt.Errorf("calls[%d]: function is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPackageOrder:
		if len(a.Packages) == 0 {
			return fmt.Errorf("assertions[%d]: packages list is required for package_order", index)
		}
	case AssertTestsPass:
	case AssertTestFails:
		if a.Test == "" {
			return fmt.Errorf("assertions[%d]: test is required for test_fails", index)
		}
	case AssertIRContains, AssertIRExcludes:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
