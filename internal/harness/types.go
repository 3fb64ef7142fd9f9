package harness

// TestOutcome is the result of one test definition of main.
type TestOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a case.
type Result struct {
	// Pass indicates overall success: the expectation held and every call
	// and assertion matched.
	Pass bool `json:"pass"`

	// Outcome is what compilation actually did, "compiled" or "failed".
	Outcome string `json:"outcome"`

	// Code and Message describe a failed compilation.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// CompilationID is the store record of this compilation.
	CompilationID string `json:"compilation_id"`

	// PalletID, Packages and Canonical describe a successful compilation.
	PalletID  string   `json:"pallet_id,omitempty"`
	Packages  []string `json:"packages,omitempty"`
	Canonical []byte   `json:"-"`

	// Tests holds the test definitions of main, in declaration order.
	Tests []TestOutcome `json:"tests"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Tests:  []TestOutcome{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Test returns the outcome of the named test.
func (r *Result) Test(name string) (TestOutcome, bool) {
	for _, t := range r.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return TestOutcome{}, false
}
