package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nao/internal/ir"
)

// Snapshot is the golden record of a case: what compilation produced and
// how the tests of main ended.
type Snapshot struct {
	Name     string
	Outcome  string
	Code     string
	Message  string
	Packages []string
	IR       []byte // canonical IR document
	Tests    []TestOutcome
}

// toCanonicalMap converts a Snapshot for ir.MarshalCanonical, which only
// handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() (map[string]any, error) {
	result := map[string]any{
		"name":    s.Name,
		"outcome": s.Outcome,
	}
	if s.Outcome == OutcomeFailed {
		result["code"] = s.Code
		result["message"] = s.Message
		return result, nil
	}

	packages := make([]any, len(s.Packages))
	for i, p := range s.Packages {
		packages[i] = p
	}
	result["packages"] = packages

	// The IR is already canonical. Decoding it keeps the snapshot a single
	// canonical document.
	var doc any
	if err := json.Unmarshal(s.IR, &doc); err != nil {
		return nil, fmt.Errorf("decode IR: %w", err)
	}
	irDoc, err := fromJSON(doc)
	if err != nil {
		return nil, err
	}
	result["ir"] = irDoc

	tests := make([]any, len(s.Tests))
	for i, t := range s.Tests {
		entry := map[string]any{"name": t.Name, "passed": t.Passed}
		if t.Code != "" {
			entry["code"] = t.Code
		}
		tests[i] = entry
	}
	result["tests"] = tests
	return result, nil
}

// fromJSON converts decoded JSON into IR values. The IR carries no
// floats, so every number is an integer dimension.
func fromJSON(v any) (ir.IRValue, error) {
	switch v := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(v), nil
	case bool:
		return ir.IRBool(v), nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("non-integral number in IR: %v", v)
		}
		return ir.IRInt(int64(v)), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, e := range v {
			iv, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			arr[i] = iv
		}
		return arr, nil
	case map[string]any:
		obj := make(ir.IRObject, len(v))
		for k, e := range v {
			iv, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			obj[k] = iv
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported JSON value %T", v)
}

// SnapshotOf builds the golden record of a result.
func SnapshotOf(name string, result *Result) *Snapshot {
	return &Snapshot{
		Name:     name,
		Outcome:  result.Outcome,
		Code:     result.Code,
		Message:  result.Message,
		Packages: result.Packages,
		IR:       result.Canonical,
		Tests:    result.Tests,
	}
}

// Canonical returns the snapshot as the canonical JSON stored in golden
// files.
func (s *Snapshot) Canonical() ([]byte, error) {
	m, err := s.toCanonicalMap()
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(m)
}

// RunWithGolden executes a case and compares its snapshot against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's snapshot against a golden file without
// re-running the case.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotOf(name, result).Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
