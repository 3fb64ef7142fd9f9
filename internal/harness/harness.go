package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/roach88/nao/internal/emit"
	"github.com/roach88/nao/internal/engine"
	"github.com/roach88/nao/internal/resolver"
	"github.com/roach88/nao/internal/store"
	"github.com/roach88/nao/internal/testutil"
)

// RootName is the package name every case compiles its root under.
const RootName = "main"

// Harness runs cases against a store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a case and returns the result.
//
// Each case runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Build an in-memory source lookup from the case's packages
//  2. Resolve and compile the root package
//  3. Record the compilation and compare it with the expectation
//  4. Evaluate the pallet, apply the calls and run the tests
//  5. Evaluate assertions
//
// An error is returned only when the case could not be run at all; a case
// that runs and does not match its expectation reports it in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequenceIDGenerator("compilation")),
		store.WithClock(testutil.NewStepClock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, logger: testutil.DiscardLogger()}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	source, err := rootSource(scenario)
	if err != nil {
		return nil, err
	}

	r := resolver.New(lookupFor(scenario), resolver.WithLogger(h.logger))
	result := NewResult()

	pallet, err := r.Resolve(ctx, RootName, source)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return h.failed(ctx, scenario, result, err)
	}

	comp, err := h.store.RecordSuccess(ctx, scenario.Name, pallet)
	if err != nil {
		return nil, fmt.Errorf("failed to record compilation: %w", err)
	}
	emitted, err := emit.Emit(pallet)
	if err != nil {
		return nil, err
	}
	result.Outcome = OutcomeCompiled
	result.CompilationID = comp.ID
	result.PalletID = emitted.ID
	result.Packages = emitted.Keys
	result.Canonical = emitted.Canonical

	if scenario.Expect.Outcome != OutcomeCompiled {
		result.AddError(fmt.Sprintf("expected compilation to fail with %s, but it compiled", scenario.Expect.Code))
		return result, nil
	}

	eng, err := engine.New(ctx, pallet, engine.WithLogger(h.logger))
	if err != nil {
		result.AddError(fmt.Sprintf("evaluate: %v", err))
		return result, nil
	}

	for i, call := range scenario.Calls {
		if msg := h.call(ctx, eng, call); msg != "" {
			result.AddError(fmt.Sprintf("calls[%d] %s: %s", i, call.Function, msg))
		}
	}

	tests, err := eng.RunTests(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tests {
		outcome := TestOutcome{Name: t.Name, Passed: t.Passed()}
		if !t.Passed() {
			outcome.Code = string(engine.CodeOf(t.Err))
			outcome.Error = t.Err.Error()
		}
		result.Tests = append(result.Tests, outcome)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("case completed",
		"scenario", scenario.Name,
		"compilation_id", comp.ID,
		"pallet_id", emitted.ID,
		"pass", result.Pass,
	)
	return result, nil
}

// failed records a failed compilation and checks it against the
// expectation.
func (h *Harness) failed(ctx context.Context, scenario *Scenario, result *Result, cause error) (*Result, error) {
	code := resolver.ErrorCode(cause)
	comp, err := h.store.RecordFailure(ctx, scenario.Name, code, cause.Error())
	if err != nil {
		return nil, fmt.Errorf("failed to record compilation: %w", err)
	}
	result.Outcome = OutcomeFailed
	result.CompilationID = comp.ID
	result.Code = code
	result.Message = cause.Error()

	exp := scenario.Expect
	switch {
	case exp.Outcome != OutcomeFailed:
		result.AddError(fmt.Sprintf("expected compilation to succeed, got %v", cause))
	case exp.Code != code:
		result.AddError(fmt.Sprintf("expected error code %s, got %s: %v", exp.Code, code, cause))
	case exp.Message != "" && !strings.Contains(cause.Error(), exp.Message):
		result.AddError(fmt.Sprintf("expected message containing %q, got %q", exp.Message, cause.Error()))
	}
	return result, nil
}

// call applies one definition and returns a mismatch description, or "".
func (h *Harness) call(ctx context.Context, eng *engine.Engine, step CallStep) string {
	args := make([]engine.Value, len(step.Args))
	for i, a := range step.Args {
		n, err := engine.NewNumber(a)
		if err != nil {
			return fmt.Sprintf("argument %d: %v", i, err)
		}
		args[i] = n
	}

	v, err := eng.Call(ctx, step.Function, args...)
	if step.Error != "" {
		if got := string(engine.CodeOf(err)); got != step.Error {
			return fmt.Sprintf("expected runtime error %s, got %v", step.Error, err)
		}
		return ""
	}
	if err != nil {
		return err.Error()
	}

	out, ok := v.(*engine.Outputs)
	if !ok {
		return fmt.Sprintf("expected outputs, got %s", engine.Format(v))
	}
	for _, name := range sortedKeys(step.Expect) {
		got, ok := out.Get(name)
		if !ok {
			return fmt.Sprintf("no output %s in %s", name, engine.Format(out))
		}
		if engine.Format(got) != step.Expect[name] {
			return fmt.Sprintf("output %s: expected %s, got %s", name, step.Expect[name], engine.Format(got))
		}
	}
	return ""
}

func rootSource(s *Scenario) (string, error) {
	if s.Source != "" {
		return s.Source, nil
	}
	data, err := os.ReadFile(s.Main)
	if err != nil {
		return "", fmt.Errorf("failed to read main: %w", err)
	}
	return string(data), nil
}

func lookupFor(s *Scenario) *resolver.MemoryLookup {
	mem := resolver.NewMemoryLookup()
	for key, src := range s.Packages {
		mem.Put(key, &resolver.Source{
			Language: resolver.LanguageNao,
			Name:     packageName(key),
			Content:  src,
			File:     key + ".nao",
		})
	}
	for _, f := range s.Foreign {
		mem.Put(f.Path, &resolver.Source{
			Language: f.Language,
			Name:     packageName(f.Path),
			Content:  f.Content,
		})
	}
	return mem
}

// packageName is the name an import key is bound to: the last element of
// the scope when there is one, otherwise of the path.
func packageName(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		key = key[i+1:]
	}
	return path.Base(key)
}
