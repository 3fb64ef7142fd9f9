package cli

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/roach88/nao/internal/engine"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Run      string // regexp selecting test definitions
	MaxSteps int
}

// DefinitionResult holds the result of a single test definition.
type DefinitionResult struct {
	Name  string `json:"name"`
	Pass  bool   `json:"pass"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Root   string             `json:"root"`
	Tests  []DefinitionResult `json:"tests"`
	Passed int                `json:"passed"`
	Failed int                `json:"failed"`
	Total  int                `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <file.nao | import-path>",
		Short: "Run the test definitions of a package",
		Long: `Compile a target and apply every top-level definition of its root
package whose name starts with "test" or "Test", with no arguments. A test
passes when it runs without error; tf.Assert fails it.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed
  2 - Compilation failed or command error

Examples:
  nao test model.nao
  nao test layers/dense --run 'TestShape.*'
  nao test model.nao --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Run, "run", "", "run only tests matching this regular expression")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "iteration limit of a single loop")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, target string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var filter *regexp.Regexp
	if opts.Run != "" {
		re, err := regexp.Compile(opts.Run)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid --run pattern: %v", err), nil)
		}
		filter = re
	}

	t, err := compileTarget(ctx, opts.RootOptions, target, logger)
	if err != nil {
		return outputCompileErrors(formatter, err)
	}
	eng, err := engine.New(ctx, t.Pallet, engine.WithLogger(logger), engine.WithMaxSteps(opts.MaxSteps))
	if err != nil {
		return outputRuntimeError(formatter, err)
	}

	result := TestResult{Root: t.Root, Tests: []DefinitionResult{}}
	for _, name := range eng.Tests() {
		if filter != nil && !filter.MatchString(name) {
			continue
		}
		_, err := eng.Call(ctx, name)
		if ctx.Err() != nil {
			return WrapExitError(ExitCommandError, "interrupted", ctx.Err())
		}
		r := DefinitionResult{Name: name, Pass: err == nil}
		if err != nil {
			r.Code = string(engine.CodeOf(err))
			r.Error = err.Error()
			result.Failed++
		} else {
			result.Passed++
		}
		result.Tests = append(result.Tests, r)

		if !formatter.IsJSON() {
			if r.Pass {
				fmt.Fprintf(formatter.Writer, "✓ %s\n", name)
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s\n  %s\n", name, r.Error)
			}
		}
	}
	result.Total = len(result.Tests)

	// Output results
	if formatter.IsJSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d test(s) failed", result.Failed),
		}
	}

	if err := formatter.Respond(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d test(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No tests found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d test(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All tests passed")
	return nil
}
