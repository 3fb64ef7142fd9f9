package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Diagnostic is one problem found while checking a target.
type Diagnostic struct {
	Target  string `json:"target"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// CheckResult holds the results of checking targets.
type CheckResult struct {
	Valid    bool         `json:"valid"`
	Checked  []string     `json:"checked"`
	Problems []Diagnostic `json:"problems,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.nao | import-path>...",
		Short: "Check packages without emitting IR",
		Long: `Compile one or more targets and report every problem found, without
writing any IR. Each target is checked on its own, so one broken package
does not hide problems in the others.

Exit codes:
  0 - All targets compile
  1 - One or more targets have problems
  2 - Command error (invalid workspace, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), rootOpts, args, cmd)
		},
	}

	return cmd
}

func runCheck(ctx context.Context, opts *RootOptions, targets []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	if _, err := OpenWorkspace(opts); err != nil {
		return outputCheckError(formatter, errorCode(err), err.Error(), nil)
	}

	result := CheckResult{Valid: true, Checked: targets}
	for _, target := range targets {
		formatter.VerboseLog("Checking %s", target)
		t, err := compileTarget(ctx, opts, target, logger)
		if err != nil {
			for _, d := range diagnostics(err) {
				diag := Diagnostic{Target: target, Code: d.Code, Message: d.Message}
				if field, ok := d.Details.(string); ok {
					diag.Field = field
				}
				result.Problems = append(result.Problems, diag)
			}
			continue
		}
		formatter.VerboseLog("  %d package(s): %v", len(t.Pallet.Units), t.Pallet.Keys())
	}
	result.Valid = len(result.Problems) == 0

	if !result.Valid {
		return outputCheckProblems(formatter, result)
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d target(s) valid\n", len(targets))
	return nil
}

// outputCheckError outputs a single command error.
func outputCheckError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, message)
}

// outputCheckProblems outputs every problem found.
func outputCheckProblems(formatter *OutputFormatter, result CheckResult) error {
	msg := fmt.Sprintf("check failed with %d problem(s)", len(result.Problems))

	problems := make([]CLIError, 0, len(result.Problems))
	for _, p := range result.Problems {
		where := p.Target
		if p.Field != "" {
			where = fmt.Sprintf("%s (%s)", p.Target, p.Field)
		}
		problems = append(problems, CLIError{Code: p.Code, Message: p.Message, Details: where})
	}
	if err := formatter.Problems("Check failed", problems, result); err != nil {
		return err
	}
	// Problems in the checked code = exit code 1
	return NewExitError(ExitFailure, msg)
}
