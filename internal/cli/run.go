package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/nao/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Definition string
	MaxSteps   int
}

// RunResult holds the outputs of a definition.
type RunResult struct {
	Root       string            `json:"root"`
	Definition string            `json:"definition"`
	Outputs    map[string]string `json:"outputs"`
	Order      []string          `json:"order"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file.nao | import-path> [args...]",
		Short: "Evaluate a definition with the reference evaluator",
		Long: `Compile a target and apply one of its root package's definitions to
numeric arguments with the scalar reference evaluator.

The reference evaluator is test tooling: every value is a scalar decimal,
and only the builtin arithmetic, comparison and assertion members exist.

Exit codes:
  0 - The definition ran
  1 - Evaluation failed (assertion, quota, type mismatch)
  2 - Compilation failed or command error

Example:
  nao run model.nao 3 4
  nao run model.nao --def Scale 1.5`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinition(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Definition, "def", "Main", "definition to apply")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "iteration limit of a single loop")

	return cmd
}

func runDefinition(opts *RunOptions, target string, rawArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	args := make([]engine.Value, len(rawArgs))
	for i, a := range rawArgs {
		n, err := engine.NewNumber(a)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("argument %d: %v", i+1, err), nil)
		}
		args[i] = n
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := LoadTarget(ctx, opts.RootOptions, target, logger)
	if err != nil {
		return outputCompileErrors(formatter, err)
	}

	eng, err := engine.New(ctx, t.Pallet, engine.WithLogger(logger), engine.WithMaxSteps(opts.MaxSteps))
	if err != nil {
		return outputRuntimeError(formatter, err)
	}

	logger.Debug("applying definition", "root", t.Root, "definition", opts.Definition, "args", len(args))
	v, err := eng.Call(ctx, opts.Definition, args...)
	if err != nil {
		return outputRuntimeError(formatter, err)
	}

	result := RunResult{Root: t.Root, Definition: opts.Definition, Outputs: map[string]string{}, Order: []string{}}
	if out, ok := v.(*engine.Outputs); ok {
		for _, name := range out.Names {
			if val, ok := out.Get(name); ok {
				result.Outputs[name] = engine.Format(val)
				result.Order = append(result.Order, name)
			}
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	for _, name := range result.Order {
		fmt.Fprintf(formatter.Writer, "%s = %s\n", name, result.Outputs[name])
	}
	return nil
}

// outputRuntimeError reports a failed evaluation.
func outputRuntimeError(formatter *OutputFormatter, err error) error {
	code := string(engine.CodeOf(err))
	if code == "" {
		code = ErrCodeRuntime
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, "evaluation failed", err)
}
