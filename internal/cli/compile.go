package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nao/internal/emit"
	"github.com/roach88/nao/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // output file path
	Indent  bool   // indented instead of canonical JSON
	Archive string // sqlite archive path
}

// CompilationResult describes a successful compilation.
type CompilationResult struct {
	Root          string          `json:"root"`
	PalletID      string          `json:"pallet_id"`
	Packages      []string        `json:"packages"`
	CompilationID string          `json:"compilation_id,omitempty"`
	Output        string          `json:"output,omitempty"`
	IR            json.RawMessage `json:"ir,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file.nao | import-path>",
		Short: "Compile a package and its imports to pallet IR",
		Long: `Compile a root package and everything it imports to pallet IR.

The target is either a .nao file or an import path resolved through the
workspace. The pallet is written to stdout, or to --output, as canonical
JSON; --indent lays it out for reading. With --archive every attempt,
successful or not, is recorded in a SQLite archive.

Exit codes:
  0 - Compiled
  2 - Compilation failed or command error

Examples:
  nao compile src/model.nao
  nao compile -C ./project layers/dense --indent
  nao compile model.nao --output model.pallet.json --archive ./nao.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Indent, "indent", false, "indent the IR")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "record the compilation in this SQLite archive")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, target string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var archive *store.Store
	if opts.Archive != "" {
		st, err := store.Open(opts.Archive)
		if err != nil {
			return outputCompileError(formatter, ErrCodeArchive, fmt.Sprintf("opening archive: %v", err), nil)
		}
		defer st.Close()
		archive = st
	}

	formatter.VerboseLog("Compiling %s", target)
	t, err := LoadTarget(ctx, opts.RootOptions, target, logger)
	if err != nil {
		if archive != nil && !isLoadError(err) {
			if _, rerr := archive.RecordFailure(ctx, target, errorCode(err), err.Error()); rerr != nil {
				logger.Warn("archive failed compilation", "error", rerr)
			}
		}
		return outputCompileErrors(formatter, err)
	}

	emitted, err := emit.Emit(t.Pallet)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	for _, key := range emitted.Keys {
		formatter.VerboseLog("Package: %s", key)
	}

	result := &CompilationResult{
		Root:     t.Root,
		PalletID: emitted.ID,
		Packages: emitted.Keys,
		Output:   opts.Output,
	}

	if archive != nil {
		comp, err := archive.RecordSuccess(ctx, t.Root, t.Pallet)
		if err != nil {
			return outputCompileError(formatter, ErrCodeArchive, fmt.Sprintf("archiving compilation: %v", err), nil)
		}
		result.CompilationID = comp.ID
	}

	data := emitted.Canonical
	if opts.Indent {
		if data, err = emitted.Indented(); err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	logger.Info("compiled", "root", t.Root, "pallet_id", emitted.ID, "packages", len(emitted.Keys))
	return outputCompileSuccess(formatter, result, emitted)
}

func isLoadError(err error) bool {
	_, ok := err.(*LoadError)
	return ok
}

// outputCompileSuccess outputs successful compilation results. Without
// --output the IR itself is the text output, so it can be piped.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, emitted *emit.Emitted) error {
	if formatter.IsJSON() {
		if result.Output == "" {
			result.IR = json.RawMessage(emitted.Canonical)
		}
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, PalletID: result.PalletID})
	}

	if result.Output == "" {
		out := emitted.Canonical
		if formatter.Verbose {
			fmt.Fprintf(formatter.GetErrWriter(), "Pallet %s\n", result.PalletID)
		}
		return formatter.WriteIR(out, false)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %s: %d package(s)\n\n", result.Root, len(result.Packages))
	fmt.Fprintln(formatter.Writer, "Packages:")
	for _, key := range result.Packages {
		fmt.Fprintf(formatter.Writer, "  %s\n", key)
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Pallet %s\n", result.PalletID)
	if result.CompilationID != "" {
		fmt.Fprintf(formatter.Writer, "Archived as %s\n", result.CompilationID)
	}
	fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", result.Output)
	return nil
}

// outputCompileError outputs a single command error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs every problem a failed compilation reported.
func outputCompileErrors(formatter *OutputFormatter, err error) error {
	errs := diagnostics(err)

	if perr := formatter.Problems("Compilation failed", errs, errs); perr != nil {
		return perr
	}
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)), err)
}

// compileTarget is LoadTarget for commands that only need the pallet.
func compileTarget(ctx context.Context, opts *RootOptions, target string, logger *slog.Logger) (*Target, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return LoadTarget(ctx, opts, target, logger)
}
