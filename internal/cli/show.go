package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	IR       bool // print the archived IR
}

// ShowResult describes one archived compilation.
type ShowResult struct {
	Compilation store.Compilation     `json:"compilation"`
	Packages    []store.PackageRecord `json:"packages,omitempty"`
	Verified    bool                  `json:"verified"`
	IR          json.RawMessage       `json:"ir,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <compilation-id>",
		Short: "Show an archived compilation and verify its pallet",
		Long: `Show one archived compilation. For a successful compilation the
archived pallet is re-hashed and compared with its ID, so a corrupted
archive is detected.

Exit codes:
  0 - Shown (and verified)
  1 - The archived pallet does not match its ID
  2 - Command error (archive or compilation not found, etc.)

Examples:
  nao show --db ./nao.db 01930000-0000-7000-8000-000000000001
  nao show --db ./nao.db <id> --ir`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.IR, "ir", false, "print the archived IR")

	return cmd
}

func runShow(opts *ShowOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openArchive(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.ReadCompilation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation not found: %s", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read compilation", err)
	}

	result := ShowResult{Compilation: c}
	if c.Succeeded() {
		doc, err := st.Pallet(ctx, c.PalletID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read pallet", err)
		}
		result.Packages, err = st.PalletPackages(ctx, c.PalletID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read pallet packages", err)
		}
		result.Verified = ir.PalletID(doc) == c.PalletID
		if opts.IR {
			result.IR = json.RawMessage(doc)
		}
	}

	if formatter.IsJSON() {
		if err := formatter.Respond(CLIResponse{Status: "ok", Data: result, PalletID: c.PalletID}); err != nil {
			return err
		}
	} else if err := outputShowText(formatter, result); err != nil {
		return err
	}

	if c.Succeeded() && !result.Verified {
		return NewExitError(ExitFailure, fmt.Sprintf("archived pallet does not match its ID %s", c.PalletID))
	}
	return nil
}

func outputShowText(formatter *OutputFormatter, result ShowResult) error {
	w := formatter.Writer
	c := result.Compilation

	fmt.Fprintf(w, "Compilation %s (seq %d)\n", c.ID, c.Seq)
	fmt.Fprintf(w, "  Root:     %s\n", c.Root)
	fmt.Fprintf(w, "  Compiler: %s\n", c.CompilerVersion)
	if !c.Succeeded() {
		fmt.Fprintf(w, "  Failed:   %s: %s\n", c.ErrorCode, c.ErrorMessage)
		return nil
	}

	fmt.Fprintf(w, "  Pallet:   %s\n", c.PalletID)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Packages:")
	for _, p := range result.Packages {
		fmt.Fprintf(w, "  %d. %s  %s\n", p.Position+1, p.Key, shortID(p.Hash))
	}
	fmt.Fprintln(w)
	if result.Verified {
		fmt.Fprintln(w, "✓ Pallet matches its ID")
	} else {
		fmt.Fprintln(w, "✗ Pallet does not match its ID")
	}

	if result.IR != nil {
		fmt.Fprintln(w)
		return formatter.WriteIR(result.IR, true)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
