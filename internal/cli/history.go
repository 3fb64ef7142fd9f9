package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nao/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Root     string // optional - filter to one root package
}

// HistoryResult holds the archived compilations.
type HistoryResult struct {
	Compilations []store.Compilation `json:"compilations"`
	Succeeded    int                 `json:"succeeded"`
	Failed       int                 `json:"failed"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived compilations",
		Long: `List the compilations recorded in an archive by "nao compile --archive",
oldest first. Failed compilations are listed with their error code.

Examples:
  nao history --db ./nao.db
  nao history --db ./nao.db --root model
  nao history --db ./nao.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Root, "root", "", "only compilations of this root package")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openArchive(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	compilations, err := st.History(cmd.Context(), opts.Root)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	result := HistoryResult{Compilations: compilations}
	for _, c := range compilations {
		if c.Succeeded() {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(compilations) == 0 {
		fmt.Fprintln(w, "No compilations archived.")
		return nil
	}
	for _, c := range compilations {
		status := "ok     " + shortID(c.PalletID)
		if !c.Succeeded() {
			status = "failed " + c.ErrorCode
		}
		fmt.Fprintf(w, "%4d  %s  %-20s  %s\n", c.Seq, c.ID, c.Root, status)
		formatter.VerboseLog("      %s  compiler %s", c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), c.CompilerVersion)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d compilation(s): %d succeeded, %d failed\n", len(compilations), result.Succeeded, result.Failed)
	return nil
}

// openArchive opens an existing archive. Unlike store.Open it refuses to
// create a new database, so a mistyped path is reported.
func openArchive(path string) (*store.Store, error) {
	if !fileExists(path) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("archive not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return st, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
