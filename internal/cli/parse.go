package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nao/internal/compiler"
	"github.com/roach88/nao/internal/ir"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Rewrite bool // show rewritten IR instead of raw builder output
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <file.nao>",
		Short: "Show the IR of a single file",
		Long: `Parse one file and print its IR without resolving imports.

By default the raw IR straight from the builder is shown, including the
builder-only forms (lets, pipelines, output declarations). --rewrite shows
the package as the rewriter leaves it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Rewrite, "rewrite", false, "show rewritten IR")

	return cmd
}

func runParse(opts *ParseOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	data, err := os.ReadFile(file)
	if err != nil {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("reading %s: %v", file, err), nil)
	}

	var doc ir.IRValue
	if opts.Rewrite {
		name := strings.TrimSuffix(filepath.Base(file), ".nao")
		pkg, err := compiler.CompileSource(name, file, string(data))
		if err != nil {
			return outputCompileErrors(formatter, err)
		}
		doc = ir.Encode(pkg)
	} else {
		nodes, err := compiler.BuildSource(file, string(data))
		if err != nil {
			return outputCompileErrors(formatter, err)
		}
		arr := make(ir.IRArray, len(nodes))
		for i, n := range nodes {
			arr[i] = ir.Encode(n)
		}
		doc = arr
	}

	canonical, err := ir.MarshalCanonical(doc)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("%s: %d bytes of IR", file, len(canonical))

	if formatter.IsJSON() {
		return formatter.Success(json.RawMessage(canonical))
	}

	return formatter.WriteIR(canonical, true)
}
