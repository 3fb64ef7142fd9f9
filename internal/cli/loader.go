package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/nao/internal/compiler"
	"github.com/roach88/nao/internal/resolver"
	"github.com/roach88/nao/internal/workspace"
)

// CLI error codes. Compiler, resolver and workspace errors keep their own
// codes (E100, E2xx, E3xx, E4xx, E501).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadSource   = "E008" // Malformed --source override
	ErrCodeArchive     = "E009" // Archive could not be opened or written
	ErrCodeRuntime     = "E010" // Evaluation failed
)

// LoadError represents an error that occurred before compilation started.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Target is a compiled pallet and the name of its root package.
type Target struct {
	Root   string
	Pallet *resolver.Pallet
}

// IsFileTarget reports whether target names a source file rather than an
// import path.
func IsFileTarget(target string) bool {
	return strings.HasSuffix(target, ".nao")
}

// OpenWorkspace opens the workspace of opts and applies its --source
// overrides.
func OpenWorkspace(opts *RootOptions) (*workspace.Workspace, error) {
	ws, err := workspace.Open(opts.Workspace)
	if err != nil {
		var ce *workspace.ConfigError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: workspace.ErrCodeConfig, Message: ce.Error(), Err: err}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err}
	}

	for _, s := range opts.Sources {
		importPath, file, ok := strings.Cut(s, "=")
		if !ok || importPath == "" || file == "" {
			return nil, &LoadError{Code: ErrCodeBadSource, Message: fmt.Sprintf("--source %q: expected path=file", s)}
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("--source %s: %v", importPath, err), Err: err}
		}
		ws.PutSource(importPath, resolver.LanguageNao, string(data))
	}
	return ws, nil
}

// LoadTarget compiles target, either a .nao file or an import path
// resolved through the workspace. Compilation errors are returned as the
// resolver reports them.
func LoadTarget(ctx context.Context, opts *RootOptions, target string, logger *slog.Logger) (*Target, error) {
	ws, err := OpenWorkspace(opts)
	if err != nil {
		return nil, err
	}
	r := ws.Resolver(resolver.WithLogger(logger))

	if !IsFileTarget(target) {
		pallet, err := r.ResolvePackages(ctx, target)
		if err != nil {
			return nil, err
		}
		return &Target{Root: target, Pallet: pallet}, nil
	}

	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("source file not found: %s", target), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s: %v", target, err), Err: err}
	}

	root := strings.TrimSuffix(filepath.Base(target), ".nao")
	logger.Debug("compiling file", "file", target, "root", root)
	pallet, err := r.Resolve(ctx, root, string(data))
	if err != nil {
		return nil, err
	}
	return &Target{Root: root, Pallet: pallet}, nil
}

// errorCode returns the code of any error the loader or compiler reports.
func errorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	if code := resolver.ErrorCode(err); code != "" {
		return code
	}
	return ErrCodeGeneric
}

// diagnostics flattens err into one CLIError per problem. Validation
// reports every violation it finds; everything else is a single error.
func diagnostics(err error) []CLIError {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []CLIError
		for _, e := range multi.Unwrap() {
			out = append(out, diagnostics(e)...)
		}
		return out
	}
	if inner := errors.Unwrap(err); inner != nil {
		if _, ok := inner.(interface{ Unwrap() []error }); ok {
			return diagnostics(inner)
		}
	}

	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return []CLIError{{Code: ve.Code, Message: ve.Message, Details: ve.Field}}
	}
	var le *LoadError
	if errors.As(err, &le) {
		return []CLIError{{Code: le.Code, Message: le.Message}}
	}
	return []CLIError{{Code: errorCode(err), Message: err.Error()}}
}
