// Package workspace locates package sources on disk. A workspace is a
// directory with an optional nao.cue describing where each language lives;
// the defaults search src/ for nao and python sources and pkg/ for
// metagraphs.
package workspace

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ConfigFile is the name of the workspace configuration file.
const ConfigFile = "nao.cue"

// ErrCodeConfig is the error code for invalid workspace configuration.
const ErrCodeConfig = "E501"

//go:embed schema.cue
var schemaSource string

// Attempt is one place a package may live: <root>/<Dir>/<path><Suffix>.
type Attempt struct {
	Language string `json:"language"`
	Dir      string `json:"dir"`
	Suffix   string `json:"suffix"`
}

// Config is a decoded nao.cue. Attempts are tried in order.
type Config struct {
	Builtin  string    `json:"builtin"`
	Attempts []Attempt `json:"attempts"`
}

// ConfigError reports an invalid nao.cue.
type ConfigError struct {
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), ErrCodeConfig, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrCodeConfig, e.Message)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// DefaultConfig returns the configuration of a workspace without nao.cue.
func DefaultConfig() (*Config, error) {
	return decodeConfig(nil, "")
}

// LoadConfig reads <root>/nao.cue, falling back to the defaults when the
// file does not exist.
func LoadConfig(root string) (*Config, error) {
	path := filepath.Join(root, ConfigFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decodeConfig(data, path)
}

// decodeConfig unifies the user's configuration with the schema. A nil data
// yields the schema defaults.
func decodeConfig(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling workspace schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Workspace"))
	if data != nil {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	return &cfg, nil
}

// formatCUEError converts the first CUE error into a ConfigError with its
// source position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Message: err.Error()}
	}
	first := errs[0]
	ce := &ConfigError{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
