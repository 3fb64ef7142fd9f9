package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nao/internal/resolver"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// Configuration
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "tensorflow", cfg.Builtin)
	assert.Equal(t, []Attempt{
		{Language: resolver.LanguageNao, Dir: "src", Suffix: ".nao"},
		{Language: resolver.LanguagePython, Dir: "src", Suffix: ".py"},
		{Language: resolver.LanguageMetagraph, Dir: "pkg", Suffix: ".metagraph.pbtxt"},
	}, cfg.Attempts)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	def, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, def, cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFile, `
builtin: "tf"
attempts: [{language: "nao", dir: "lib", suffix: ".nao"}]
`)

	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "tf", cfg.Builtin)
	assert.Equal(t, []Attempt{{Language: "nao", Dir: "lib", Suffix: ".nao"}}, cfg.Attempts)
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFile, `builtin: "tf"`)

	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "tf", cfg.Builtin)
	assert.Len(t, cfg.Attempts, 3)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown language", `attempts: [{language: "rust", dir: "src", suffix: ".rs"}]`},
		{"suffix without dot", `attempts: [{language: "nao", dir: "src", suffix: "nao"}]`},
		{"empty builtin", `builtin: ""`},
		{"unknown field", `colour: "blue"`},
		{"syntax error", `builtin: "tf`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, ConfigFile, tt.content)

			_, err := LoadConfig(root)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), ErrCodeConfig)
		})
	}
}

// =============================================================================
// Lookup
// =============================================================================

func TestLookupAttemptsInOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a/b.nao", "graph g {\n}\n")
	writeFile(t, root, "src/p.py", "def f(): pass\n")
	writeFile(t, root, "src/both.nao", "let x = 1\n")
	writeFile(t, root, "src/both.py", "x = 1\n")
	writeFile(t, root, "pkg/m.metagraph.pbtxt", "meta_info_def {}\n")

	ws, err := Open(root)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		path     string
		language string
		name     string
		content  string
	}{
		{"a/b", resolver.LanguageNao, "b", "graph g {\n}\n"},
		{"p", resolver.LanguagePython, "p", "def f(): pass\n"},
		{"both", resolver.LanguageNao, "both", "let x = 1\n"},
		{"m", resolver.LanguageMetagraph, "m", "meta_info_def {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src, err := ws.Lookup(ctx, tt.path, "")
			require.NoError(t, err)
			assert.Equal(t, tt.language, src.Language)
			assert.Equal(t, tt.name, src.Name)
			assert.Equal(t, tt.content, src.Content)
		})
	}

	_, err = ws.Lookup(ctx, "missing", "")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestPutSourceOverridesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.nao", "graph g {\n}\n")

	ws, err := Open(root)
	require.NoError(t, err)
	ws.PutSource("lib", resolver.LanguageNao, "graph h {\n}\n")

	src, err := ws.Lookup(context.Background(), "lib", "")
	require.NoError(t, err)
	assert.Equal(t, "graph h {\n}\n", src.Content)
}

func TestWorkspaceResolver(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.nao", "func f(x) {\n  <- y = x\n}\n")

	ws, err := Open(root)
	require.NoError(t, err)

	pallet, err := ws.Resolver().Resolve(context.Background(), "main",
		"import \"lib\"\nfunc main() {\n  <- r = lib.f(1)\n}\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "main"}, pallet.Keys())
}

func TestLookupStaysInsideWorkspace(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	writeFile(t, parent, "outside.nao", "graph g {\n}\n")
	writeFile(t, root, "src/inside.nao", "graph g {\n}\n")

	ws, err := Open(root)
	require.NoError(t, err)
	ctx := context.Background()

	for _, importPath := range []string{"../../outside", "../src/inside", "a/../../../outside", "/etc/passwd"} {
		t.Run(importPath, func(t *testing.T) {
			_, err := ws.Lookup(ctx, importPath, "")
			assert.ErrorIs(t, err, ErrOutsideWorkspace)
		})
	}

	src, err := ws.Lookup(ctx, "sub/../inside", "")
	require.NoError(t, err)
	assert.Equal(t, "graph g {\n}\n", src.Content)

	_, err = ws.Resolver().Resolve(ctx, "main", "import \"../../outside\"\ngraph g {\n}\n")
	assert.ErrorIs(t, err, ErrOutsideWorkspace)
}

func TestPutSourceServesScopedImports(t *testing.T) {
	root := t.TempDir()
	ws, err := Open(root)
	require.NoError(t, err)
	ws.PutSource("lib", resolver.LanguagePython, "def f(x): return x")
	ws.PutSource("lib:special", resolver.LanguagePython, "def g(x): return x")
	ctx := context.Background()

	src, err := ws.Lookup(ctx, "lib", "ops/f")
	require.NoError(t, err)
	assert.Equal(t, "def f(x): return x", src.Content)
	assert.Equal(t, "ops/f", src.Scope)

	src, err = ws.Lookup(ctx, "lib", "special")
	require.NoError(t, err)
	assert.Equal(t, "def g(x): return x", src.Content)

	src, err = ws.Lookup(ctx, "lib", "")
	require.NoError(t, err)
	assert.Empty(t, src.Scope)
}
