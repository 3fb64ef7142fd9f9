package resolver_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nao/internal/compiler"
	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/resolver"
	"github.com/roach88/nao/internal/testutil"
)

func setup(t *testing.T, sources map[string]string) (*resolver.Resolver, *resolver.MemoryLookup, *testutil.CountingLookup) {
	t.Helper()
	mem := resolver.NewMemoryLookup()
	for path, src := range sources {
		mem.PutNao(path, src)
	}
	lookup := testutil.NewCountingLookup(mem)
	return resolver.New(lookup, resolver.WithLogger(testutil.DiscardLogger())), mem, lookup
}

// =============================================================================
// Ordering and Memoization
// =============================================================================

func TestResolveSharedImportOnce(t *testing.T) {
	r, _, lookup := setup(t, map[string]string{
		"b": "import \"d\"\nfunc f(x) {\n  <- y = d.g(x)\n}\n",
		"c": "import \"d\"\nfunc h(x) {\n  <- y = x\n}\n",
		"d": "func g(x) {\n  <- y = x\n}\n",
	})

	pallet, err := r.Resolve(context.Background(), "main",
		"import (\n  \"b\"\n  \"c\"\n)\nfunc main() {\n  <- r = b.f(1)\n}\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "b", "c", "main"}, pallet.Keys())
	assert.Equal(t, 1, lookup.Count("d"))
	assert.Equal(t, 1, lookup.Count("b"))
	assert.Equal(t, 1, lookup.Count("c"))

	root, ok := pallet.Root().(*ir.Package)
	require.True(t, ok)
	assert.Equal(t, "main", root.Name)
}

func TestResolveIsDeterministic(t *testing.T) {
	sources := map[string]string{
		"lib": "func f(x) {\n  <- y = x; tf.add(here, here)\n}\n",
	}
	root := "import \"lib\"\nfunc main() {\n  <- r = lib.f(1)\n}\n"

	r, _, _ := setup(t, sources)
	first, err := r.Resolve(context.Background(), "main", root)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "main", root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveConcurrentCompilations(t *testing.T) {
	r, _, lookup := setup(t, map[string]string{
		"lib": "func f(x) {\n  <- y = x\n}\n",
	})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Resolve(context.Background(), "main", "import \"lib\"\ngraph g {\n}\n")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	// Each compilation keeps its own memo.
	assert.Equal(t, 8, lookup.Count("lib"))
}

func TestResolvePackagesByPath(t *testing.T) {
	r, _, _ := setup(t, map[string]string{
		"x/a": "import \"x/b\"\ngraph g {\n}\n",
		"x/b": "graph h {\n}\n",
	})

	pallet, err := r.ResolvePackages(context.Background(), "x/a", "x/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/b", "x/a"}, pallet.Keys())

	pkg := pallet.Units[1].Package.(*ir.Package)
	assert.Equal(t, "a", pkg.Name)
}

// =============================================================================
// Import Kinds
// =============================================================================

func TestResolveSkipsBuiltinRoot(t *testing.T) {
	r, _, lookup := setup(t, nil)

	pallet, err := r.Resolve(context.Background(), "main",
		"import (\n  \"tensorflow\"\n  \"tensorflow:nn\"\n)\nfunc main() {\n  <- r = tensorflow.add(1, 2)\n}\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"main"}, pallet.Keys())
	assert.Equal(t, 0, lookup.Count("tensorflow"))
	assert.Equal(t, 0, lookup.Count("tensorflow:nn"))
}

func TestResolveForeignPackage(t *testing.T) {
	r, mem, _ := setup(t, nil)
	mem.Put("py/mod", &resolver.Source{Language: resolver.LanguagePython, Content: "def f(): pass"})

	pallet, err := r.Resolve(context.Background(), "main", "import \"py/mod\"\ngraph g {\n}\n")
	require.NoError(t, err)

	require.Len(t, pallet.Units, 2)
	assert.Equal(t, &ir.ForeignPackage{
		Language: resolver.LanguagePython,
		Name:     "mod",
		Content:  "def f(): pass",
	}, pallet.Units[0].Package)
}

func TestResolveScopedImport(t *testing.T) {
	r, mem, lookup := setup(t, nil)
	mem.Put("lib:x/y", &resolver.Source{
		Language: resolver.LanguageNao,
		Name:     "y",
		Scope:    "x/y",
		Content:  "func f(x) {\n  <- r = x\n}\n",
	})

	pallet, err := r.Resolve(context.Background(), "main",
		"import \"lib:x/y\"\nfunc main() {\n  <- r = y.f(1)\n}\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"lib:x/y", "main"}, pallet.Keys())
	assert.Equal(t, 1, lookup.Count("lib:x/y"))
}

// =============================================================================
// Errors
// =============================================================================

func TestResolveCycles(t *testing.T) {
	tests := []struct {
		name    string
		sources map[string]string
		roots   []string
		want    string
	}{
		{
			name:    "self import",
			sources: map[string]string{"a": "import \"a\"\ngraph g {\n}\n"},
			roots:   []string{"a"},
			want:    "cyclic import: a -> a",
		},
		{
			name: "two packages",
			sources: map[string]string{
				"a": "import \"b\"\ngraph g {\n}\n",
				"b": "import \"a\"\ngraph g {\n}\n",
			},
			roots: []string{"a"},
			want:  "cyclic import: b -> a -> b",
		},
		{
			name: "three packages",
			sources: map[string]string{
				"x": "import \"y\"\ngraph g {\n}\n",
				"y": "import \"z\"\ngraph g {\n}\n",
				"z": "import \"x\"\ngraph g {\n}\n",
			},
			roots: []string{"x"},
			want:  "cyclic import: z -> x -> y -> z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := setup(t, tt.sources)
			_, err := r.ResolvePackages(context.Background(), tt.roots...)
			require.Error(t, err)
			assert.True(t, resolver.IsCycle(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestResolveCycleThroughRoot(t *testing.T) {
	r, _, _ := setup(t, map[string]string{
		"b": "import \"main\"\ngraph g {\n}\n",
	})

	_, err := r.Resolve(context.Background(), "main", "import \"b\"\ngraph g {\n}\n")
	require.Error(t, err)
	assert.EqualError(t, err, "cyclic import: b -> main -> b")
}

func TestResolveMissingPackage(t *testing.T) {
	r, _, _ := setup(t, nil)

	_, err := r.Resolve(context.Background(), "main", "import \"nope\"\ngraph g {\n}\n")
	require.Error(t, err)
	assert.True(t, resolver.IsImportError(err))
	assert.EqualError(t, err, "no such package: nope (imported by main)")
}

func TestResolveChecksAttributesAcrossPackages(t *testing.T) {
	r, _, _ := setup(t, map[string]string{
		"lib": "func h[k](x) {\n  <- y = x\n}\n",
	})

	_, err := r.Resolve(context.Background(), "main", "import \"lib\"\nfunc main() {\n  <- r = lib.h(1)\n}\n")
	require.Error(t, err)
	assert.Equal(t, compiler.ErrMissingAttributes, compiler.ErrorCode(err))
	assert.Contains(t, err.Error(), "missing attributes for lib.h: k")

	_, err = r.Resolve(context.Background(), "main", "import \"lib\"\nfunc main() {\n  <- r = lib.h[k: 1](1)\n}\n")
	assert.NoError(t, err)
}

func TestResolveDependencyErrorPropagates(t *testing.T) {
	r, _, _ := setup(t, map[string]string{
		"bad": "graph g {\n",
	})

	_, err := r.Resolve(context.Background(), "main", "import \"bad\"\ngraph g {\n}\n")
	require.Error(t, err)
	assert.Equal(t, "E100", compiler.ErrorCode(err))
	assert.Contains(t, err.Error(), "bad.nao")
}

func TestResolveHonorsCancellation(t *testing.T) {
	r, _, _ := setup(t, map[string]string{
		"lib": "graph g {\n}\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "main", "import \"lib\"\ngraph g {\n}\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorCode(t *testing.T) {
	r, _, _ := setup(t, map[string]string{
		"a":   "import \"b\"\ngraph g {\n}\n",
		"b":   "import \"a\"\ngraph g {\n}\n",
		"bad": "graph g {\n",
		"lib": "func h[k](x) {\n  <- y = x\n}\n",
	})

	tests := []struct {
		name string
		src  string
		code string
	}{
		{"cycle", "import \"a\"\ngraph g {\n}\n", resolver.ErrCodeCycle},
		{"missing package", "import \"nope\"\ngraph g {\n}\n", resolver.ErrCodeImport},
		{"syntax", "import \"bad\"\ngraph g {\n}\n", "E100"},
		{"attributes", "import \"lib\"\nfunc main() {\n  <- r = lib.h(1)\n}\n", compiler.ErrMissingAttributes},
		{"validation", "func f() {\n  x = for i = 0; i < 1 {\n  }\n}\n", compiler.ErrLoopWithoutOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), "main", tt.src)
			require.Error(t, err)
			assert.Equal(t, tt.code, resolver.ErrorCode(err))
		})
	}

	assert.Equal(t, "", resolver.ErrorCode(context.Canceled))
}
