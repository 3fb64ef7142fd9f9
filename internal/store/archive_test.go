package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nao/internal/emit"
	"github.com/roach88/nao/internal/resolver"
	"github.com/roach88/nao/internal/testutil"
)

// createTestStore opens a store with deterministic IDs and timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		WithClock(testutil.NewStepClock()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPallet(t *testing.T, src string) *resolver.Pallet {
	t.Helper()
	lookup := resolver.NewMemoryLookup()
	lookup.PutNao("lib", "func f(x) {\n  <- y = x\n}\n")
	p, err := resolver.New(lookup).Resolve(context.Background(), "main", src)
	require.NoError(t, err)
	return p
}

func TestRecordSuccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := testPallet(t, "import \"lib\"\nfunc main() {\n  <- r = lib.f(1)\n}\n")

	c, err := s.RecordSuccess(ctx, "main", p)
	require.NoError(t, err)

	e, err := emit.Emit(p)
	require.NoError(t, err)
	assert.Equal(t, Compilation{
		ID:              "test-compilation-0001",
		Seq:             1,
		Root:            "main",
		PalletID:        e.ID,
		CompilerVersion: "0.1.0",
		CreatedAt:       testutil.Epoch,
	}, c)
	assert.True(t, c.Succeeded())

	doc, err := s.Pallet(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Canonical, doc)

	pkgs, err := s.PalletPackages(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "lib", pkgs[0].Key)
	assert.Equal(t, "main", pkgs[1].Key)
	assert.Equal(t, 1, pkgs[1].Position)
	assert.Len(t, pkgs[0].Hash, 64)
}

func TestRecordSuccess_SamePalletStoredOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := "graph g {\n}\n"

	first, err := s.RecordSuccess(ctx, "main", testPallet(t, src))
	require.NoError(t, err)
	second, err := s.RecordSuccess(ctx, "main", testPallet(t, src))
	require.NoError(t, err)

	assert.Equal(t, first.PalletID, second.PalletID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.Seq)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM pallets").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecordFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.RecordFailure(ctx, "main", "E302", "cyclic import: a -> a")
	require.NoError(t, err)
	assert.False(t, c.Succeeded())

	got, err := s.ReadCompilation(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, "E302", got.ErrorCode)
}

func TestHistory_DeterministicOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordFailure(ctx, "a", "E100", "syntax error")
	require.NoError(t, err)
	_, err = s.RecordSuccess(ctx, "b", testPallet(t, "graph g {\n}\n"))
	require.NoError(t, err)
	_, err = s.RecordFailure(ctx, "a", "E204", "missing attributes")
	require.NoError(t, err)

	all, err := s.History(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, int64(i+1), c.Seq)
		assert.Equal(t, testutil.Epoch.Add(time.Duration(i)*time.Second), c.CreatedAt)
	}

	onlyA, err := s.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "E100", onlyA[0].ErrorCode)
	assert.Equal(t, "E204", onlyA[1].ErrorCode)
}

func TestHistory_Empty(t *testing.T) {
	s := createTestStore(t)

	history, err := s.History(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestReadNotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Pallet(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadCompilation(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultIDsAreUUIDv7(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	c, err := s.RecordFailure(context.Background(), "main", "E100", "x")
	require.NoError(t, err)

	parsed, err := uuid.Parse(c.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
