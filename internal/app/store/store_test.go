package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.Set(ctx, "k", []byte("v2")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "options.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLite(context.Background(), db)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestPrefixed(t *testing.T) {
	mem := NewMemory()
	s := WithPrefix(mem, "site1:")
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "a", []byte("x")))
	_, err := mem.Get(context.Background(), "a")
	require.ErrorIs(t, err, ErrNotFound)
	raw, err := mem.Get(context.Background(), "site1:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)

	assert.Same(t, mem, WithPrefix(mem, ""))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, SetJSON(ctx, s, "ledger", map[string]int64{"abc": 10}))

	var got map[string]int64
	require.NoError(t, GetJSON(ctx, s, "ledger", &got))
	assert.Equal(t, map[string]int64{"abc": 10}, got)

	require.NoError(t, s.Set(ctx, "broken", []byte("{")))
	require.ErrorIs(t, GetJSON(ctx, s, "broken", &got), ErrCorrupt)
}
