package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetString(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SetString(ctx, "end", "2025-06-20"))
			v, ok, err := s.GetString(ctx, "end")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2025-06-20", v)

			require.NoError(t, s.SetString(ctx, "end", "2025-06-30"))
			v, _, _ = s.GetString(ctx, "end")
			assert.Equal(t, "2025-06-30", v)

			require.NoError(t, s.Delete(ctx, "end"))
			_, ok, err = s.GetString(ctx, "end")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestStore_Bool(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetBool(ctx, "flag", true))
			v, ok, err := s.GetBool(ctx, "flag")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, v)

			require.NoError(t, s.SetBool(ctx, "flag", false))
			v, ok, _ = s.GetBool(ctx, "flag")
			assert.True(t, ok)
			assert.False(t, v)

			require.NoError(t, s.SetString(ctx, "flag", "garbage"))
			v, ok, err = s.GetBool(ctx, "flag")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.False(t, v)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetBool(ctx, "show_projected_growth", true))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.GetBool(ctx, "show_projected_growth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, v)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, _, err := s.GetString(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetString(ctx, "k", "v"), ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, "k"), ErrClosed)
}
