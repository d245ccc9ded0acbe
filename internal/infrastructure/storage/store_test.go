package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "store.json"))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, err := s.Get(ctx, "dex.customTokens")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "dex.customTokens", []byte(`[{"symbol":"ABC"}]`)))
			require.NoError(t, s.Set(ctx, "dex.slippage", []byte(`0.5`)))

			got, err := s.Get(ctx, "dex.customTokens")
			require.NoError(t, err)
			assert.JSONEq(t, `[{"symbol":"ABC"}]`, string(got))

			require.NoError(t, s.Delete(ctx, "dex.customTokens"))
			require.NoError(t, s.Delete(ctx, "dex.customTokens"))
			_, err = s.Get(ctx, "dex.customTokens")
			assert.ErrorIs(t, err, ErrNotFound)

			got, err = s.Get(ctx, "dex.slippage")
			require.NoError(t, err)
			assert.Equal(t, "0.5", string(got))
		})
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	require.NoError(t, NewFileStore(path).Set(ctx, "k", []byte(`{"a":1}`)))

	got, err := NewFileStore(path).Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	assert.Error(t, NewFileStore(path).Set(ctx, "bad", []byte("not json")))
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := NewFileStore(path).Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
