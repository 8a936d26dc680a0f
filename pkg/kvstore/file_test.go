package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreGetPut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "edunotas_modo_v1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "edunotas_modo_v1", []byte(`{"mode":"grupos"}`)))
	value, err := store.Get(ctx, "edunotas_modo_v1")
	require.NoError(t, err)
	assert.Equal(t, `{"mode":"grupos"}`, string(value))

	_, err = os.Stat(filepath.Join(dir, "edunotas_modo_v1.json"))
	assert.NoError(t, err)
	assert.NoError(t, store.Ping(ctx))
}

func TestFileNameSanitisesKeys(t *testing.T) {
	assert.Equal(t, "a_b_c.json", fileName("a/b c"))
	assert.Equal(t, "edunotas_x.json", fileName("edunotas:x"))
}
