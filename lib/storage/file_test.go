package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessionstorage.json")
	f := NewFileStore(path)
	ctx := context.Background()

	items, err := f.Items()
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, f.SetItem(ctx, "k1", `{"a":1}`))
	require.NoError(t, f.SetItem(ctx, "k2", "v2"))
	require.NoError(t, f.SetItem(ctx, "k1", "v1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, onDisk)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreMergesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessionstorage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"other":"kept"}`), 0o600))

	f := NewFileStore(path)
	require.NoError(t, f.SetItem(context.Background(), "new", "value"))

	items, err := f.Items()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"other": "kept", "new": "value"}, items)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessionstorage.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2`), 0o600))

	err := NewFileStore(path).SetItem(context.Background(), "k", "v")
	assert.Error(t, err)
}
