package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveObjectKey(t *testing.T) {
	assert.Equal(t, "exports", resolveObjectKey("exports", ""))
	assert.Equal(t, "a.csv", resolveObjectKey("", "/a.csv"))
	assert.Equal(t, "exports/a.csv", resolveObjectKey("exports/", "a.csv"))
	assert.Equal(t, "exports/a.csv", resolveObjectKey("exports", "/exports/a.csv"))
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, "2024/a.csv", objectRelativePath("exports", "exports/2024/a.csv"))
	assert.Equal(t, "exports/a.csv", objectRelativePath("", "exports/a.csv"))
	assert.Equal(t, "a.csv", objectRelativePath("exports/a.csv", "exports/a.csv"))
}

func TestDownloader_Download(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.UploadObject(ctx, "exports/20240101.csv", []byte("a,b\n")))
	require.NoError(t, store.UploadObject(ctx, "exports/2024/20240102.xlsx", []byte("x")))
	require.NoError(t, store.UploadObject(ctx, "exports/readme.md", []byte("skip")))

	dest := t.TempDir()
	d, err := NewDownloader(store, dest)
	require.NoError(t, err)

	paths, err := d.Download(ctx, "exports", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dest, "2024", "20240102.xlsx"),
		filepath.Join(dest, "20240101.csv"),
	}, paths)

	paths, err = d.Download(ctx, "exports", "20240101.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "20240101.csv")}, paths)

	_, err = d.Download(ctx, "missing", "")
	assert.Error(t, err)

	_, err = NewDownloader(nil, dest)
	assert.Error(t, err)
}

func TestUploadFile(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "20240101.csv")
	require.NoError(t, os.WriteFile(local, []byte("name\n"), 0o644))

	key, err := UploadFile(ctx, store, "/results/", local)
	require.NoError(t, err)
	assert.Equal(t, "results/20240101.csv", key)

	objects, err := store.ListObjects(ctx, "results")
	require.NoError(t, err)
	require.Len(t, objects, 1)
}
