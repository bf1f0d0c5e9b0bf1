package cachedb_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func buildLegacyCacheDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "index", "foo-1.0-0.tar.bz2.json"), map[string]any{
		"name": "foo", "version": "1.0", "build": "0", "subdir": "linux-64",
		"md5": "aaaa", "sha256": "bbbb", "size": 123,
	})
	writeJSON(t, filepath.Join(dir, "about", "foo-1.0-0.tar.bz2.json"), map[string]any{
		"home": "https://example.com/foo",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "icon"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icon", "foo-1.0-0.tar.bz2.png"), []byte("\x89PNG"), 0o644))
	writeJSON(t, filepath.Join(dir, "stat.json"), map[string]any{
		"foo-1.0-0.tar.bz2": map[string]any{"mtime": 1000, "size": 123},
	})
	return dir
}

func TestImportLegacyCacheImportsRecordsAndStat(t *testing.T) {
	store := openTestStore(t)
	cacheDir := buildLegacyCacheDir(t)

	n, err := store.ImportLegacyCache(context.Background(), "linux-64", cacheDir)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "index + about + icon files should all count")

	key := "linux-64/foo-1.0-0.tar.bz2"
	view, err := store.LoadMerged(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, view.Found)
	assert.Equal(t, "foo", view.Fields["name"])
	assert.Equal(t, "https://example.com/foo", view.Fields["home"])
	assert.False(t, view.Mtime.IsZero(), "stat.json import should populate the indexed mtime")

	rows, err := iter.All(store.IterIndexed(context.Background(), "linux-64", ""))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].Key)
	assert.Equal(t, "foo", rows[0].Record.Name())
}

func TestImportLegacyCacheMissingDirectoriesAreSkipped(t *testing.T) {
	store := openTestStore(t)
	cacheDir := t.TempDir() // empty, no index/about/etc subdirectories

	n, err := store.ImportLegacyCache(context.Background(), "linux-64", cacheDir)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
