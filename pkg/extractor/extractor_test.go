package extractor_test

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/chanfs"
	"github.com/wuxler/chanidx/pkg/extractor"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/builtin"
)

func buildPackageArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Size:     int64(len(content)),
			Mode:     0o644,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	gz, err := compression.GetFormat("gzip")
	require.NoError(t, err)
	var buf bytes.Buffer
	w, err := gz.Compress(&buf)
	require.NoError(t, err)
	_, err = w.Write(tarBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractSucceeds(t *testing.T) {
	dir := t.TempDir()
	data := buildPackageArchive(t, map[string]string{
		"info/index":           `{"name":"foo","version":"1.0","build":"0"}`,
		"info/about":           `{"home":"https://example.org"}`,
		"info/recipe/meta.y":   "name: foo",
		"info/run_exports":     `{"weak":["foo >=1.0"]}`,
		"foo/bin/foo":          "binary content",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo-1.0-0.tbz"), data, 0o644))

	fs := chanfs.NewLocal(dir)
	store, err := cachedb.Open(context.Background(), filepath.Join(t.TempDir(), "linux-64.cache.db"))
	require.NoError(t, err)
	defer store.Close()

	entry := model.FileStat{
		Stage: model.StageObserved,
		Key:   "foo-1.0-0.tbz",
		Mtime: time.Unix(1000, 0),
		Size:  int64(len(data)),
	}
	res := extractor.Extract(context.Background(), nil, fs, store, "", entry)
	require.NoError(t, res.Err)
	assert.Equal(t, "foo", res.Record.Name())
	assert.Equal(t, "1.0", res.Record.Version())
	assert.NotEmpty(t, res.Record["sha256"])
	assert.NotEmpty(t, res.Record["md5"])
	assert.Equal(t, int64(len(data)), res.Record["size"])

	merged, err := store.LoadMerged(context.Background(), "foo-1.0-0.tbz")
	require.NoError(t, err)
	assert.True(t, merged.Found)
	assert.Equal(t, "https://example.org", merged.Fields["home"])
	assert.Equal(t, model.RunExports{"weak": []any{"foo >=1.0"}}, merged.RunExports)
}

func TestExtractFiltersPostInstallBuiltFromPaths(t *testing.T) {
	dir := t.TempDir()
	data := buildPackageArchive(t, map[string]string{
		"info/index": `{"name":"foo","version":"1.0"}`,
		"info/paths": `{"paths":[{"_path":"etc/conda/activate.d/foo.sh"}]}`,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo-1.0-0.tbz"), data, 0o644))

	fs := chanfs.NewLocal(dir)
	store, err := cachedb.Open(context.Background(), filepath.Join(t.TempDir(), "linux-64.cache.db"))
	require.NoError(t, err)
	defer store.Close()

	entry := model.FileStat{Key: "foo-1.0-0.tbz", Mtime: time.Unix(1000, 0), Size: int64(len(data))}
	res := extractor.Extract(context.Background(), nil, fs, store, "", entry)
	require.NoError(t, res.Err)
	assert.Equal(t, "foo", res.Record.Name())

	merged, err := store.LoadMerged(context.Background(), "foo-1.0-0.tbz")
	require.NoError(t, err)
	assert.Equal(t, true, merged.Fields["activate.d"], "an activate.d path in info/paths sets the post_install flag")
}

func TestExtractCachesEmptyRecipeOnMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	data := buildPackageArchive(t, map[string]string{
		"info/index":         `{"name":"foo","version":"1.0"}`,
		"info/recipe/meta.y": "name: [unterminated",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo-1.0-0.tbz"), data, 0o644))

	fs := chanfs.NewLocal(dir)
	store, err := cachedb.Open(context.Background(), filepath.Join(t.TempDir(), "linux-64.cache.db"))
	require.NoError(t, err)
	defer store.Close()

	entry := model.FileStat{Key: "foo-1.0-0.tbz", Mtime: time.Unix(1000, 0), Size: int64(len(data))}
	res := extractor.Extract(context.Background(), nil, fs, store, "", entry)
	require.NoError(t, res.Err, "a malformed recipe must not fail extraction")
	assert.Equal(t, "foo", res.Record.Name())

	merged, err := store.LoadMerged(context.Background(), "foo-1.0-0.tbz")
	require.NoError(t, err)
	assert.True(t, merged.Found, "the package's other metadata must still be cached")
}

func TestExtractFailsOnCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken-1.0-0.tbz"), []byte("not an archive"), 0o644))

	fs := chanfs.NewLocal(dir)
	store, err := cachedb.Open(context.Background(), filepath.Join(t.TempDir(), "linux-64.cache.db"))
	require.NoError(t, err)
	defer store.Close()

	entry := model.FileStat{Key: "broken-1.0-0.tbz", Size: 14}
	res := extractor.Extract(context.Background(), nil, fs, store, "", entry)
	assert.Error(t, res.Err)
	assert.Nil(t, res.Record)
}
