package coordinator_test

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/chanidx/pkg/chanfs"
	"github.com/wuxler/chanidx/pkg/coordinator"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/builtin"
)

func writePackage(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Typeflag: tar.TypeReg, Size: int64(len(content)), Mode: 0o644,
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

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestCoordinatorIndexEndToEnd(t *testing.T) {
	channelRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(channelRoot, "linux-64"), 0o755))
	writePackage(t, filepath.Join(channelRoot, "linux-64", "foo-1.0-0.tbz"), map[string]string{
		"info/index": `{"name":"foo","version":"1.0","build":"0","build_number":0,"subdir":"linux-64","timestamp":1000000}`,
	})

	cfg := coordinator.NewConfig(channelRoot)
	cfg.CacheDir = t.TempDir()
	cfg.Subdirs = []string{"linux-64"}
	cfg.WriteSummary = true
	cfg.WriteRunExports = true

	fs := chanfs.NewLocal(channelRoot)
	c := coordinator.New(cfg, fs, nil)
	defer c.Close() //nolint:errcheck

	results, err := c.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2, "linux-64 plus the always-unioned noarch subdir")

	var linuxResult *coordinator.SubdirResult
	for i := range results {
		if results[i].Subdir == "linux-64" {
			linuxResult = &results[i]
		}
	}
	require.NotNil(t, linuxResult)
	assert.Equal(t, 1, linuxResult.Attempted)
	assert.Equal(t, 0, linuxResult.Failed)

	for _, rel := range []string{
		"linux-64/repodata.json",
		"linux-64/current_repodata.json",
		"linux-64/index.html",
		"channeldata.json",
		"index.html",
	} {
		_, statErr := os.Stat(filepath.Join(channelRoot, rel))
		assert.NoError(t, statErr, "expected %s to exist after Index()", rel)
	}
}

func TestCoordinatorIndexIsIdempotentOnSecondRun(t *testing.T) {
	channelRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(channelRoot, "noarch"), 0o755))
	writePackage(t, filepath.Join(channelRoot, "noarch", "bar-1.0-0.tbz"), map[string]string{
		"info/index": `{"name":"bar","version":"1.0","build":"0","build_number":0,"subdir":"noarch","timestamp":1000000}`,
	})

	cfg := coordinator.NewConfig(channelRoot)
	cfg.CacheDir = t.TempDir()
	cfg.Subdirs = []string{"noarch"}

	fs := chanfs.NewLocal(channelRoot)
	c := coordinator.New(cfg, fs, nil)
	defer c.Close() //nolint:errcheck

	_, err := c.Index(context.Background())
	require.NoError(t, err)

	target := filepath.Join(channelRoot, "noarch", "repodata.json")
	before, err := os.Stat(target)
	require.NoError(t, err)

	c2 := coordinator.New(cfg, fs, nil)
	defer c2.Close() //nolint:errcheck
	_, err = c2.Index(context.Background())
	require.NoError(t, err)

	after, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "a second Index() with no source changes must not rewrite repodata.json")
}
