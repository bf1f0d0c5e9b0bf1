package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/cmd"
)

func writeLegacyIndexFile(t *testing.T, dir, name string, fields map[string]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestImportCacheCommandEndToEnd(t *testing.T) {
	channelRoot := t.TempDir()
	cacheDir := filepath.Join(channelRoot, "linux-64", ".cache")
	writeLegacyIndexFile(t, filepath.Join(cacheDir, "index"), "foo-1.0-0.tar.bz2.json", map[string]any{
		"name": "foo", "version": "1.0", "build": "0", "subdir": "linux-64",
		"md5": "aaaa", "sha256": "bbbb", "size": 123,
	})

	c := cmd.NewImportCacheCommand()
	c.CacheDir = t.TempDir()

	out := &bytes.Buffer{}
	app := &cli.Command{Name: "import-cache", Commands: []*cli.Command{c.ToCLI()}}
	app.Commands[0].Writer = out
	err := app.Run(context.Background(), []string{"import-cache", "import-cache", channelRoot})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "linux-64: imported 1 record(s)")

	_, statErr := os.Stat(filepath.Join(c.CacheDir, "linux-64.cache.db"))
	assert.NoError(t, statErr)
}

func TestImportCacheCommandNoCacheDirectories(t *testing.T) {
	channelRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(channelRoot, "linux-64"), 0o755))

	c := cmd.NewImportCacheCommand()
	c.CacheDir = t.TempDir()

	out := &bytes.Buffer{}
	app := &cli.Command{Name: "import-cache", Commands: []*cli.Command{c.ToCLI()}}
	app.Commands[0].Writer = out
	err := app.Run(context.Background(), []string{"import-cache", "import-cache", channelRoot})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no legacy cache directories found")
}
