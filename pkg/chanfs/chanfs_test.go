package chanfs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/chanidx/pkg/chanfs"
)

func setupLocal(t *testing.T) chanfs.FS {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "linux-64"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "linux-64", "foo-1.0-0.tbz"), []byte("archive content"), 0o644))
	return chanfs.NewLocal(dir)
}

func setupAfero(t *testing.T) chanfs.FS {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/channel/linux-64", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/channel/linux-64/foo-1.0-0.tbz", []byte("archive content"), 0o644))
	return chanfs.NewAfero("/channel", mem)
}

func TestFSImplementations(t *testing.T) {
	impls := map[string]chanfs.FS{
		"local": setupLocal(t),
		"afero": setupAfero(t),
	}
	for name, fs := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			src, err := fs.Open(ctx, "linux-64/foo-1.0-0.tbz")
			require.NoError(t, err)
			body, err := io.ReadAll(src)
			require.NoError(t, err)
			assert.Equal(t, "archive content", string(body))
			assert.NoError(t, src.Close())

			info, err := fs.Stat(ctx, "linux-64/foo-1.0-0.tbz")
			require.NoError(t, err)
			assert.EqualValues(t, len("archive content"), info.Size)

			entries, err := fs.ListDir(ctx, "linux-64")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "foo-1.0-0.tbz", entries[0].Name)

			assert.Equal(t, "linux-64/foo-1.0-0.tbz", fs.Join("linux-64", "foo-1.0-0.tbz"))
			assert.Equal(t, "foo-1.0-0.tbz", fs.Base("linux-64/foo-1.0-0.tbz"))
		})
	}
}

func TestFSOpenMissingFileErrors(t *testing.T) {
	ctx := context.Background()
	_, err := setupLocal(t).Open(ctx, "linux-64/missing.tbz")
	assert.Error(t, err)
}

func TestAferoStatIsMemoized(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/channel/linux-64", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/channel/linux-64/foo-1.0-0.tbz", []byte("v1"), 0o644))
	fs := chanfs.NewAfero("/channel", mem)
	ctx := context.Background()

	first, err := fs.Stat(ctx, "linux-64/foo-1.0-0.tbz")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(mem, "/channel/linux-64/foo-1.0-0.tbz", []byte("a longer v2 payload"), 0o644))

	second, err := fs.Stat(ctx, "linux-64/foo-1.0-0.tbz")
	require.NoError(t, err)
	assert.Equal(t, first.Size, second.Size, "cached stat must not reflect a later on-disk change")
}
