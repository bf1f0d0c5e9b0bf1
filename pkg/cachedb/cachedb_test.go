package cachedb_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
)

func openTestStore(t *testing.T) *cachedb.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linux-64.cache.db")
	store, err := cachedb.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertAndLoadMergedPrecedence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:    "foo-1.0-0.tbz",
		Mtime:  time.Unix(1000, 0),
		Size:   1234,
		SHA256: "aabb",
		MD5:    "ccdd",
		Record: model.Record{"name": "foo", "version": "1.0"},
		About:  model.About{"home": "https://example.org", "summary": "about summary"},
		Recipe: model.Recipe{"summary": "recipe summary"},
	}))

	merged, err := store.LoadMerged(ctx, "foo-1.0-0.tbz")
	require.NoError(t, err)
	assert.True(t, merged.Found)
	assert.Equal(t, "https://example.org", merged.Fields["home"])
	assert.Equal(t, "about summary", merged.Fields["summary"], "about overrides recipe on key conflict")
	assert.Empty(t, merged.RunExports)
}

func TestLoadMergedIndexRecordOverridesAbout(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:    "foo-1.0-0.tbz",
		Record: model.Record{"name": "foo", "license": "from-index-record"},
		About:  model.About{"license": "from-about"},
	}))

	merged, err := store.LoadMerged(ctx, "foo-1.0-0.tbz")
	require.NoError(t, err)
	assert.Equal(t, "from-index-record", merged.Fields["license"], "index_record must win over about on key conflict")
}

func TestLoadMergedNotFound(t *testing.T) {
	store := openTestStore(t)
	merged, err := store.LoadMerged(context.Background(), "missing-1.0-0.tbz")
	require.NoError(t, err)
	assert.False(t, merged.Found)
}

func TestRefreshObservedAndChanged(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RefreshObserved(ctx, "linux-64/", []model.FileStat{
		{Key: "linux-64/foo-1.0-0.tbz", Mtime: time.Unix(100, 0), Size: 10},
		{Key: "linux-64/bar-1.0-0.tbz", Mtime: time.Unix(200, 0), Size: 20},
	}))

	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:   "linux-64/foo-1.0-0.tbz",
		Mtime: time.Unix(100, 0),
		Size:  10,
	}))

	changed, err := iter.All(store.Changed(ctx, "linux-64/"))
	require.NoError(t, err)
	require.Len(t, changed, 1, "foo matches its indexed row exactly; only bar is new")
	assert.Equal(t, "linux-64/bar-1.0-0.tbz", changed[0].Key)
}

func TestRefreshObservedDropsStaleEntries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RefreshObserved(ctx, "linux-64/", []model.FileStat{
		{Key: "linux-64/foo-1.0-0.tbz", Mtime: time.Unix(100, 0), Size: 10},
	}))
	require.NoError(t, store.RefreshObserved(ctx, "linux-64/", []model.FileStat{
		{Key: "linux-64/bar-1.0-0.tbz", Mtime: time.Unix(200, 0), Size: 20},
	}))

	changed, err := iter.All(store.Changed(ctx, "linux-64/"))
	require.NoError(t, err)
	var keys []string
	for _, c := range changed {
		keys = append(keys, c.Key)
	}
	assert.ElementsMatch(t, []string{"linux-64/bar-1.0-0.tbz"}, keys, "a fresh RefreshObserved call replaces the previous scan entirely")
}

func TestIterIndexedOnlyReturnsIndexedKeys(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:    "linux-64/foo-1.0-0.tbz",
		Record: model.Record{"name": "foo"},
	}))

	all, err := iter.All(store.IterIndexed(ctx, "linux-64/", ""))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "linux-64/foo-1.0-0.tbz", all[0].Key)
	assert.Equal(t, "foo", all[0].Record.Name())
}

func TestIterShardsGroupsByNameAndDialect(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:    "foo-1.0-0.tbz",
		Record: model.Record{"name": "foo", "version": "1.0"},
	}))
	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:    "foo-1.0-0.cnd",
		Record: model.Record{"name": "foo", "version": "1.0"},
	}))
	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:    "bar-1.0-0.tbz",
		Record: model.Record{"name": "bar", "version": "1.0"},
	}))

	shards, err := iter.All(store.IterShards(ctx, ""))
	require.NoError(t, err)

	byName := map[string]cachedb.Shard{}
	for _, s := range shards {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "foo")
	require.Contains(t, byName, "bar")
	assert.Contains(t, byName["foo"].Pkgs, "foo-1.0-0.tbz")
	assert.Contains(t, byName["foo"].PkgsC, "foo-1.0-0.cnd")
	assert.Empty(t, byName["bar"].PkgsC)
}

func TestIterRunExports(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPackage(ctx, cachedb.PackageWrite{
		Key:        "foo-1.0-0.tbz",
		Record:     model.Record{"name": "foo"},
		RunExports: model.RunExports{"weak": []string{"foo >=1.0"}},
	}))

	all, err := iter.All(store.IterRunExports(ctx, ""))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "foo-1.0-0.tbz", all[0].Key)
	assert.Equal(t, model.RunExports{"weak": []any{"foo >=1.0"}}, all[0].RunExports)
}

func TestUpsertPackageIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	write := cachedb.PackageWrite{
		Key:    "foo-1.0-0.tbz",
		Record: model.Record{"name": "foo", "version": "1.0"},
	}
	require.NoError(t, store.UpsertPackage(ctx, write))
	write.Record = model.Record{"name": "foo", "version": "2.0"}
	require.NoError(t, store.UpsertPackage(ctx, write))

	all, err := iter.All(store.IterIndexed(ctx, "", ""))
	require.NoError(t, err)
	require.Len(t, all, 1, "re-upserting the same key updates in place rather than duplicating")
	assert.Equal(t, "2.0", all[0].Record["version"])
}
