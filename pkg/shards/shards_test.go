package shards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/repodata"
)

func TestPackRecord(t *testing.T) {
	rec := model.Record{
		"name":   "foo",
		"sha256": "aabbcc",
		"md5":    "ddeeff",
	}
	packed := packRecord(rec)

	assert.IsType(t, []byte{}, packed["sha256"])
	assert.IsType(t, []byte{}, packed["md5"])
	assert.Equal(t, "foo", packed["name"])

	assert.Equal(t, "foo", rec["name"], "packRecord must not mutate its input")
	assert.IsType(t, "", rec["sha256"], "packRecord must not mutate its input")
}

func TestPackRecordIgnoresUndecodableDigests(t *testing.T) {
	rec := model.Record{"sha256": "not-hex!"}
	packed := packRecord(rec)
	assert.Equal(t, "not-hex!", packed["sha256"])
}

func TestEncodeShardRoundtrip(t *testing.T) {
	shard := PerNameShard{
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo", "version": "1.0", "sha256": "aabb", "md5": "ccdd"},
		},
		PkgsC: map[string]model.Record{
			"foo-1.0-0.cnd": {"name": "foo", "version": "1.0"},
		},
	}
	body, err := encodeShard(shard)
	require.NoError(t, err)

	var decoded PerNameShard
	require.NoError(t, msgpack.Unmarshal(body, &decoded))
	assert.Contains(t, decoded.Pkgs, "foo-1.0-0.tbz")
	assert.Contains(t, decoded.PkgsC, "foo-1.0-0.cnd")
}

func TestGroupByName(t *testing.T) {
	doc := repodata.Document{
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo"},
			"bar-1.0-0.tbz": {"name": "bar"},
		},
		PkgsC: map[string]model.Record{
			"foo-1.0-0.cnd": {"name": "foo"},
		},
	}
	groups := groupByName(doc)
	require.Contains(t, groups, "foo")
	require.Contains(t, groups, "bar")

	assert.Contains(t, groups["foo"].Pkgs, "foo-1.0-0.tbz")
	assert.Contains(t, groups["foo"].PkgsC, "foo-1.0-0.cnd")
	assert.Contains(t, groups["bar"].Pkgs, "bar-1.0-0.tbz")
	assert.Empty(t, groups["bar"].PkgsC)
}

func TestStoragePushFetchRoundtrip(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	content := []byte("shard content for foo")
	d, err := storage.Push(context.Background(), content)
	require.NoError(t, err)
	assert.True(t, storage.Exists(d))

	got, err := storage.Fetch(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestStoragePushIsIdempotent(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	content := []byte("shard content for bar")
	d1, err := storage.Push(context.Background(), content)
	require.NoError(t, err)
	d2, err := storage.Push(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestBuild(t *testing.T) {
	doc := repodata.Document{
		Info:            repodata.Info{Subdir: "linux-64"},
		RepodataVersion: 1,
		Removed:         []string{},
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo", "version": "1.0", "sha256": "aabb", "md5": "ccdd"},
		},
		PkgsC: map[string]model.Record{},
	}
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	idx, err := Build(context.Background(), storage, doc)
	require.NoError(t, err)

	assert.Equal(t, "linux-64", idx.Subdir)
	require.Contains(t, idx.Shards, "foo")
	assert.Equal(t, shardMediaType, idx.Shards["foo"].MediaType)
	assert.Positive(t, idx.Shards["foo"].Size)
	assert.True(t, storage.Exists(idx.Shards["foo"].Digest))
}
