package repodata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/model"
)

func TestBuild(t *testing.T) {
	rows := []cachedb.KeyRecord{
		{Key: "foo-1.0-0.tbz", Record: model.Record{"name": "foo", "version": "1.0"}},
		{Key: "bar-2.0-0.cnd", Record: model.Record{"name": "bar", "version": "2.0"}},
	}

	t.Run("repodata_version 1 without a base URL", func(t *testing.T) {
		doc := Build("linux-64", "", rows)
		assert.Equal(t, 1, doc.RepodataVersion)
		assert.Equal(t, "linux-64", doc.Info.Subdir)
		assert.Empty(t, doc.Info.BaseURL)
		assert.Contains(t, doc.Pkgs, "foo-1.0-0.tbz")
		assert.Contains(t, doc.PkgsC, "bar-2.0-0.cnd")
		assert.Empty(t, doc.Removed)
	})

	t.Run("repodata_version 2 with a base URL", func(t *testing.T) {
		doc := Build("linux-64", "https://example.org/channel", rows)
		assert.Equal(t, 2, doc.RepodataVersion)
		assert.Equal(t, "https://example.org/channel", doc.Info.BaseURL)
	})
}

func TestIsDialectC(t *testing.T) {
	assert.True(t, isDialectC("foo-1.0-0.cnd"))
	assert.False(t, isDialectC("foo-1.0-0.tbz"))
	assert.False(t, isDialectC("cnd"))
}

func TestSortedRemoved(t *testing.T) {
	in := []string{"c", "a", "b"}
	out := sortedRemoved(in)
	assert.Equal(t, []string{"a", "b", "c"}, out)
	assert.Equal(t, []string{"c", "a", "b"}, in, "sortedRemoved must not mutate its input")
}
