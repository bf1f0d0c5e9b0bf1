package repodata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wuxler/chanidx/pkg/model"
)

func TestBuildCurrentNewestPerName(t *testing.T) {
	doc := Document{
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo", "version": "1.0"},
			"foo-2.0-0.tbz": {"name": "foo", "version": "2.0"},
		},
		PkgsC: map[string]model.Record{},
	}
	out := BuildCurrent(doc, nil)
	assert.Contains(t, out.Pkgs, "foo-2.0-0.tbz")
	assert.NotContains(t, out.Pkgs, "foo-1.0-0.tbz")
}

func TestBuildCurrentPinKeepsMatchingVersion(t *testing.T) {
	doc := Document{
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo", "version": "1.0"},
			"foo-1.5-0.tbz": {"name": "foo", "version": "1.5"},
			"foo-2.0-0.tbz": {"name": "foo", "version": "2.0"},
		},
		PkgsC: map[string]model.Record{},
	}
	out := BuildCurrent(doc, map[string][]string{"foo": {"<2.0"}})
	assert.Contains(t, out.Pkgs, "foo-2.0-0.tbz", "the newest version is always kept")
	assert.Contains(t, out.Pkgs, "foo-1.5-0.tbz", "the newest version matching the pin selector is kept")
	assert.NotContains(t, out.Pkgs, "foo-1.0-0.tbz")
}

func TestBuildCurrentDependencyClosure(t *testing.T) {
	doc := Document{
		Pkgs: map[string]model.Record{
			"app-1.0-0.tbz": {"name": "app", "version": "1.0", "depends": []string{"lib ==1.5"}},
			"lib-1.0-0.tbz": {"name": "lib", "version": "1.0"},
			"lib-1.5-0.tbz": {"name": "lib", "version": "1.5"},
			"lib-3.0-0.tbz": {"name": "lib", "version": "3.0"},
		},
		PkgsC: map[string]model.Record{},
	}
	out := BuildCurrent(doc, nil)
	assert.Contains(t, out.Pkgs, "app-1.0-0.tbz")
	assert.Contains(t, out.Pkgs, "lib-3.0-0.tbz", "newest lib is always kept by step 1")
	assert.Contains(t, out.Pkgs, "lib-1.5-0.tbz", "the version actually satisfying app's dependency must be pulled in")
	assert.NotContains(t, out.Pkgs, "lib-1.0-0.tbz", "versions that satisfy no kept dependency are dropped")
}

func TestBuildCurrentFeatureFallback(t *testing.T) {
	doc := Document{
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo", "version": "1.0"},
			"foo-2.0-0.tbz": {"name": "foo", "version": "2.0", "features": "mkl"},
		},
		PkgsC: map[string]model.Record{},
	}
	out := BuildCurrent(doc, nil)
	assert.Contains(t, out.Pkgs, "foo-2.0-0.tbz", "the newest version is kept regardless of features")
	assert.Contains(t, out.Pkgs, "foo-1.0-0.tbz",
		"a feature-tainted newest version requires keeping a clean fallback")
}

func TestBuildCurrentPreservesDialectSplit(t *testing.T) {
	doc := Document{
		Pkgs: map[string]model.Record{
			"foo-1.0-0.tbz": {"name": "foo", "version": "1.0"},
		},
		PkgsC: map[string]model.Record{
			"bar-1.0-0.cnd": {"name": "bar", "version": "1.0"},
		},
	}
	out := BuildCurrent(doc, nil)
	assert.Contains(t, out.Pkgs, "foo-1.0-0.tbz")
	assert.Contains(t, out.PkgsC, "bar-1.0-0.cnd")
}
