// Package repodata assembles the per-subdirectory monolithic index
// document (C7.1), applies the patch-instructions overlay (C7.2), and
// derives the dependency-closed "current" subset (C7.3).
package repodata

import (
	"path/filepath"
	"sort"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/model"
)

// Document is the repodata.json shape of spec.md §4.7.1.
type Document struct {
	Pkgs            map[string]model.Record `json:"pkgs"`
	PkgsC           map[string]model.Record `json:"pkgs_c"`
	Info            Info                    `json:"info"`
	Removed         []string                `json:"removed"`
	RepodataVersion int                     `json:"repodata_version"`
}

// Info is the document's "info" block.
type Info struct {
	Subdir  string `json:"subdir"`
	BaseURL string `json:"base_url,omitempty"`
}

// Build assembles the monolithic document from the cache's IterIndexed
// rows, bucketed by archive dialect extension.
func Build(subdir, baseURL string, rows []cachedb.KeyRecord) Document {
	doc := Document{
		Pkgs:    map[string]model.Record{},
		PkgsC:   map[string]model.Record{},
		Info:    Info{Subdir: subdir, BaseURL: baseURL},
		Removed: []string{},
	}
	if baseURL != "" {
		doc.RepodataVersion = 2
	} else {
		doc.RepodataVersion = 1
	}
	for _, r := range rows {
		// Cache keys carry the subdir-relative path (e.g. "linux-64/foo.tbz");
		// repodata.json buckets are keyed by bare filename, matching
		// writeRunExports' filepath.Base(row.Key) in emit.go.
		name := filepath.Base(r.Key)
		if isDialectC(name) {
			doc.PkgsC[name] = r.Record
		} else {
			doc.Pkgs[name] = r.Record
		}
	}
	return doc
}

func isDialectC(key string) bool {
	return len(key) >= 4 && key[len(key)-4:] == ".cnd"
}

// sortedRemoved returns removed with a stable sort applied, as invariant
// (I4) requires.
func sortedRemoved(removed []string) []string {
	out := append([]string(nil), removed...)
	sort.Strings(out)
	return out
}
