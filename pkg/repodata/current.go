package repodata

import (
	"sort"
	"strings"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/model"
)

// depSpec is one entry of a record's depends[] list, parsed into a package
// name plus zero or more AND-ed versionSelectors.
type depSpec struct {
	name      string
	selectors []versionSelector
}

func parseDepSpec(s string) depSpec {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return depSpec{}
	}
	spec := depSpec{name: fields[0]}
	if len(fields) > 1 {
		for _, clause := range strings.Split(fields[1], ",") {
			if clause == "" {
				continue
			}
			spec.selectors = append(spec.selectors, parseVersionSelector(clause))
		}
	}
	return spec
}

func (d depSpec) satisfies(version string) bool {
	for _, sel := range d.selectors {
		if !sel.matches(version) {
			return false
		}
	}
	return true
}

// allByName groups every (key, record) pair in doc.Pkgs ∪ doc.PkgsC by
// record name, each group sorted newest-version-first.
func allByName(doc Document) map[string][]cachedb.KeyRecord {
	groups := map[string][]cachedb.KeyRecord{}
	add := func(key string, rec model.Record) {
		name := rec.Name()
		groups[name] = append(groups[name], cachedb.KeyRecord{Key: key, Record: rec})
	}
	for k, r := range doc.Pkgs {
		add(k, r)
	}
	for k, r := range doc.PkgsC {
		add(k, r)
	}
	for name := range groups {
		g := groups[name]
		sort.Slice(g, func(i, j int) bool {
			return compareVersions(g[i].Record.Version(), g[j].Record.Version()) > 0
		})
		groups[name] = g
	}
	return groups
}

// BuildCurrent derives the dependency-closed "current" subset document
// from the patched monolithic index, per spec.md §4.7.3.
func BuildCurrent(doc Document, pins map[string][]string) Document {
	groups := allByName(doc)

	kept := map[string]cachedb.KeyRecord{} // key -> record, across both buckets
	keptNames := map[string]bool{}

	keepGroup := func(name string, predicate func(cachedb.KeyRecord) bool) {
		for _, kr := range groups[name] {
			if predicate(kr) {
				kept[kr.Key] = kr
				keptNames[name] = true
			}
		}
	}

	// Step 1: newest per name, plus newest matching each pin selector.
	for name, g := range groups {
		if len(g) == 0 {
			continue
		}
		kept[g[0].Key] = g[0]
		keptNames[name] = true
		for _, pinStr := range pins[name] {
			sel := parseVersionSelector(pinStr)
			for _, kr := range g {
				if sel.matches(kr.Record.Version()) {
					kept[kr.Key] = kr
					break
				}
			}
		}
	}

	// Step 2: dependency-satisfiability closure.
	changed := true
	for changed {
		changed = false
		for _, kr := range snapshot(kept) {
			for _, depStr := range kr.Record.Depends() {
				spec := parseDepSpec(depStr)
				if spec.name == "" {
					continue
				}
				if satisfiedByKept(spec, kept) {
					continue
				}
				// search the full patched index for a match; keep the
				// entire version group for that match.
				for _, cand := range groups[spec.name] {
					if spec.satisfies(cand.Record.Version()) {
						before := len(kept)
						keepGroup(spec.name, func(kr2 cachedb.KeyRecord) bool {
							return kr2.Record.Version() == cand.Record.Version()
						})
						if len(kept) != before {
							changed = true
						}
						break
					}
				}
			}
		}
	}

	// Step 3: clean fallback for feature-tainted packages.
	for name := range keptNames {
		hasFeatures := false
		latestKeptVersion := ""
		for _, kr := range groups[name] {
			if _, isKept := kept[kr.Key]; !isKept {
				continue
			}
			if hasFeatureFields(kr.Record) {
				hasFeatures = true
			}
			if compareVersions(kr.Record.Version(), latestKeptVersion) > 0 {
				latestKeptVersion = kr.Record.Version()
			}
		}
		if !hasFeatures {
			continue
		}
		for _, kr := range groups[name] {
			if hasFeatureFields(kr.Record) {
				continue
			}
			if compareVersions(kr.Record.Version(), latestKeptVersion) > 0 {
				continue
			}
			kept[kr.Key] = kr
			break
		}
	}

	out := Document{
		Pkgs:            map[string]model.Record{},
		PkgsC:           map[string]model.Record{},
		Info:            doc.Info,
		Removed:         doc.Removed,
		RepodataVersion: doc.RepodataVersion,
	}
	for key, kr := range kept {
		if isDialectC(key) {
			out.PkgsC[key] = kr.Record
		} else {
			out.Pkgs[key] = kr.Record
		}
	}
	return out
}

func snapshot(m map[string]cachedb.KeyRecord) []cachedb.KeyRecord {
	out := make([]cachedb.KeyRecord, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func satisfiedByKept(spec depSpec, kept map[string]cachedb.KeyRecord) bool {
	for _, kr := range kept {
		if kr.Record.Name() == spec.name && spec.satisfies(kr.Record.Version()) {
			return true
		}
	}
	return false
}

func hasFeatureFields(rec model.Record) bool {
	if f, ok := rec["features"]; ok && f != "" && f != nil {
		return true
	}
	if f, ok := rec["track_features"]; ok && f != "" && f != nil {
		return true
	}
	return false
}
