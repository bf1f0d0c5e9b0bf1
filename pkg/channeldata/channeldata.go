// Package channeldata implements the cross-subdirectory channel summary
// (C7.5), its optional syndication feed (C7.6) and the deterministic HTML
// directory listings (C7.7). Unlike pkg/repodata and pkg/shards, which run
// as part of the per-subdir extract→emit pipeline, Build re-reads each
// subdir's already-emitted repodata.json from disk and does not re-scan
// packages, so it can be invoked on its own against a channel that was
// indexed by an earlier run.
package channeldata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xos"
)

// channeldataVersion is the schema version written to channeldata.json.
const channeldataVersion = 2

// maxTimestampSeconds is the year-9999 threshold _make_seconds checks: any
// record timestamp above this is assumed to be milliseconds, not seconds.
const maxTimestampSeconds = 253402300799

// scalarFields are overwritten in a channel Entry only when the incoming
// value is truthy and either the incoming record is newer or the stored
// field is still empty.
var scalarFields = []string{
	"description", "dev_url", "doc_url", "doc_source_url", "home",
	"license", "source_url", "source_git_url", "summary", "icon_url",
	"icon_hash", "tags", "identifiers", "keywords", "recipe_origin",
	"version",
}

// boolFields are OR-combined across every contributing subdir.
var boolFields = []string{
	"binary_prefix", "text_prefix", "activate.d", "deactivate.d",
	"pre_link", "post_link", "pre_unlink",
}

// Entry is one package's channel-wide summary, keyed by field name. It is
// a free-form map (mirroring model.Record) rather than a fixed struct
// because its field set is the union of whatever About/Recipe/PostInstall
// content packages happen to carry.
type Entry map[string]any

// Document is the channeldata.json document shape.
type Document struct {
	ChanneldataVersion int              `json:"channeldata_version"`
	Packages           map[string]Entry `json:"packages"`
	PackagesConda      map[string]Entry `json:"packages.conda"`
	Subdirs            []string         `json:"subdirs"`
}

// NormalizeTimestamp converts a millisecond timestamp to seconds, the way
// _make_seconds does: values beyond the year-9999 second threshold are
// assumed to be milliseconds.
func NormalizeTimestamp(ts int64) int64 {
	if ts > maxTimestampSeconds {
		return ts / 1000
	}
	return ts
}

// SubdirDocument is the minimal slice of a subdir's repodata.json Build
// reads: the two record buckets, keyed by filename.
type SubdirDocument struct {
	Pkgs  map[string]model.Record `json:"pkgs"`
	PkgsC map[string]model.Record `json:"pkgs_c"`
}

// ErrNoRepodata is returned (wrapped) by ReadSubdirDocument when the
// subdir has no emitted repodata.json yet.
var ErrNoRepodata = os.ErrNotExist

// ReadSubdirDocument loads {channelRoot}/{subdir}/repodata.json.
func ReadSubdirDocument(channelRoot, subdir string) (SubdirDocument, error) {
	path := filepath.Join(channelRoot, subdir, "repodata.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return SubdirDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc SubdirDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SubdirDocument{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, nil
}

// candidate pairs a filename with the record chosen to represent it.
type candidate struct {
	filename string
	record   model.Record
}

// selectCandidates unions pkgs and pkgs_c, dropping any pkgs entry whose
// base filename (extension stripped) also appears in pkgs_c.
func selectCandidates(pkgs, pkgsC map[string]model.Record) []candidate {
	hasConda := make(map[string]bool, len(pkgsC))
	for fn := range pkgsC {
		hasConda[baseFilename(fn)] = true
	}
	out := make([]candidate, 0, len(pkgs)+len(pkgsC))
	for fn, rec := range pkgs {
		if hasConda[baseFilename(fn)] {
			continue
		}
		out = append(out, candidate{fn, rec})
	}
	for fn, rec := range pkgsC {
		out = append(out, candidate{fn, rec})
	}
	return out
}

func baseFilename(fn string) string {
	fn = strings.TrimSuffix(fn, ".cnd")
	fn = strings.TrimSuffix(fn, ".tbz")
	return fn
}

// newestPerVersion keeps, for each (name, version) pair, the candidate
// with the greatest timestamp, tie-broken by filename for determinism.
func newestPerVersion(cands []candidate) []candidate {
	type key struct{ name, version string }
	chosen := make(map[key]candidate, len(cands))
	for _, c := range cands {
		k := key{c.record.Name(), c.record.Version()}
		cur, ok := chosen[k]
		if !ok || isNewer(c, cur) {
			chosen[k] = c
		}
	}
	out := make([]candidate, 0, len(chosen))
	for _, c := range chosen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].filename < out[j].filename })
	return out
}

func isNewer(a, b candidate) bool {
	at, bt := a.record.Timestamp(), b.record.Timestamp()
	if at != bt {
		return at > bt
	}
	return a.filename < b.filename
}

// Options configures Build.
type Options struct {
	ChannelRoot string
	Subdirs     []string
	// Stores supplies the cache store for a given subdir, used to look up
	// the C4.LoadMerged view (About/Recipe/PostInstall fields and
	// run_exports) for each chosen candidate.
	Stores func(ctx context.Context, subdir string) (*cachedb.Store, error)
}

// Build re-reads every subdir's repodata.json and assembles the
// channel-wide summary document.
func Build(ctx context.Context, opts Options) (Document, error) {
	packages := map[string]Entry{}
	packagesConda := map[string]Entry{}
	subdirs := make([]string, 0, len(opts.Subdirs))

	for _, subdir := range opts.Subdirs {
		doc, err := ReadSubdirDocument(opts.ChannelRoot, subdir)
		if errors.Is(err, ErrNoRepodata) {
			continue
		}
		if err != nil {
			return Document{}, err
		}
		subdirs = append(subdirs, subdir)

		store, err := opts.Stores(ctx, subdir)
		if err != nil {
			return Document{}, fmt.Errorf("opening store for %s: %w", subdir, err)
		}

		cands := newestPerVersion(selectCandidates(doc.Pkgs, doc.PkgsC))
		for _, c := range cands {
			key := subdir + "/" + c.filename
			merged, err := store.LoadMerged(ctx, key)
			if err != nil {
				return Document{}, fmt.Errorf("loading merged view for %s: %w", key, err)
			}

			isDialectC := strings.HasSuffix(c.filename, ".cnd")
			dst := packages
			if isDialectC {
				dst = packagesConda
			}
			name := c.record.Name()
			entry, ok := dst[name]
			if !ok {
				entry = Entry{"subdirs": []string{}}
			}
			applyEntry(entry, c.record, merged, subdir)
			dst[name] = entry
		}
	}

	sort.Strings(subdirs)
	finalizePackages(packages)
	finalizePackages(packagesConda)

	return Document{
		ChanneldataVersion: channeldataVersion,
		Packages:           packages,
		PackagesConda:      packagesConda,
		Subdirs:            subdirs,
	}, nil
}

// applyEntry folds one chosen record (plus its merged About/Recipe/
// PostInstall/run_exports view) into entry, per spec.md §4.7.5's merge
// policy.
func applyEntry(entry Entry, rec model.Record, merged cachedb.MergedView, subdir string) {
	incomingVersion := rec.Version()
	storedVersion, _ := entry["version"].(string)

	newer := incomingVersion != "" && versionGreater(incomingVersion, storedVersion)

	for _, field := range scalarFields {
		v, ok := merged.Fields[field]
		if !ok {
			v = rec[field]
		}
		if !truthy(v) {
			continue
		}
		stored, hasStored := entry[field]
		if newer || !hasStored || !truthy(stored) {
			entry[field] = v
		}
	}

	for _, field := range boolFields {
		incoming := truthy(merged.Fields[field])
		existing, _ := entry[field].(bool)
		entry[field] = existing || incoming
	}

	subdirSet, _ := entry["subdirs"].([]string)
	entry["subdirs"] = appendUnique(subdirSet, subdir)

	if len(merged.RunExports) > 0 {
		reByVersion, _ := entry["run_exports"].(map[string]model.RunExports)
		if reByVersion == nil {
			reByVersion = map[string]model.RunExports{}
		}
		reByVersion[incomingVersion] = merged.RunExports
		entry["run_exports"] = reByVersion
	}

	ts := NormalizeTimestamp(rec.Timestamp())
	if existing, ok := entry["timestamp"].(int64); !ok || ts > existing {
		entry["timestamp"] = ts
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case []string:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	s = append(s, v)
	sort.Strings(s)
	return s
}

// versionGreater reports whether a is a newer version string than b. It
// splits both on "." and compares the first differing component
// numerically when both sides parse as integers, else as strings; an empty
// b is older than anything. This is a simpler ordering than pkg/repodata's
// compareVersions (which also splits on "-" and "_"), kept local so
// channeldata does not import that package.
func versionGreater(a, b string) bool {
	if b == "" {
		return true
	}
	if a == b {
		return false
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av == bv {
			continue
		}
		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			return an > bn
		}
		return av > bv
	}
	return false
}

// finalizePackages strips the commits field (syndication-only) and every
// null-valued field from each entry.
func finalizePackages(packages map[string]Entry) {
	for _, entry := range packages {
		delete(entry, "commits")
		for k, v := range entry {
			if v == nil {
				delete(entry, k)
			}
		}
	}
}

// Write serializes doc with sorted keys and writes channeldata.json
// atomically to channelRoot, skipping the write if unchanged.
func Write(channelRoot string, doc Document) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding channeldata.json: %w", err)
	}
	body = append(body, '\n')

	target := filepath.Join(channelRoot, "channeldata.json")
	if existing, err := os.ReadFile(target); err == nil && string(existing) == string(body) {
		return nil
	}

	temper := xos.NewTemper(channelRoot)
	f, err := temper.CreateTemp("channeldata.json.tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for channeldata.json: %w", err)
	}
	tmpName := f.Name()
	if _, err := f.Write(body); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmpName)
		return fmt.Errorf("writing channeldata.json: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing channeldata.json: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into channeldata.json: %w", err)
	}
	return nil
}
