// Package model defines the shared data types passed between the archive
// reader, the metadata cache store and the channel emitter.
package model

import "slices"

// filteredFields lists the info/index fields that must never survive
// normalization into an IndexRecord.
var filteredFields = []string{
	"arch",
	"has_prefix",
	"mtime",
	"platform",
	"ucs",
	"requires_features",
	"binstar",
	"target-triplet",
	"machine",
	"operatingsystem",
}

// Record is the canonical per-package metadata map. It is constructed only
// through NewRecord so the filtered field set can never leak into an
// emitted document.
type Record map[string]any

// NewRecord builds a Record from raw decoded info/index.json fields,
// dropping every entry in the filtered field set and merging the digest
// triple computed from the archive bytes.
func NewRecord(raw map[string]any, md5, sha256 string, size int64) Record {
	rec := make(Record, len(raw))
	for k, v := range raw {
		if slices.Contains(filteredFields, k) {
			continue
		}
		rec[k] = v
	}
	rec["md5"] = md5
	rec["sha256"] = sha256
	rec["size"] = size
	return rec
}

// Name returns the package name field, or "" if absent or not a string.
func (r Record) Name() string {
	return r.stringField("name")
}

// Version returns the package version field, or "" if absent.
func (r Record) Version() string {
	return r.stringField("version")
}

// Build returns the build string field, or "" if absent.
func (r Record) Build() string {
	return r.stringField("build")
}

// Subdir returns the subdir field, or "" if absent.
func (r Record) Subdir() string {
	return r.stringField("subdir")
}

// Timestamp returns the record's timestamp field as an int64, or 0 if
// absent or not numeric. It accepts the float64 that JSON decoding
// produces as well as int64 and int values, and returns the number in the
// unit it is stored in (no milliseconds-to-seconds conversion).
func (r Record) Timestamp() int64 {
	switch v := r["timestamp"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Depends returns the depends list, or nil if absent or malformed.
func (r Record) Depends() []string {
	return r.stringSliceField("depends")
}

// Constrains returns the constrains list, or nil if absent.
func (r Record) Constrains() []string {
	return r.stringSliceField("constrains")
}

func (r Record) stringField(key string) string {
	v, ok := r[key].(string)
	if !ok {
		return ""
	}
	return v
}

func (r Record) stringSliceField(key string) []string {
	raw, ok := r[key].([]any)
	if !ok {
		if s, ok := r[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// About carries the free-form info/about.json contents.
type About map[string]any

// Recipe carries the free-form info/recipe/meta.yaml contents, decoded
// strictly into maps/slices/scalars (never into a concrete struct with a
// custom unmarshaler), so no YAML tag can trigger arbitrary construction.
type Recipe map[string]any

// RunExports carries the free-form info/run_exports.json contents.
type RunExports map[string]any

// PostInstall records which of the fixed post-link/pre-unlink script slots
// a package carries plus its prefix-replacement mode, derived from the
// member set rather than parsed from any single file.
type PostInstall struct {
	BinaryPrefix bool `json:"binary_prefix"`
	TextPrefix   bool `json:"text_prefix"`
	ActivateD    bool `json:"activate.d"`
	DeactivateD  bool `json:"deactivate.d"`
	PreLink      bool `json:"pre_link"`
	PostLink     bool `json:"post_link"`
	PreUnlink    bool `json:"pre_unlink"`
}

// Icon is the raw bytes of info/icon.png, when present.
type Icon []byte
