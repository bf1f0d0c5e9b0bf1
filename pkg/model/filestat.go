package model

import "time"

// Stage distinguishes the two-phase FileStat discipline: a row observed by
// listing the filesystem versus a row recorded after a package was
// successfully indexed.
type Stage string

const (
	// StageObserved marks a row produced by a filesystem listdir pass.
	StageObserved Stage = "observed"
	// StageIndexed marks a row produced after extraction succeeded.
	StageIndexed Stage = "indexed"
)

// FileStat is the two-stage bookkeeping row keyed by (scope, filename) that
// the coordinator diffs to decide which packages need (re-)extraction.
type FileStat struct {
	Stage        Stage
	Key          string
	Mtime        time.Time
	Size         int64
	SHA256       string
	MD5          string
	LastModified time.Time
	ETag         string
}
