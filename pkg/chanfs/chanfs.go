// Package chanfs implements the pluggable filesystem adapter (C3): six
// operations over a channel subdirectory, abstracted so the same
// coordinator/extractor code runs against the local disk, a remote object
// store, or an in-memory fixture.
package chanfs

import (
	"context"
	"io"
	"path"
	"time"
)

// Entry is one row yielded by ListDir.
type Entry struct {
	Name  string
	Size  int64
	Mtime time.Time
}

// Info is the result of Stat.
type Info struct {
	Size  int64
	Mtime time.Time
}

// Source is the seekable byte source returned by Open; it satisfies both
// archive.Source and io.Closer.
type Source interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
}

// FS is the filesystem adapter contract of spec.md §4.3. All paths are
// UTF-8 "/"-separated abstract URLs, independent of the host OS separator.
type FS interface {
	// Open returns a seekable byte source for path.
	Open(ctx context.Context, path string) (Source, error)
	// Stat returns size and modification time for path.
	Stat(ctx context.Context, path string) (Info, error)
	// ListDir lists the immediate children of path.
	ListDir(ctx context.Context, path string) ([]Entry, error)
	// Join joins path elements using the abstract "/" separator.
	Join(elems ...string) string
	// Base returns the final element of path.
	Base(p string) string
}

// joinSlash and baseSlash implement Join/Base using the abstract "/"
// separator regardless of host OS, shared by every FS implementation below.
func joinSlash(elems ...string) string {
	return path.Join(elems...)
}

func baseSlash(p string) string {
	return path.Base(p)
}
