// Package archive implements the two-dialect package archive reader (C2):
// dialect T, a single compressed tar stream read front-to-back, and
// dialect C, an uncompressed archive-of-archives whose info-bearing inner
// archive is decoded independently.
package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
)

// Dialect identifies which archive framing a filename extension selects.
type Dialect int

const (
	// DialectUnknown is returned when a filename matches neither dialect.
	DialectUnknown Dialect = iota
	// DialectT is the legacy single-stream compressed tar form.
	DialectT
	// DialectC is the newer archive-of-archives container form.
	DialectC
)

// Extensions recognized for each dialect. Detection is by filename
// extension only, as required by spec.
const (
	ExtDialectT = ".tbz"
	ExtDialectC = ".cnd"
)

// DetectDialect returns the archive dialect for filename, or
// DialectUnknown if the extension is not recognized.
func DetectDialect(filename string) Dialect {
	switch {
	case strings.HasSuffix(filename, ExtDialectT):
		return DialectT
	case strings.HasSuffix(filename, ExtDialectC):
		return DialectC
	default:
		return DialectUnknown
	}
}

// Member is one info/-prefixed entry yielded by StreamInfo.
type Member struct {
	Name string
	Body io.Reader
}

// Source is the minimal seekable byte source StreamInfo needs; chanfs.FS's
// Open returns exactly this.
type Source interface {
	io.ReadSeeker
	io.ReaderAt
}

// StreamInfo opens filename's archive framing (selected by dialect) from
// source and returns an iterator over every member whose name is prefixed
// "info/". Stopping the iteration early (returning false from the yield
// callback) releases every resource the implementation opened; the
// sequence never needs to be drained to completion.
func StreamInfo(filename string, source Source) iter.Seq[Member] {
	switch DetectDialect(filename) {
	case DialectT:
		return streamInfoDialectT(source)
	case DialectC:
		return streamInfoDialectC(source)
	default:
		return iter.ErrorSeq[Member](fmt.Errorf("%w: unrecognized archive extension for %q", errdefs.ErrCorruptArchive, filename))
	}
}
