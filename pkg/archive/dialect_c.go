package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/util/xfs/tarfs"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/builtin"
)

// innerEntryPrefix is the outer-zip entry name prefix that locates the
// info-bearing inner archive.
const innerEntryPrefix = "info-"

// streamInfoDialectC reads an uncompressed outer zip container, locates the
// info-bearing inner archive by outer-entry name, decodes it (typically
// zstd-compressed tar) and mounts it with tarfs for random access before
// walking every info/ member.
func streamInfoDialectC(source Source) iter.Seq[Member] {
	return func(yield func(Member, error) bool) {
		size, err := source.Seek(0, io.SeekEnd)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: seeking outer container: %v", errdefs.ErrCorruptArchive, err))
			return
		}

		zr, err := zip.NewReader(source, size)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: opening outer zip: %v", errdefs.ErrCorruptArchive, err))
			return
		}

		var inner *zip.File
		for _, f := range zr.File {
			if strings.HasPrefix(baseName(f.Name), innerEntryPrefix) {
				inner = f
				break
			}
		}
		if inner == nil {
			yield(Member{}, fmt.Errorf("%w: no %q entry in outer container", errdefs.ErrMissingMember, innerEntryPrefix))
			return
		}

		rc, err := inner.Open()
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: opening inner entry %q: %v", errdefs.ErrCorruptArchive, inner.Name, err))
			return
		}
		defer rc.Close()

		format, rewound, err := compression.DetectReader(rc)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: detecting inner compression: %v", errdefs.ErrCorruptArchive, err))
			return
		}
		uncompressed, err := format.Uncompress(rewound)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: opening inner stream: %v", errdefs.ErrCorruptArchive, err))
			return
		}
		defer uncompressed.Close()

		// The inner archive is always small (info/ metadata only), so it is
		// fully buffered to give the extractor random access through tarfs
		// rather than a single forward-only pass.
		buf, err := io.ReadAll(uncompressed)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: buffering inner stream: %v", errdefs.ErrCorruptArchive, err))
			return
		}

		innerFS, err := tarfs.New(context.Background(), bytes.NewReader(buf))
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: mounting inner tar: %v", errdefs.ErrCorruptArchive, err))
			return
		}

		if err := walkTarFS(innerFS, yield); err != nil && !errors.Is(err, errStopIteration) {
			yield(Member{}, err)
		}
	}
}

func baseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
