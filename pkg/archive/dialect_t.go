package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/builtin" // register bz2/gzip/xz/zstd/tar formats
)

// streamInfoDialectT reads a single compressed tar stream front-to-back,
// auto-detecting the outer compression (legacy archives are bzip2, but any
// registered format is accepted) rather than assuming a fixed codec.
func streamInfoDialectT(source Source) iter.Seq[Member] {
	return func(yield func(Member, error) bool) {
		format, rewound, err := compression.DetectReader(source)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: detecting outer compression: %v", errdefs.ErrCorruptArchive, err))
			return
		}

		uncompressed, err := format.Uncompress(rewound)
		if err != nil {
			yield(Member{}, fmt.Errorf("%w: opening outer stream: %v", errdefs.ErrCorruptArchive, err))
			return
		}
		defer uncompressed.Close()

		tr := tar.NewReader(uncompressed)
		for {
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Member{}, fmt.Errorf("%w: reading tar header: %v", errdefs.ErrCorruptArchive, err))
				return
			}
			if hdr.Typeflag != tar.TypeReg || !strings.HasPrefix(hdr.Name, "info/") {
				continue
			}
			if !yield(Member{Name: hdr.Name, Body: tr}, nil) {
				return
			}
		}
	}
}
