// Package digest computes whole-file multi-algorithm digests in a single
// linear pass over a seekable byte source, as required by the extraction
// pipeline (C5) before a package's metadata record is normalized.
package digest

import (
	"crypto/md5"  //nolint:gosec // md5 is a required output field, not used for security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/wuxler/chanidx/pkg/errdefs"
)

// Algorithm names accepted by Compute.
const (
	MD5    = "md5"
	SHA256 = "sha256"
)

// bufSize is the minimum read buffer size required by spec: at least 64 KiB.
const bufSize = 64 * 1024

func newHasher(algo string) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil //nolint:gosec
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, errdefs.Newf(errdefs.ErrUnknownAlgorithm, "digest algorithm %q", algo)
	}
}

// Compute reads source exactly once, feeding every requested algorithm's
// hash state from the same buffered copy, and returns each as a lowercase
// hex string keyed by algorithm name.
func Compute(source io.Reader, algorithms ...string) (map[string]string, error) {
	if len(algorithms) == 0 {
		return map[string]string{}, nil
	}

	hashers := make(map[string]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, algo := range algorithms {
		h, err := newHasher(algo)
		if err != nil {
			return nil, err
		}
		hashers[algo] = h
		writers = append(writers, h)
	}

	mw := io.MultiWriter(writers...)
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(mw, source, buf); err != nil {
		return nil, fmt.Errorf("reading digest source: %w", err)
	}

	out := make(map[string]string, len(algorithms))
	for algo, h := range hashers {
		out[algo] = hex.EncodeToString(h.Sum(nil))
	}
	return out, nil
}

// ComputeFromReaderAt computes the requested digests by fanning out over a
// shared io.ReaderAt, one independent io.SectionReader per algorithm read
// concurrently — the "checksum pool" variant spec.md allows as an
// alternative to a single shared pass, useful when source is backed by an
// *os.File and concurrent reads are safe.
func ComputeFromReaderAt(source io.ReaderAt, size int64, algorithms ...string) (map[string]string, error) {
	if len(algorithms) == 0 {
		return map[string]string{}, nil
	}

	var g errgroup.Group
	sums := make([]string, len(algorithms))
	for i, algo := range algorithms {
		i, algo := i, algo
		g.Go(func() error {
			h, err := newHasher(algo)
			if err != nil {
				return err
			}
			sr := io.NewSectionReader(source, 0, size)
			buf := make([]byte, bufSize)
			if _, err := io.CopyBuffer(h, sr, buf); err != nil {
				return fmt.Errorf("reading digest source: %w", err)
			}
			sums[i] = hex.EncodeToString(h.Sum(nil))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(algorithms))
	for i, algo := range algorithms {
		out[algo] = sums[i]
	}
	return out, nil
}
