// Package shards implements the sharded-index variant of the channel
// emitter (C7.4): one small msgpack+zstd document per package name, each
// named by the sha256 of its compressed bytes, plus a manifest document
// mapping names to digests.
//
// The storage half of this package is adapted from the teacher's
// OCI-style content-addressed reader (pkg/ocispec/cas): push is
// idempotent on an existing digest, fetch verifies the digest of what it
// reads back before returning it.
package shards

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/zstd" // register .zst compressor
	"github.com/wuxler/chanidx/pkg/util/xos"
)

// blobExt is the on-disk suffix for a content-addressed shard blob.
const blobExt = ".msgpack.zst"

// Storage is a content-addressed store of zstd-compressed msgpack blobs,
// rooted at one directory (normally a channel subdirectory).
type Storage struct {
	dir string
}

// NewStorage returns a Storage rooted at dir, creating it if necessary.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating shard storage directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) path(d digest.Digest) string {
	return filepath.Join(s.dir, d.Encoded()+blobExt)
}

// Exists reports whether a blob for digest d is already on disk.
func (s *Storage) Exists(d digest.Digest) bool {
	_, err := os.Stat(s.path(d))
	return err == nil
}

// Push compresses content and writes it under its sha256 digest, skipping
// the write entirely if a blob for that digest already exists (shard
// content is immutable once named, so this is always safe and makes
// repeated runs idempotent).
func (s *Storage) Push(_ context.Context, content []byte) (digest.Digest, error) {
	d := digest.FromBytes(content)
	if s.Exists(d) {
		return d, nil
	}

	format, err := compression.DetectFilename("shard" + blobExt)
	if err != nil {
		return "", fmt.Errorf("resolving shard compressor: %w", err)
	}
	var buf bytes.Buffer
	cw, err := format.Compress(&buf)
	if err != nil {
		return "", fmt.Errorf("opening shard compressor: %w", err)
	}
	if _, err := cw.Write(content); err != nil {
		cw.Close() //nolint:errcheck
		return "", fmt.Errorf("compressing shard: %w", err)
	}
	if err := cw.Close(); err != nil {
		return "", fmt.Errorf("closing shard compressor: %w", err)
	}

	temper := xos.NewTemper(s.dir)
	f, err := temper.CreateTemp(d.Encoded() + ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp shard file: %w", err)
	}
	tmpName := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmpName)
		return "", fmt.Errorf("writing shard: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing shard file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(d)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("renaming shard into place: %w", err)
	}
	return d, nil
}

// Fetch reads back and decompresses the blob named by d, verifying that
// its content still hashes to d.
func (s *Storage) Fetch(_ context.Context, d digest.Digest) ([]byte, error) {
	compressed, err := os.ReadFile(s.path(d))
	if err != nil {
		return nil, fmt.Errorf("reading shard %s: %w", d, err)
	}
	format, err := compression.DetectFilename("shard" + blobExt)
	if err != nil {
		return nil, fmt.Errorf("resolving shard decompressor: %w", err)
	}
	rc, err := format.Uncompress(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("opening shard decompressor: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decompressing shard %s: %w", d, err)
	}
	if got := digest.FromBytes(content); got != d {
		return nil, errdefs.Newf(errdefs.ErrCorruptArchive, "shard %s: digest mismatch, got %s", d, got)
	}
	return content, nil
}
