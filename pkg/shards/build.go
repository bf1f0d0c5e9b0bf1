package shards

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/repodata"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	"github.com/wuxler/chanidx/pkg/util/xos"
)

// manifestFromPackages and manifestPatched are the filenames written for
// the pre-patch and patched Index documents.
const (
	manifestFromPackages = "repodata_shards_from_packages.msgpack.zst"
	manifestPatched      = "repodata_shards.msgpack.zst"
)

// groupByName buckets doc's two record maps by package name, the unit a
// single shard document covers.
func groupByName(doc repodata.Document) map[string]PerNameShard {
	groups := map[string]PerNameShard{}
	ensure := func(name string) PerNameShard {
		g, ok := groups[name]
		if !ok {
			g = PerNameShard{Pkgs: map[string]model.Record{}, PkgsC: map[string]model.Record{}}
			groups[name] = g
		}
		return g
	}
	for key, rec := range doc.Pkgs {
		name := rec.Name()
		g := ensure(name)
		g.Pkgs[key] = rec
		groups[name] = g
	}
	for key, rec := range doc.PkgsC {
		name := rec.Name()
		g := ensure(name)
		g.PkgsC[key] = rec
		groups[name] = g
	}
	return groups
}

// Build writes one content-addressed blob per package name in doc and
// returns the manifest naming each by digest.
func Build(ctx context.Context, storage *Storage, doc repodata.Document) (Index, error) {
	groups := groupByName(doc)

	idx := Index{
		Subdir:          doc.Info.Subdir,
		BaseURL:         doc.Info.BaseURL,
		RepodataVersion: doc.RepodataVersion,
		Removed:         doc.Removed,
		Shards:          make(map[string]imgspecv1.Descriptor, len(groups)),
	}
	for name, shard := range groups {
		body, err := encodeShard(shard)
		if err != nil {
			return Index{}, fmt.Errorf("encoding shard %q: %w", name, err)
		}
		d, err := storage.Push(ctx, body)
		if err != nil {
			return Index{}, fmt.Errorf("writing shard %q: %w", name, err)
		}
		idx.Shards[name] = imgspecv1.Descriptor{
			MediaType: shardMediaType,
			Digest:    d,
			Size:      int64(len(body)),
		}
	}
	return idx, nil
}

// WriteIndex serializes idx to msgpack, compresses it with zstd and writes
// it atomically to dir/name, skipping the write if unchanged.
func WriteIndex(dir, name string, idx Index) error {
	body, err := msgpack.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	format, err := compression.DetectFilename(name)
	if err != nil {
		return fmt.Errorf("resolving compressor for %s: %w", name, err)
	}
	var buf bytes.Buffer
	cw, err := format.Compress(&buf)
	if err != nil {
		return fmt.Errorf("opening compressor for %s: %w", name, err)
	}
	if _, err := cw.Write(body); err != nil {
		cw.Close() //nolint:errcheck
		return fmt.Errorf("compressing %s: %w", name, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("closing compressor for %s: %w", name, err)
	}

	target := filepath.Join(dir, name)
	compressed := buf.Bytes()
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, compressed) {
		return nil
	}

	temper := xos.NewTemper(dir)
	f, err := temper.CreateTemp(name + ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := f.Name()
	if _, err := f.Write(compressed); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", name, err)
	}
	return nil
}

// WriteSubdir builds and writes both the pre-patch and patched shard
// manifests for one subdirectory, plus every referenced shard blob.
func WriteSubdir(ctx context.Context, channelRoot, subdir string, fromPackages, patched repodata.Document) error {
	dir := filepath.Join(channelRoot, subdir)
	storage, err := NewStorage(dir)
	if err != nil {
		return err
	}

	unpatchedIdx, err := Build(ctx, storage, fromPackages)
	if err != nil {
		return fmt.Errorf("building pre-patch shards: %w", err)
	}
	if err := WriteIndex(dir, manifestFromPackages, unpatchedIdx); err != nil {
		return err
	}

	patchedIdx, err := Build(ctx, storage, patched)
	if err != nil {
		return fmt.Errorf("building patched shards: %w", err)
	}
	return WriteIndex(dir, manifestPatched, patchedIdx)
}
