package shards

import (
	"encoding/hex"

	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wuxler/chanidx/pkg/model"
)

// PerNameShard is the per-package-name document shape shard storage holds,
// mirroring repodata.Document's two buckets but scoped to one name.
type PerNameShard struct {
	Pkgs  map[string]model.Record `msgpack:"packages"`
	PkgsC map[string]model.Record `msgpack:"packages.conda"`
}

// shardMediaType identifies a per-name shard blob's encoding in its
// Descriptor, the way an OCI manifest layer identifies its codec.
const shardMediaType = "application/vnd.chanidx.shard.v1.msgpack+zstd"

// Index is the manifest document naming every shard by its package name,
// mirroring repodata.Document's info/removed/repodata_version fields plus
// a name -> shard-descriptor map in place of pkgs/pkgs_c. Each descriptor
// names the shard's content-addressed blob the way an OCI manifest names a
// layer: digest, size and media type of the compressed bytes on disk.
type Index struct {
	Subdir          string                         `msgpack:"subdir"`
	BaseURL         string                         `msgpack:"base_url,omitempty"`
	RepodataVersion int                            `msgpack:"repodata_version"`
	Removed         []string                       `msgpack:"removed"`
	Shards          map[string]imgspecv1.Descriptor `msgpack:"shards"`
}

// packRecord returns a copy of rec with its hex sha256/md5 fields replaced
// by raw bytes, shrinking the common case substantially once msgpack-
// encoded. Mirrors the hex-to-bytes packing the teacher's reference
// sharding implementation applies before serializing a record.
func packRecord(rec model.Record) model.Record {
	out := make(model.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	if s, ok := out["sha256"].(string); ok {
		if raw, err := hex.DecodeString(s); err == nil {
			out["sha256"] = raw
		}
	}
	if s, ok := out["md5"].(string); ok {
		if raw, err := hex.DecodeString(s); err == nil {
			out["md5"] = raw
		}
	}
	return out
}

// encodeShard packs a PerNameShard to msgpack bytes, applying packRecord
// to every record in both buckets.
func encodeShard(shard PerNameShard) ([]byte, error) {
	packed := PerNameShard{
		Pkgs:  make(map[string]model.Record, len(shard.Pkgs)),
		PkgsC: make(map[string]model.Record, len(shard.PkgsC)),
	}
	for k, rec := range shard.Pkgs {
		packed.Pkgs[k] = packRecord(rec)
	}
	for k, rec := range shard.PkgsC {
		packed.PkgsC[k] = packRecord(rec)
	}
	return msgpack.Marshal(packed)
}
