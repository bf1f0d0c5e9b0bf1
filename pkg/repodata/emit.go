package repodata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/smallnest/deepcopy"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
	"github.com/wuxler/chanidx/pkg/util/xio/compression"
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/bz2"  // register .bz2 compressor
	_ "github.com/wuxler/chanidx/pkg/util/xio/compression/zstd" // register .zst compressor
	"github.com/wuxler/chanidx/pkg/util/xos"
)

// EmitOptions configures EmitSubdir's output.
type EmitOptions struct {
	// Subdir is the platform subdirectory name, e.g. "linux-64".
	Subdir string
	// BaseURL, if set, is recorded in the document's info block and bumps
	// RepodataVersion to 2.
	BaseURL string
	// WriteCurrent controls whether current_repodata.json is derived and
	// written alongside repodata.json.
	WriteCurrent bool
	// Pins constrains BuildCurrent's newest-version selection per package
	// name.
	Pins map[string][]string
	// PatchScript, if set, is invoked as `PatchScript subdir` and must
	// print a patch_instructions.json document to stdout. Takes
	// precedence over a static patch_instructions.json file.
	PatchScript string
	// WriteRunExports controls whether run_exports.json is written
	// alongside repodata.json.
	WriteRunExports bool
}

// RunExportsDocument is the run_exports.json document shape: the same
// pkgs/pkgs_c filename split as Document, with each record replaced by
// its run_exports blob.
type RunExportsDocument struct {
	Pkgs  map[string]model.RunExports `json:"packages"`
	PkgsC map[string]model.RunExports `json:"packages.conda"`
}

// EmitSubdir assembles, patches and writes the monolithic and current
// subset documents for one subdirectory, rooted at channelRoot on local
// disk. Writes are atomic (temp file + rename) and skip rewriting a file
// whose serialized bytes are unchanged from what's already on disk. It
// returns the pre-patch and patched documents so a caller that also wants
// sharded output (pkg/shards) doesn't need to rebuild them.
func EmitSubdir(ctx context.Context, channelRoot string, store *cachedb.Store, opts EmitOptions) (fromPackages, patched Document, err error) {
	dir := filepath.Join(channelRoot, opts.Subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Document{}, Document{}, fmt.Errorf("creating subdir output directory: %w", err)
	}

	rows, err := iter.All(store.IterIndexed(ctx, opts.Subdir+"/", ""))
	if err != nil {
		return Document{}, Document{}, fmt.Errorf("loading indexed records: %w", err)
	}

	fromPackages = Build(opts.Subdir, opts.BaseURL, rows)
	if err := writeDocument(dir, "repodata_from_packages.json", fromPackages, true); err != nil {
		return Document{}, Document{}, err
	}

	instr, err := loadInstructions(ctx, channelRoot, opts.Subdir, opts.PatchScript)
	if err != nil {
		return Document{}, Document{}, fmt.Errorf("loading patch instructions: %w", err)
	}
	// Apply mutates the buckets it's given in place; deep-copy first so
	// repodata_from_packages.json keeps reflecting the unpatched index.
	patched = deepcopy.Copy(fromPackages)
	if instr != nil {
		if err := Apply(&patched, *instr); err != nil {
			return Document{}, Document{}, fmt.Errorf("applying patch instructions: %w", err)
		}
	}
	if err := writeDocument(dir, "repodata.json", patched, true); err != nil {
		return Document{}, Document{}, err
	}

	if opts.WriteRunExports {
		if err := writeRunExports(ctx, dir, store, opts.Subdir); err != nil {
			return Document{}, Document{}, fmt.Errorf("writing run_exports.json: %w", err)
		}
	} else if err := os.Remove(filepath.Join(dir, "run_exports.json")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Document{}, Document{}, fmt.Errorf("removing run_exports.json: %w", err)
	}

	if !opts.WriteCurrent {
		return fromPackages, patched, removeVariants(dir, "current_repodata.json")
	}
	current := BuildCurrent(patched, opts.Pins)
	if err := writeDocument(dir, "current_repodata.json", current, false); err != nil {
		return Document{}, Document{}, err
	}
	return fromPackages, patched, nil
}

// writeRunExports assembles and atomically writes run_exports.json from
// every run_exports row in scope, split into pkgs/pkgs_c by filename
// extension the same way Build splits index records.
func writeRunExports(ctx context.Context, dir string, store *cachedb.Store, subdir string) error {
	rows, err := iter.All(store.IterRunExports(ctx, subdir+"/"))
	if err != nil {
		return fmt.Errorf("loading run_exports rows: %w", err)
	}

	doc := RunExportsDocument{Pkgs: map[string]model.RunExports{}, PkgsC: map[string]model.RunExports{}}
	for _, row := range rows {
		filename := filepath.Base(row.Key)
		if isDialectC(row.Key) {
			doc.PkgsC[filename] = row.RunExports
		} else {
			doc.Pkgs[filename] = row.RunExports
		}
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run_exports.json: %w", err)
	}
	body = append(body, '\n')

	target := filepath.Join(dir, "run_exports.json")
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, body) {
		return nil
	}
	return atomicWrite(dir, target, body)
}

// loadInstructions discovers patch instructions per spec.md §4.7.2: a
// configured generator script takes precedence over a static
// patch_instructions.json file in the subdir. Returns nil, nil if neither
// source is present.
func loadInstructions(ctx context.Context, channelRoot, subdir, patchScript string) (*Instructions, error) {
	if patchScript != "" {
		cmd := exec.CommandContext(ctx, patchScript, subdir)
		cmd.Dir = channelRoot
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("running patch script %q: %w", patchScript, err)
		}
		var instr Instructions
		if err := json.Unmarshal(stdout.Bytes(), &instr); err != nil {
			return nil, fmt.Errorf("decoding patch script output: %w", err)
		}
		return &instr, nil
	}

	path := filepath.Join(channelRoot, subdir, "patch_instructions.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var instr Instructions
	if err := json.Unmarshal(raw, &instr); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &instr, nil
}

// writeDocument serializes doc with sorted keys and writes it atomically to
// dir/name, skipping the write (preserving the existing mtime) if the
// content is byte-identical to what's already there. When withVariants is
// true, compressed .bz2 and .zst siblings are written or removed to match.
func writeDocument(dir, name string, doc Document, withVariants bool) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	body = append(body, '\n')

	target := filepath.Join(dir, name)
	if existing, err := os.ReadFile(target); err != nil || !bytes.Equal(existing, body) {
		if err := atomicWrite(dir, target, body); err != nil {
			return err
		}
	}
	return writeCompressedVariants(dir, name, body, withVariants)
}

func writeCompressedVariants(dir, name string, body []byte, enabled bool) error {
	if !enabled {
		return removeVariants(dir, name)
	}
	if err := writeCompressed(dir, name+".bz2", body); err != nil {
		return err
	}
	if err := writeCompressed(dir, name+".zst", body); err != nil {
		return err
	}
	return nil
}

// writeCompressed compresses body with the format matching name's
// extension and writes it atomically to dir/name.
func writeCompressed(dir, name string, body []byte) error {
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
	return atomicWrite(dir, target, compressed)
}

// removeVariants removes name and its compressed siblings if present.
func removeVariants(dir, name string) error {
	for _, suffix := range []string{"", ".bz2", ".zst"} {
		path := filepath.Join(dir, name+suffix)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// atomicWrite writes data to target via a temp file in dir followed by a
// rename, so readers never observe a partially-written document.
func atomicWrite(dir, target string, data []byte) error {
	temper := xos.NewTemper(dir)
	f, err := temper.CreateTemp(filepath.Base(target) + ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", target, err)
	}
	tmpName := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", target, err)
	}
	return nil
}
