package repodata

import (
	"fmt"
	"strings"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/model"
)

// Instructions is the patch_instructions.json shape of spec.md §4.7.2.
type Instructions struct {
	Packages       map[string]map[string]any `json:"packages"`
	PackagesConda  map[string]map[string]any `json:"packages.conda"`
	Revoke         []string                  `json:"revoke"`
	Remove         []string                  `json:"remove"`
	Version        int                       `json:"patch_instructions_version"`
}

// revokedSentinel is the dependency string appended to a revoked record's
// depends list.
const revokedSentinel = "package_has_been_revoked"

// Apply overlays instructions onto doc in place, following the precedence
// and extension-substitution rules of §4.7.2. It rejects any instructions
// document declaring a version newer than this implementation understands.
func Apply(doc *Document, instr Instructions) error {
	if instr.Version > 1 {
		return fmt.Errorf("%w: version %d", errdefs.ErrIncompatiblePatchVersion, instr.Version)
	}

	for key, overrides := range instr.Packages {
		overlay(doc.Pkgs, key, overrides)
		overlay(doc.PkgsC, substituteDialectExt(key), overrides)
	}
	for key, overrides := range instr.PackagesConda {
		overlay(doc.PkgsC, key, overrides)
	}

	for _, key := range instr.Revoke {
		revoke(doc.Pkgs, key)
		revoke(doc.PkgsC, substituteDialectExt(key))
	}

	for _, key := range instr.Remove {
		removeKey(doc.Pkgs, key)
		removeKey(doc.PkgsC, key)
		doc.Removed = append(doc.Removed, key)
	}
	doc.Removed = sortedRemoved(doc.Removed)

	return nil
}

// overlay applies overrides onto the record at key, ignoring missing keys
// ("add_missing=false" — it never creates a new record).
func overlay(bucket map[string]model.Record, key string, overrides map[string]any) {
	rec, ok := bucket[key]
	if !ok {
		return
	}
	for k, v := range overrides {
		rec[k] = v
	}
	bucket[key] = rec
}

func revoke(bucket map[string]model.Record, key string) {
	rec, ok := bucket[key]
	if !ok {
		return
	}
	rec["revoked"] = true
	deps := rec.Depends()
	rec["depends"] = append(append([]string(nil), deps...), revokedSentinel)
	bucket[key] = rec
}

func removeKey(bucket map[string]model.Record, key string) {
	delete(bucket, key)
}

// substituteDialectExt swaps the legacy extension suffix for the newer one,
// used to mirror a "packages" instruction onto the pkgs_c bucket.
func substituteDialectExt(key string) string {
	const legacy = ".tbz"
	const modern = ".cnd"
	if strings.HasSuffix(key, legacy) {
		return strings.TrimSuffix(key, legacy) + modern
	}
	return key
}
