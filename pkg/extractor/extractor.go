// Package extractor implements the per-package extraction function (C5):
// open via chanfs, stream via archive, pick the wanted members, parse the
// recipe, compute the post-install summary and digests, normalize the
// record and persist it via cachedb.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/wuxler/chanidx/pkg/archive"
	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/chanfs"
	"github.com/wuxler/chanidx/pkg/digest"
	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/xlog"
)

// wanted lists the fixed target member set. info/post_install is computed,
// never read; it is intentionally absent here.
var wanted = []string{
	"info/index",
	"info/about",
	"info/paths",
	"info/recipe/meta.y",
	"info/recipe/meta.y.r",
	"info/meta.y",
	"info/run_exports",
	"info/icon",
}

var recipeMembers = map[string]bool{
	"info/recipe/meta.y":   true,
	"info/recipe/meta.y.r": true,
	"info/meta.y":          true,
}

// Result is what a single extraction call returns. Record is nil on
// failure; the coordinator counts the attempt and proceeds without writing
// an indexed row, leaving the package "changed" for a later retry.
type Result struct {
	Key    string
	Mtime  model.FileStat
	Record model.Record
	Err    error
}

// Extract runs the full per-package pipeline for entry and, on success,
// persists the outcome via cache.UpsertPackage.
func Extract(ctx context.Context, logger *xlog.Logger, fs chanfs.FS, cache *cachedb.Store, scope string, entry model.FileStat) Result {
	src, err := fs.Open(ctx, entry.Key)
	if err != nil {
		return fail(entry.Key, fmt.Errorf("%w: %v", errdefs.ErrIO, err))
	}
	defer src.Close()

	bodies := map[string][]byte{}
	var recipeBody []byte
	var recipeSeen bool
	remaining := map[string]bool{}
	for _, name := range wanted {
		remaining[name] = true
	}

	seq := archive.StreamInfo(entry.Key, src)
	var iterErr error
	seq(func(m archive.Member, err error) bool {
		if err != nil {
			iterErr = err
			return false
		}
		if !remaining[m.Name] {
			return true
		}
		body, readErr := io.ReadAll(m.Body)
		if readErr != nil {
			iterErr = fmt.Errorf("%w: reading %q: %v", errdefs.ErrTruncated, m.Name, readErr)
			return false
		}
		delete(remaining, m.Name)

		if m.Name == "info/index" {
			var idx map[string]any
			if err := json.Unmarshal(body, &idx); err != nil {
				iterErr = fmt.Errorf("%w: %v", errdefs.ErrMalformedJSON, err)
				return false
			}
			bodies[m.Name] = body
			if _, hasIcon := idx["icon"]; !hasIcon {
				delete(remaining, "info/icon")
			}
		} else if recipeMembers[m.Name] {
			if !recipeSeen {
				recipeSeen = true
				recipeBody = body
			}
			for rm := range recipeMembers {
				delete(remaining, rm)
			}
		} else {
			bodies[m.Name] = body
		}

		return len(remaining) > 0
	})
	if iterErr != nil {
		if logger != nil {
			logger.Warn("extraction failed", "key", entry.Key, "error", iterErr)
		}
		return fail(entry.Key, iterErr)
	}

	sums, err := digest.ComputeFromReaderAt(src, entry.Size, digest.MD5, digest.SHA256)
	if err != nil {
		return fail(entry.Key, fmt.Errorf("%w: %v", errdefs.ErrIO, err))
	}

	var rawIndex map[string]any
	if raw, ok := bodies["info/index"]; ok {
		_ = json.Unmarshal(raw, &rawIndex) //nolint:errcheck // already validated above
	}
	record := model.NewRecord(rawIndex, sums[digest.MD5], sums[digest.SHA256], entry.Size)

	var about model.About
	if raw, ok := bodies["info/about"]; ok {
		_ = json.Unmarshal(raw, &about)
	}
	var runExports model.RunExports
	if raw, ok := bodies["info/run_exports"]; ok {
		_ = json.Unmarshal(raw, &runExports)
	}
	var icon model.Icon
	if raw, ok := bodies["info/icon"]; ok {
		icon = raw
	}

	var recipe model.Recipe
	if recipeSeen {
		if err := yaml.Unmarshal(recipeBody, &recipe); err != nil {
			// Best-effort: an unparsable recipe is cached as an empty map,
			// never fails the package's extraction.
			if logger != nil {
				logger.Warn("recipe decode failed, caching empty recipe", "key", entry.Key, "error", err)
			}
			recipe = model.Recipe{}
		}
	}

	var paths []any
	if raw, ok := bodies["info/paths"]; ok {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			if p, ok := decoded["paths"].([]any); ok {
				paths = p
			}
		}
	}
	postInstall := computePostInstall(paths)

	write := cachedb.PackageWrite{
		Key:         entry.Key,
		Mtime:       entry.Mtime,
		Size:        entry.Size,
		SHA256:      sums[digest.SHA256],
		MD5:         sums[digest.MD5],
		Record:      record,
		About:       about,
		Recipe:      recipe,
		RunExports:  runExports,
		PostInstall: postInstall,
		Icon:        icon,
	}
	if err := cache.UpsertPackage(ctx, write); err != nil {
		return fail(entry.Key, err)
	}

	return Result{Key: entry.Key, Mtime: entry, Record: record}
}

func fail(key string, err error) Result {
	return Result{Key: key, Err: err}
}
