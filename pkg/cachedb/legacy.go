package cachedb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/model"
)

// legacyCacheChunkSize bounds how many files are committed per transaction
// while importing a legacy filesystem cache, so a cache with hundreds of
// thousands of entries doesn't hold one giant transaction open.
const legacyCacheChunkSize = 4096

// legacyCacheTables maps a legacy cache kind directory to the table it is
// imported into. "index" is the older name for what this store calls
// index_record.
var legacyCacheTables = map[string]string{
	"index":        "index_record",
	"about":        "about",
	"recipe":       "recipe",
	"run_exports":  "run_exports",
	"post_install": "post_install",
}

// ImportLegacyCache bulk-loads a "<subdir>/.cache" directory produced by an
// older filesystem-per-package cache layout — index/about/recipe/
// run_exports/post_install/icon subfolders of "{basename}.json" (or, for
// icon, arbitrary-extension) files, plus an optional stat.json manifest —
// into s. Rows are keyed as filepath.Join(subdir, basename), matching the
// key convention RefreshObserved and UpsertPackage already use. This is a
// one-shot transition path for a channel previously indexed by an older
// tool; it does not run as part of the regular index pipeline.
func (s *Store) ImportLegacyCache(ctx context.Context, subdir, cacheDir string) (int, error) {
	imported := 0

	for kind, table := range legacyCacheTables {
		n, err := s.importLegacyBlobs(ctx, subdir, filepath.Join(cacheDir, kind), table)
		if err != nil {
			return imported, fmt.Errorf("importing legacy %s cache: %w", kind, err)
		}
		imported += n
	}

	n, err := s.importLegacyIcons(ctx, subdir, filepath.Join(cacheDir, "icon"))
	if err != nil {
		return imported, fmt.Errorf("importing legacy icon cache: %w", err)
	}
	imported += n

	if err := s.importLegacyStat(ctx, subdir, filepath.Join(cacheDir, "stat.json")); err != nil {
		return imported, fmt.Errorf("importing legacy stat.json: %w", err)
	}

	return imported, nil
}

func (s *Store) importLegacyBlobs(ctx context.Context, subdir, dir, table string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing %q: %w", dir, err)
	}

	imported := 0
	for _, batch := range chunkEntries(entries, legacyCacheChunkSize) {
		err := s.withTx(ctx, func(tx execer) error {
			for _, entry := range batch {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
					continue
				}
				data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					return fmt.Errorf("reading %q: %w", entry.Name(), err)
				}
				var raw map[string]any
				if len(data) > 0 {
					if err := json.Unmarshal(data, &raw); err != nil {
						return fmt.Errorf("%w: %s: %v", errdefs.ErrMalformedJSON, entry.Name(), err)
					}
				}
				key := filepath.Join(subdir, strings.TrimSuffix(entry.Name(), ".json"))
				if err := upsertBlobTable(ctx, tx, table, key, raw); err != nil {
					return err
				}
				imported++
			}
			return nil
		})
		if err != nil {
			return imported, err
		}
	}
	return imported, nil
}

func (s *Store) importLegacyIcons(ctx context.Context, subdir, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing %q: %w", dir, err)
	}

	imported := 0
	for _, batch := range chunkEntries(entries, legacyCacheChunkSize) {
		err := s.withTx(ctx, func(tx execer) error {
			for _, entry := range batch {
				if entry.IsDir() {
					continue
				}
				data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					return fmt.Errorf("reading %q: %w", entry.Name(), err)
				}
				basename := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
				key := filepath.Join(subdir, basename)
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO icon (key, bytes) VALUES (?, ?)
					 ON CONFLICT(key) DO UPDATE SET bytes = excluded.bytes`, key, data); err != nil {
					return fmt.Errorf("writing icon for %q: %w", key, err)
				}
				imported++
			}
			return nil
		})
		if err != nil {
			return imported, err
		}
	}
	return imported, nil
}

func (s *Store) importLegacyStat(ctx context.Context, subdir, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}

	var stats map[string]struct {
		Mtime float64 `json:"mtime"`
		Size  int64   `json:"size"`
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return fmt.Errorf("%w: stat.json: %v", errdefs.ErrMalformedJSON, err)
	}

	return s.withTx(ctx, func(tx execer) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM file_stat WHERE stage = ? AND key LIKE ? ESCAPE '\\'",
			model.StageIndexed, likePrefix(subdir),
		); err != nil {
			return fmt.Errorf("clearing prior indexed rows: %w", err)
		}

		for name, v := range stats {
			key := filepath.Join(subdir, name)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO file_stat (stage, key, mtime, size) VALUES (?, ?, ?, ?)
				 ON CONFLICT(stage, key) DO UPDATE SET mtime = excluded.mtime, size = excluded.size`,
				model.StageIndexed, key, v.Mtime, v.Size); err != nil {
				return fmt.Errorf("inserting stat row for %q: %w", key, err)
			}
		}
		return nil
	})
}

// chunkEntries splits entries into consecutive slices of at most size
// elements each.
func chunkEntries(entries []os.DirEntry, size int) [][]os.DirEntry {
	chunks := make([][]os.DirEntry, 0, (len(entries)+size-1)/size)
	for i := 0; i < len(entries); i += size {
		end := min(i+size, len(entries))
		chunks = append(chunks, entries[i:end])
	}
	return chunks
}
