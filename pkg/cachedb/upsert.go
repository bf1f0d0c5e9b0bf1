package cachedb

import (
	"context"
	"fmt"
	"time"

	"github.com/wuxler/chanidx/pkg/model"
)

// PackageWrite bundles everything a successful extraction produces for one
// package, ready to be written atomically.
type PackageWrite struct {
	Key         string
	Mtime       time.Time
	Size        int64
	SHA256      string
	MD5         string
	Record      model.Record
	About       model.About
	Recipe      model.Recipe
	RunExports  model.RunExports
	PostInstall *model.PostInstall
	Icon        model.Icon
}

// UpsertPackage writes IndexRecord, the non-IndexRecord members present in
// w, and an indexed FileStat row carrying (mtime, size, sha256, md5), all
// inside one transaction — "all-or-nothing" per spec.
func (s *Store) UpsertPackage(ctx context.Context, w PackageWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if w.Record != nil {
		blob, err := marshalBlob(w.Record)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_record (key, blob) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob`, w.Key, blob); err != nil {
			return fmt.Errorf("writing index_record for %q: %w", w.Key, err)
		}
	}
	if w.About != nil {
		if err := upsertBlobTable(ctx, tx, "about", w.Key, w.About); err != nil {
			return err
		}
	}
	if w.Recipe != nil {
		if err := upsertBlobTable(ctx, tx, "recipe", w.Key, w.Recipe); err != nil {
			return err
		}
	}
	if w.RunExports != nil {
		if err := upsertBlobTable(ctx, tx, "run_exports", w.Key, w.RunExports); err != nil {
			return err
		}
	}
	if w.PostInstall != nil {
		if err := upsertBlobTable(ctx, tx, "post_install", w.Key, w.PostInstall); err != nil {
			return err
		}
	}
	if len(w.Icon) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO icon (key, bytes) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET bytes = excluded.bytes`, w.Key, []byte(w.Icon)); err != nil {
			return fmt.Errorf("writing icon for %q: %w", w.Key, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO file_stat (stage, key, mtime, size, sha256, md5) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(stage, key) DO UPDATE SET mtime = excluded.mtime, size = excluded.size,
		   sha256 = excluded.sha256, md5 = excluded.md5`,
		model.StageIndexed, w.Key, toEpoch(w.Mtime), w.Size, w.SHA256, w.MD5); err != nil {
		return fmt.Errorf("writing indexed file_stat for %q: %w", w.Key, err)
	}

	return tx.Commit()
}

func upsertBlobTable(ctx context.Context, tx execer, table, key string, v any) error {
	blob, err := marshalBlob(v)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, blob) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob`, table), key, blob); err != nil {
		return fmt.Errorf("writing %s for %q: %w", table, key, err)
	}
	return nil
}
