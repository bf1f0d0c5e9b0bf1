// Package cachedb implements the metadata cache store (C4): one embedded
// SQL database per channel subdirectory, holding the two-stage FileStat
// bookkeeping plus the per-package metadata tables the extractor writes and
// the emitter reads back.
package cachedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, registers "sqlite"

	"github.com/wuxler/chanidx/pkg/errdefs"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
)

// Store is a handle to one subdirectory's cache database. Handles are not
// shared across worker goroutines; each worker opens its own lazily.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// migrates its schema forward inside a single transaction.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache store %q: %w", path, err)
	}
	// Writers are serialized at the sqlite level; readers proceed
	// concurrently via WAL, matching the "writes are serializable
	// transactions, readers are concurrent" discipline.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL on %q: %w", path, err)
	}
	// Extraction workers each open their own handle against the same file
	// (store.go's doc comment above), so concurrent writers are now a real
	// possibility; busy_timeout makes sqlite retry instead of returning
	// SQLITE_BUSY immediately.
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy_timeout on %q: %w", path, err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_info").Scan(&count); err != nil {
		return fmt.Errorf("reading schema_info: %w", err)
	}
	if count == 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_info(version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("seeding schema_info: %w", err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RefreshObserved replaces every "observed" row whose key begins with scope
// with the supplied entries, atomically with respect to other reads.
func (s *Store) RefreshObserved(ctx context.Context, scope string, entries []model.FileStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning refresh transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM file_stat WHERE stage = ? AND key LIKE ? ESCAPE '\\'",
		model.StageObserved, likePrefix(scope),
	); err != nil {
		return fmt.Errorf("clearing observed rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_stat (stage, key, mtime, size) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing observed insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, model.StageObserved, e.Key, toEpoch(e.Mtime), e.Size); err != nil {
			return fmt.Errorf("inserting observed row for %q: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

// Changed returns the observed rows for scope whose key has no indexed row
// or whose (mtime, size) differ from the indexed row — invariant (I2).
func (s *Store) Changed(ctx context.Context, scope string) iter.Seq[model.FileStat] {
	return func(yield func(model.FileStat, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT o.key, o.mtime, o.size
			FROM file_stat o
			LEFT JOIN file_stat i ON i.stage = ? AND i.key = o.key
			WHERE o.stage = ? AND o.key LIKE ? ESCAPE '\'
			  AND (i.key IS NULL OR i.mtime != o.mtime OR i.size != o.size)
		`, model.StageIndexed, model.StageObserved, likePrefix(scope))
		if err != nil {
			yield(model.FileStat{}, fmt.Errorf("querying changed rows: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var mtime float64
			var size int64
			if err := rows.Scan(&key, &mtime, &size); err != nil {
				yield(model.FileStat{}, fmt.Errorf("scanning changed row: %w", err))
				return
			}
			fs := model.FileStat{Stage: model.StageObserved, Key: key, Mtime: fromEpoch(mtime), Size: size}
			if !yield(fs, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.FileStat{}, fmt.Errorf("iterating changed rows: %w", err))
		}
	}
}

// UpsertPackage is described in upsert.go.
// LoadMerged and the iterator methods are described in query.go.

func toEpoch(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(secs float64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(secs*1e9)).UTC()
}

// likePrefix escapes scope for use as a LIKE prefix match, appending a
// trailing wildcard.
func likePrefix(scope string) string {
	escaped := make([]byte, 0, len(scope)+1)
	for i := 0; i < len(scope); i++ {
		c := scope[i]
		if c == '%' || c == '_' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	return string(escaped) + "%"
}

func marshalBlob(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrSystem, err)
	}
	return b, nil
}

func unmarshalBlob[T any](b []byte) (T, error) {
	var v T
	if len(b) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: %v", errdefs.ErrMalformedJSON, err)
	}
	return v, nil
}
