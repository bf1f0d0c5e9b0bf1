package cachedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xgeneric/iter"
)

// MergedView is the cross-subdirectory summary view load_merged assembles:
// Recipe and About fields first, PostInstall and IndexRecord overriding on
// conflict (IndexRecord wins), plus the attached run_exports blob and the
// mtime of the key's indexed file_stat row.
type MergedView struct {
	Fields     map[string]any
	RunExports model.RunExports
	Mtime      time.Time
	Found      bool
}

// LoadMerged returns the per-package view used for the cross-subdirectory
// summary (§4.7): Recipe < About < PostInstall < IndexRecord precedence,
// with run_exports attached (empty map if absent) and Mtime taken from the
// indexed file_stat row (zero when there is no such row; no filesystem stat
// is made). If no trace of key exists in any table, Found is false and
// Fields is empty.
func (s *Store) LoadMerged(ctx context.Context, key string) (MergedView, error) {
	fields := map[string]any{}
	found := false

	for _, table := range []string{"recipe", "about", "post_install", "index_record"} {
		blob, ok, err := loadBlobBytes(ctx, s.db, table, key)
		if err != nil {
			return MergedView{}, err
		}
		if !ok {
			continue
		}
		m, err := unmarshalBlob[map[string]any](blob)
		if err != nil {
			return MergedView{}, fmt.Errorf("decoding %s for %q: %w", table, key, err)
		}
		merge(fields, m)
		found = true
	}

	runExports := model.RunExports{}
	if blob, ok, err := loadBlobBytes(ctx, s.db, "run_exports", key); err != nil {
		return MergedView{}, err
	} else if ok {
		m, err := unmarshalBlob[model.RunExports](blob)
		if err != nil {
			return MergedView{}, fmt.Errorf("decoding run_exports for %q: %w", key, err)
		}
		runExports = m
	}

	var mtime time.Time
	var secs float64
	err := s.db.QueryRowContext(ctx, "SELECT mtime FROM file_stat WHERE stage = ? AND key = ?",
		model.StageIndexed, key).Scan(&secs)
	switch {
	case err == nil:
		mtime = fromEpoch(secs)
	case !errors.Is(err, sql.ErrNoRows):
		return MergedView{}, fmt.Errorf("reading indexed mtime for %q: %w", key, err)
	}

	return MergedView{Fields: fields, RunExports: runExports, Mtime: mtime, Found: found}, nil
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func loadBlobBytes(ctx context.Context, db *sql.DB, table, key string) ([]byte, bool, error) {
	var blob []byte
	row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT blob FROM %s WHERE key = ?", table), key)
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s for %q: %w", table, key, err)
	}
	return blob, true, nil
}

// IterIndexed streams (key, record) pairs whose key is in scope and has a
// surviving "indexed" FileStat row.
func (s *Store) IterIndexed(ctx context.Context, scope, orderBy string) iter.Seq[KeyRecord] {
	if orderBy == "" {
		orderBy = "r.key"
	}
	return func(yield func(KeyRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT r.key, r.blob
			FROM index_record r
			JOIN file_stat i ON i.stage = ? AND i.key = r.key
			WHERE r.key LIKE ? ESCAPE '\'
			ORDER BY %s
		`, sanitizeOrderBy(orderBy)), model.StageIndexed, likePrefix(scope))
		if err != nil {
			yield(KeyRecord{}, fmt.Errorf("querying indexed records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var blob []byte
			if err := rows.Scan(&key, &blob); err != nil {
				yield(KeyRecord{}, fmt.Errorf("scanning indexed record: %w", err))
				return
			}
			rec, err := unmarshalBlob[model.Record](blob)
			if err != nil {
				yield(KeyRecord{}, fmt.Errorf("decoding record for %q: %w", key, err))
				return
			}
			if !yield(KeyRecord{Key: key, Record: rec}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(KeyRecord{}, fmt.Errorf("iterating indexed records: %w", err))
		}
	}
}

// KeyRecord pairs a cache key with its decoded IndexRecord.
type KeyRecord struct {
	Key    string
	Record model.Record
}

// Shard is the grouped-by-name document shape iter_shards emits:
// {"pkgs": {key: record, ...}, "pkgs_c": {key: record, ...}}, split by
// archive dialect extension.
type Shard struct {
	Name string
	Pkgs map[string]model.Record
	PkgsC map[string]model.Record
}

// IterShards groups IterIndexed by record.name (stable order name, key)
// into per-name shard documents.
func (s *Store) IterShards(ctx context.Context, scope string) iter.Seq[Shard] {
	return func(yield func(Shard, error) bool) {
		all, err := iter.All(s.IterIndexed(ctx, scope, "r.key"))
		if err != nil {
			yield(Shard{}, err)
			return
		}
		sort.Slice(all, func(i, j int) bool {
			ni, nj := all[i].Record.Name(), all[j].Record.Name()
			if ni != nj {
				return ni < nj
			}
			return all[i].Key < all[j].Key
		})

		var cur Shard
		flush := func() bool {
			if cur.Name == "" {
				return true
			}
			return yield(cur, nil)
		}
		for _, kr := range all {
			name := kr.Record.Name()
			if name != cur.Name {
				if !flush() {
					return
				}
				cur = Shard{Name: name, Pkgs: map[string]model.Record{}, PkgsC: map[string]model.Record{}}
			}
			if isDialectCKey(kr.Key) {
				cur.PkgsC[kr.Key] = kr.Record
			} else {
				cur.Pkgs[kr.Key] = kr.Record
			}
		}
		flush()
	}
}

func isDialectCKey(key string) bool {
	return len(key) >= 4 && key[len(key)-4:] == ".cnd"
}

// IterRunExports streams (key, blob) pairs for every run_exports row whose
// key is in scope.
func (s *Store) IterRunExports(ctx context.Context, scope string) iter.Seq[KeyRunExports] {
	return func(yield func(KeyRunExports, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT key, blob FROM run_exports WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(scope))
		if err != nil {
			yield(KeyRunExports{}, fmt.Errorf("querying run_exports: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var blob []byte
			if err := rows.Scan(&key, &blob); err != nil {
				yield(KeyRunExports{}, fmt.Errorf("scanning run_exports: %w", err))
				return
			}
			re, err := unmarshalBlob[model.RunExports](blob)
			if err != nil {
				yield(KeyRunExports{}, fmt.Errorf("decoding run_exports for %q: %w", key, err))
				return
			}
			if !yield(KeyRunExports{Key: key, RunExports: re}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(KeyRunExports{}, fmt.Errorf("iterating run_exports: %w", err))
		}
	}
}

// KeyRunExports pairs a cache key with its decoded RunExports blob.
type KeyRunExports struct {
	Key        string
	RunExports model.RunExports
}

// sanitizeOrderBy only allows a fixed allow-list of column references,
// since orderBy is not otherwise parameterizable in a SQL query.
func sanitizeOrderBy(orderBy string) string {
	switch orderBy {
	case "r.key", "key":
		return "r.key"
	default:
		return "r.key"
	}
}
