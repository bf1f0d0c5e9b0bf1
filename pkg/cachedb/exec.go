package cachedb

import (
	"context"
	"database/sql"
)

// execer is satisfied by *sql.Tx; narrowed so helpers can be shared between
// the upsert path and any future non-transactional callers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx execer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
