// Package repository implements the store contract on MySQL using
// database/sql.  Row locks come from SELECT ... FOR UPDATE; the outbox
// claim uses FOR UPDATE SKIP LOCKED so concurrent workers partition
// the pending set instead of contending.
package repository

import (
	"context"
	"database/sql"

	"github.com/avelora/ticket-office/internal/store"
)

// MySQLStore is the production store.Store implementation.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying handle for auxiliary repositories.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Transact runs fn inside a transaction.  Any error (or panic) from fn
// rolls the whole unit back so partial application never survives.
func (s *MySQLStore) Transact(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// mysqlTx adapts *sql.Tx to store.Tx.
type mysqlTx struct {
	tx *sql.Tx
}

// querier is the overlap of *sql.DB and *sql.Tx used by the shared
// scan helpers below.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
