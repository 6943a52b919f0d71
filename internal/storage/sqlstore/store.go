package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Store is a dialect-parameterized storage.Repository.
type Store struct {
	db *sqlx.DB
	d  Dialect
}

var _ storage.Repository = (*Store)(nil)

// Open connects with the dialect's driver and verifies the connection.
func Open(ctx context.Context, d Dialect, dsn string, maxConns int) (*Store, error) {
	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.DriverName(), err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.DriverName(), err)
	}
	return &Store{db: db, d: d}, nil
}

// New wraps an existing handle.
func New(db *sqlx.DB, d Dialect) *Store { return &Store{db: db, d: d} }

// DB exposes the underlying handle for tests and ad-hoc queries.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() { _ = s.db.Close() }

// EnsureSchema creates the import tables and indexes when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts, err := s.d.Schema()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w\n%s", err, stmt)
		}
	}
	return nil
}

// cols quotes column names and joins them.
func (s *Store) cols(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = s.d.Quote(n)
	}
	return strings.Join(q, ", ")
}

// chunkRows returns how many rows of width cols fit in one statement.
func (s *Store) chunkRows(width, want int) int {
	n := (s.d.MaxParams() - 1) / width
	return max(1, min(n, want))
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
