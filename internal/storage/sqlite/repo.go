// Package sqlite implements storage.Repository on SQLite through the shared
// sqlstore. It suits local runs and tests: ":memory:" works as a DSN.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	// SQLite driver (pure Go, no cgo).
	_ "modernc.org/sqlite"

	"github.com/kzetxa/getmoneyclaude/internal/storage/sqlstore"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.
	//   "file:import.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string
}

// Repository is the SQLite-backed store.
type Repository struct {
	*sqlstore.Store
}

// NewRepository opens the database and returns a Repository plus a close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	// A single connection keeps ":memory:" databases shared across calls and
	// serializes writers, which SQLite requires anyway.
	s, err := sqlstore.Open(pingCtx, dialect{}, cfg.DSN, 1)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Store: s}, s.Close, nil
}
