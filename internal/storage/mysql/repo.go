// Package mysql implements storage.Repository on MySQL 8 through the shared
// sqlstore.
package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/kzetxa/getmoneyclaude/internal/storage/sqlstore"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN      string // go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/db"
	MaxConns int
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqlstore.Store
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	s, err := sqlstore.Open(ctx, dialect{}, dsn, cfg.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Store: s}, s.Close, nil
}

// normalizeDSN forces the driver options the store relies on: DATETIME
// columns scan into time.Time, and UPDATE reports matched rather than
// changed rows so an unchanged ledger row is not mistaken for a missing one.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	c.ParseTime = true
	c.ClientFoundRows = true
	if !strings.Contains(dsn, "charset=") {
		if c.Params == nil {
			c.Params = map[string]string{}
		}
		c.Params["charset"] = "utf8mb4"
	}
	return c.FormatDSN(), nil
}
