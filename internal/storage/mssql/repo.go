// Package mssql implements storage.Repository on Microsoft SQL Server through
// the shared sqlstore. Upserts are MERGE statements chunked under the
// 2100-parameter limit.
package mssql

import (
	"context"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
	"github.com/kzetxa/getmoneyclaude/internal/storage/sqlstore"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN      string
	MaxConns int
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	*sqlstore.Store
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	s, err := sqlstore.Open(ctx, dialect{}, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Store: s}, s.Close, nil
}

// UpsertBatch decorates server errors with their T-SQL error number.
func (r *Repository) UpsertBatch(ctx context.Context, recs []domain.Property, policy storage.ConflictPolicy) (int64, error) {
	n, err := r.Store.UpsertBatch(ctx, recs, policy)
	return n, describe(err)
}

// describe adds the server error number and state to a mssql.Error.
func describe(err error) error {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return fmt.Errorf("mssql error %d (state %d): %w", msErr.Number, msErr.State, err)
	}
	return err
}
