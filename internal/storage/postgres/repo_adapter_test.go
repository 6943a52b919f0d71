package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

func TestPostgresFactoryPassesPoolSize(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var (
		gotCfg Config
		closes int
	)
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closes++ }, nil
	}

	dsn := "postgresql://importer:secret@db:5432/unclaimed?sslmode=disable"
	repo, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: dsn, MaxConns: 8})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, Config{DSN: dsn, MaxConns: 8}, gotCfg)

	repo.Close()
	assert.Equal(t, 1, closes)
}

func TestPostgresFactoryPropagatesOpenError(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })
	newRepository = func(context.Context, Config) (*Repository, func(), error) {
		return nil, nil, assert.AnError
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "postgres://[::1"})
	assert.Error(t, err)
}
