//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

func TestUpsertRoundTripIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.Truncate(ctx))

	// 100 rows of 27 columns need two MERGE chunks.
	recs := make([]domain.Property, 100)
	for i := range recs {
		recs[i] = domain.Property{
			ID:                 "P" + decimal.NewFromInt(int64(i)).String(),
			NumberOfOwners:     "1",
			OwnerName:          "OWNER",
			CurrentCashBalance: decimal.NewFromInt(int64(i)),
		}
	}
	for range 2 {
		_, err = repo.UpsertBatch(ctx, recs, storage.ConflictUpdate)
		require.NoError(t, err)
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	top, err := repo.Search(ctx, storage.SearchFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "P99", top[0].ID)
}
