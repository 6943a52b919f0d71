package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

/*
Package-level test helpers (TB-aware)
*/

func newRepo(tb testing.TB) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:"})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(closeFn)
	if err := r.EnsureSchema(context.Background()); err != nil {
		tb.Fatalf("ensure schema: %v", err)
	}
	return r
}

func prop(id, owner, balance string) domain.Property {
	return domain.Property{
		ID:                 id,
		PropertyType:       "CK",
		NumberOfOwners:     "1",
		OwnerName:          owner,
		OwnerCity:          domain.StringPtr("SACRAMENTO"),
		CurrentCashBalance: decimal.RequireFromString(balance),
		CashReported:       decimal.RequireFromString(balance),
		HolderName:         "ACME BANK",
	}
}

/*
Unit tests
*/

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.EnsureSchema(context.Background()))
}

func TestUpsertBatchIsIdempotent(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	batch := []domain.Property{prop("P1", "JANE DOE", "10.50"), prop("P2", "JOHN ROE", "3")}
	n, err := r.UpsertBatch(ctx, batch, storage.ConflictUpdate)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = r.UpsertBatch(ctx, batch, storage.ConflictUpdate)
	require.NoError(t, err)

	count, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := r.Search(ctx, storage.SearchFilter{OwnerName: "jane"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P1", got[0].ID)
	assert.True(t, got[0].CurrentCashBalance.Equal(decimal.RequireFromString("10.5")), got[0].CurrentCashBalance.String())
	assert.Equal(t, "SACRAMENTO", domain.Deref(got[0].OwnerCity))
	assert.Nil(t, got[0].OwnerStreet1)
}

func TestUpsertBatchConflictPolicies(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.UpsertBatch(ctx, []domain.Property{prop("P1", "OLD NAME", "1")}, storage.ConflictUpdate)
	require.NoError(t, err)

	_, err = r.UpsertBatch(ctx, []domain.Property{prop("P1", "IGNORED NAME", "2")}, storage.ConflictIgnore)
	require.NoError(t, err)
	got, err := r.Search(ctx, storage.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OLD NAME", got[0].OwnerName)

	_, err = r.UpsertBatch(ctx, []domain.Property{prop("P1", "NEW NAME", "3")}, storage.ConflictUpdate)
	require.NoError(t, err)
	got, err = r.Search(ctx, storage.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "NEW NAME", got[0].OwnerName)
}

func TestTruncate(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.UpsertBatch(ctx, []domain.Property{prop("P1", "A", "1")}, storage.ConflictUpdate)
	require.NoError(t, err)
	require.NoError(t, r.Truncate(ctx))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchFilters(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.UpsertBatch(ctx, []domain.Property{
		prop("P1", "JANE DOE", "5"),
		prop("P2", "JANE SMITH", "50"),
		prop("P3", "BOB JONES", "500"),
	}, storage.ConflictUpdate)
	require.NoError(t, err)

	minBal, maxBal := 10.0, 100.0
	got, err := r.Search(ctx, storage.SearchFilter{MinBalance: &minBal, MaxBalance: &maxBal})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P2", got[0].ID)

	got, err = r.Search(ctx, storage.SearchFilter{OwnerName: "Jane", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P2", got[0].ID, "highest balance first")

	got, err = r.Search(ctx, storage.SearchFilter{City: "sacra", PropertyType: "CK"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestLedger(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.CreateImport(ctx, domain.ImportRun{
		ID: "run-1", SourceURL: "https://example.com/a.zip", Status: domain.StatusPending, CreatedAt: base,
	}))
	require.NoError(t, r.CreateImport(ctx, domain.ImportRun{
		ID: "run-2", SourceURL: "https://example.com/b.zip", Status: domain.StatusPending, CreatedAt: base.Add(time.Hour),
	}))

	status := domain.StatusCompletedWithErrors
	ok, failed := int64(7), int64(2)
	msg := "2 records failed"
	require.NoError(t, r.UpdateImport(ctx, "run-1", storage.ImportUpdate{
		Status: &status, Successful: &ok, Failed: &failed, ErrorMessage: &msg,
	}))
	require.NoError(t, r.UpdateTotal(ctx, "run-1", 12))

	run, err := r.GetImport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompletedWithErrors, run.Status)
	assert.Equal(t, int64(12), run.TotalRecords)
	assert.Equal(t, int64(7), run.SuccessfulRecords)
	assert.Equal(t, int64(2), run.FailedRecords)
	assert.Equal(t, msg, domain.Deref(run.ErrorMessage))

	runs, err := r.ListImports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)

	_, err = r.GetImport(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, r.UpdateImport(ctx, "missing", storage.ImportUpdate{}), storage.ErrNotFound)

	// run-1 is completed_with_errors, so a pending-only transition is skipped.
	running, pending := domain.StatusInProgress, domain.StatusPending
	err = r.UpdateImport(ctx, "run-1", storage.ImportUpdate{Status: &running, From: &pending})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	run, err = r.GetImport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompletedWithErrors, run.Status)
}

func TestDiscards(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	row := func(id string, reason domain.DiscardReason, file string, n int, msg string) domain.DiscardedRecord {
		return domain.DiscardedRecord{
			ID:            id,
			OriginalData:  json.RawMessage(`{"OWNER_NAME":"X"}`),
			DiscardReason: reason,
			ErrorMessage:  domain.StringPtr(msg),
			FileName:      domain.StringPtr(file),
			RowNumber:     &n,
			ImportID:      "run-1",
		}
	}
	require.NoError(t, r.InsertDiscards(ctx, []domain.DiscardedRecord{
		row("d1", domain.ReasonDuplicateID, "a.csv", 3, "Duplicate ID"),
		row("d2", domain.ReasonDuplicateID, "a.csv", 9, "Duplicate ID"),
		row("d3", domain.ReasonMissingRequiredFields, "b.csv", 1, "Missing owner name"),
	}))
	require.NoError(t, r.InsertDiscards(ctx, []domain.DiscardedRecord{{
		ID: "other", DiscardReason: domain.ReasonParseError, ImportID: "run-2",
	}}))

	n, err := r.CountDiscards(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	list, err := r.ListDiscards(ctx, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.JSONEq(t, `{"OWNER_NAME":"X"}`, string(list[0].OriginalData))

	b, err := r.DiscardBreakdown(ctx, "run-1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), b.Total)
	require.NotEmpty(t, b.ByReason)
	assert.Equal(t, storage.ReasonCount{Reason: domain.ReasonDuplicateID, Count: 2}, b.ByReason[0])
	assert.Equal(t, storage.FileCount{FileName: "a.csv", Count: 2}, b.ByFile[0])
	assert.Equal(t, storage.MessageCount{Message: "Duplicate ID", Count: 2}, b.TopErrors[0])

	require.NoError(t, r.ClearDiscards(ctx))
	n, err = r.CountDiscards(ctx, "run-2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalysisRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	a := domain.ImportAnalysis{
		ImportID:             "run-1",
		TotalRecords:         4,
		RecordsWithIDs:       3,
		RecordsWithoutIDs:    1,
		PercentageWithIDs:    75,
		PercentageWithoutIDs: 25,
		SampleRecords:        []domain.AnalysisSample{{File: "a.csv", OwnerName: "JANE"}},
	}
	require.NoError(t, r.SaveAnalysis(ctx, a))
	require.NoError(t, r.SaveAnalysis(ctx, a))

	got, err := r.GetAnalysis(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.RecordsWithIDs)
	assert.InDelta(t, 75.0, got.PercentageWithIDs, 0.001)
	assert.Equal(t, a.SampleRecords, got.SampleRecords)

	require.NoError(t, r.ClearAnalysis(ctx))
	_, err = r.GetAnalysis(ctx, "run-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
