package report

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
	"github.com/kzetxa/getmoneyclaude/internal/storage/sqlite"
)

func newRepo(tb testing.TB) *sqlite.Repository {
	tb.Helper()
	r, closeFn, err := sqlite.NewRepository(context.Background(), sqlite.Config{DSN: ":memory:"})
	require.NoError(tb, err)
	tb.Cleanup(closeFn)
	require.NoError(tb, r.EnsureSchema(context.Background()))
	return r
}

func ptr[T any](v T) *T { return &v }

// seed creates two runs; the newer one has three discards.
func seed(t *testing.T, r *sqlite.Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.CreateImport(ctx, domain.ImportRun{
		ID: "old", SourceURL: "u", TotalRecords: 10, SuccessfulRecords: 10,
		Status: domain.StatusCompleted, CreatedAt: base, UpdatedAt: base,
	}))
	require.NoError(t, r.CreateImport(ctx, domain.ImportRun{
		ID: "new", SourceURL: "u", TotalRecords: 8, SuccessfulRecords: 5, FailedRecords: 1,
		Status: domain.StatusCompletedWithErrors, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
	}))

	mk := func(id string, reason domain.DiscardReason, msg, file string, row int) domain.DiscardedRecord {
		return domain.DiscardedRecord{
			ID: id, ImportID: "new", DiscardReason: reason, ErrorMessage: ptr(msg),
			FileName: ptr(file), RowNumber: ptr(row), OriginalData: json.RawMessage(`{"OWNER_NAME":""}`),
			CreatedAt: base.Add(time.Hour),
		}
	}
	require.NoError(t, r.InsertDiscards(ctx, []domain.DiscardedRecord{
		mk("d1", domain.ReasonMissingRequiredFields, "Missing owner name", "a.csv", 2),
		mk("d2", domain.ReasonMissingRequiredFields, "Missing owner name", "b.csv", 4),
		mk("d3", domain.ReasonDuplicateID, "Duplicate ID within batch", "a.csv", 9),
	}))
	require.NoError(t, r.SaveAnalysis(ctx, domain.ImportAnalysis{
		ImportID: "new", TotalRecords: 8, RecordsWithIDs: 6, RecordsWithoutIDs: 2,
		PercentageWithIDs: 75, PercentageWithoutIDs: 25, SampleRecords: []domain.AnalysisSample{}, CreatedAt: base,
	}))
}

func TestBuild_DefaultsToNewestRun(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	seed(t, r)

	rep, err := Build(context.Background(), r, "", Options{})
	require.NoError(t, err)

	s := rep.Summary
	assert.Equal(t, "new", s.Import.ID)
	assert.EqualValues(t, 3, s.Discarded)
	assert.InDelta(t, 62.5, s.SuccessRate, 0.001)
	require.NotNil(t, s.Analysis)
	assert.EqualValues(t, 6, s.Analysis.RecordsWithIDs)

	require.NotEmpty(t, s.Breakdown.ByReason)
	assert.Equal(t, storage.ReasonCount{Reason: domain.ReasonMissingRequiredFields, Count: 2}, s.Breakdown.ByReason[0])
	assert.Equal(t, storage.FileCount{FileName: "a.csv", Count: 2}, s.Breakdown.ByFile[0])

	require.Len(t, rep.Recent, 2)
	assert.Equal(t, "new", rep.Recent[0].ID)
	assert.InDelta(t, 100, rep.Recent[1].SuccessRate, 0.001)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()
	r := newRepo(t)

	_, err := Build(context.Background(), r, "", Options{})
	assert.ErrorIs(t, err, ErrNoImports)

	_, err = Build(context.Background(), r, "missing", Options{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSummarize_WithoutAnalysis(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	seed(t, r)

	s, err := Summarize(context.Background(), r, "old", 5)
	require.NoError(t, err)
	assert.Nil(t, s.Analysis)
	assert.Zero(t, s.Discarded)
}

func TestWriteText(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	seed(t, r)
	rep, err := Build(context.Background(), r, "new", Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()
	for _, want := range []string{
		"Import Summary: new",
		"completed_with_errors",
		"(62.50%)",
		"By Reason:",
		"missing_required_fields:",
		"By File:",
		`"Missing owner name"`,
		"Recent Imports:",
		"Records with IDs:",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()
	assert.Zero(t, SuccessRate(domain.ImportRun{}))
	assert.InDelta(t, 33.33, SuccessRate(domain.ImportRun{TotalRecords: 3, SuccessfulRecords: 1}), 0.001)
}

func TestExportParquet(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	seed(t, r)
	path := filepath.Join(t.TempDir(), "discards.parquet")

	n, err := ExportParquet(context.Background(), r, "new", path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(discardRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 3, pr.GetNumRows())

	rows := make([]discardRow, 3)
	require.NoError(t, pr.Read(&rows))
	reasons := map[string]int{}
	for _, row := range rows {
		assert.Equal(t, "new", row.ImportID)
		reasons[row.Reason]++
	}
	assert.Equal(t, 2, reasons[string(domain.ReasonMissingRequiredFields)])
}

func TestExportParquet_Empty(t *testing.T) {
	t.Parallel()
	r := newRepo(t)
	path := filepath.Join(t.TempDir(), "none.parquet")

	n, err := ExportParquet(context.Background(), r, "nothing", path)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, path)
}
