package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// SaveAnalysis implements storage.AnalysisStore, replacing any previous
// analysis of the same import.
func (r *Repository) SaveAnalysis(ctx context.Context, a domain.ImportAnalysis) error {
	samples, err := json.Marshal(a.SampleRecords)
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = storage.Now()
	}
	q := fmt.Sprintf(`INSERT INTO %s (import_id, total_records, records_with_ids, records_without_ids,
  percentage_with_ids, percentage_without_ids, sample_records, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (import_id) DO UPDATE SET
  total_records = EXCLUDED.total_records,
  records_with_ids = EXCLUDED.records_with_ids,
  records_without_ids = EXCLUDED.records_without_ids,
  percentage_with_ids = EXCLUDED.percentage_with_ids,
  percentage_without_ids = EXCLUDED.percentage_without_ids,
  sample_records = EXCLUDED.sample_records,
  created_at = EXCLUDED.created_at`, pgIdent(ddl.AnalysisTable))
	_, err = r.pool.Exec(ctx, q, a.ImportID, a.TotalRecords, a.RecordsWithIDs, a.RecordsWithoutIDs,
		a.PercentageWithIDs, a.PercentageWithoutIDs, samples, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ImportID, describe(err))
	}
	return nil
}

// ClearAnalysis implements storage.AnalysisStore.
func (r *Repository) ClearAnalysis(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+pgIdent(ddl.AnalysisTable))
	return err
}

// GetAnalysis implements storage.AnalysisStore.
func (r *Repository) GetAnalysis(ctx context.Context, importID string) (domain.ImportAnalysis, error) {
	var (
		a       domain.ImportAnalysis
		samples []byte
	)
	q := fmt.Sprintf(`SELECT import_id, total_records, records_with_ids, records_without_ids,
  percentage_with_ids::float8, percentage_without_ids::float8, sample_records::text, created_at
FROM %s WHERE import_id = $1`, pgIdent(ddl.AnalysisTable))
	err := r.pool.QueryRow(ctx, q, importID).Scan(&a.ImportID, &a.TotalRecords, &a.RecordsWithIDs,
		&a.RecordsWithoutIDs, &a.PercentageWithIDs, &a.PercentageWithoutIDs, &samples, &a.CreatedAt)
	if err != nil {
		return domain.ImportAnalysis{}, notFound(err)
	}
	if err := json.Unmarshal(samples, &a.SampleRecords); err != nil {
		return a, fmt.Errorf("decode samples: %w", err)
	}
	return a, nil
}

