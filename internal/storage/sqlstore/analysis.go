package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

var analysisColumns = []string{
	"import_id", "total_records", "records_with_ids", "records_without_ids",
	"percentage_with_ids", "percentage_without_ids", "sample_records", "created_at",
}

type analysisRow struct {
	ImportID             string    `db:"import_id"`
	TotalRecords         int64     `db:"total_records"`
	RecordsWithIDs       int64     `db:"records_with_ids"`
	RecordsWithoutIDs    int64     `db:"records_without_ids"`
	PercentageWithIDs    float64   `db:"percentage_with_ids"`
	PercentageWithoutIDs float64   `db:"percentage_without_ids"`
	SampleRecords        string    `db:"sample_records"`
	CreatedAt            time.Time `db:"created_at"`
}

// SaveAnalysis implements storage.AnalysisStore. An existing analysis for
// the same import is replaced.
func (s *Store) SaveAnalysis(ctx context.Context, a domain.ImportAnalysis) error {
	samples, err := json.Marshal(a.SampleRecords)
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = storage.Now()
	}
	table := s.d.Quote(ddl.AnalysisTable)
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE import_id = ?"), a.ImportID); err != nil {
			return err
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, s.cols(analysisColumns), placeholders(len(analysisColumns)))
		_, err := tx.ExecContext(ctx, tx.Rebind(q),
			a.ImportID, a.TotalRecords, a.RecordsWithIDs, a.RecordsWithoutIDs,
			a.PercentageWithIDs, a.PercentageWithoutIDs, string(samples), a.CreatedAt)
		if err != nil {
			return fmt.Errorf("save analysis %s: %w", a.ImportID, err)
		}
		return nil
	})
}

// ClearAnalysis implements storage.AnalysisStore.
func (s *Store) ClearAnalysis(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.d.Quote(ddl.AnalysisTable))
	return err
}

// GetAnalysis implements storage.AnalysisStore.
func (s *Store) GetAnalysis(ctx context.Context, importID string) (domain.ImportAnalysis, error) {
	var r analysisRow
	q := fmt.Sprintf("SELECT %s FROM %s WHERE import_id = ?", s.cols(analysisColumns), s.d.Quote(ddl.AnalysisTable))
	if err := s.db.GetContext(ctx, &r, s.db.Rebind(q), importID); err != nil {
		return domain.ImportAnalysis{}, notFound(err)
	}
	a := domain.ImportAnalysis{
		ImportID:             r.ImportID,
		TotalRecords:         r.TotalRecords,
		RecordsWithIDs:       r.RecordsWithIDs,
		RecordsWithoutIDs:    r.RecordsWithoutIDs,
		PercentageWithIDs:    r.PercentageWithIDs,
		PercentageWithoutIDs: r.PercentageWithoutIDs,
		CreatedAt:            r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.SampleRecords), &a.SampleRecords); err != nil {
		return a, fmt.Errorf("decode samples: %w", err)
	}
	return a, nil
}
