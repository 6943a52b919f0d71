package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

var discardColumns = []string{
	"id", "original_data", "discard_reason", "error_message",
	"file_name", "row_number", "import_id", "created_at",
}

// discardRow scans original_data as text, which every dialect can return.
type discardRow struct {
	ID            string               `db:"id"`
	OriginalData  string               `db:"original_data"`
	DiscardReason domain.DiscardReason `db:"discard_reason"`
	ErrorMessage  *string              `db:"error_message"`
	FileName      *string              `db:"file_name"`
	RowNumber     *int                 `db:"row_number"`
	ImportID      string               `db:"import_id"`
	CreatedAt     time.Time            `db:"created_at"`
}

func (r discardRow) record() domain.DiscardedRecord {
	return domain.DiscardedRecord{
		ID:            r.ID,
		OriginalData:  json.RawMessage(r.OriginalData),
		DiscardReason: r.DiscardReason,
		ErrorMessage:  r.ErrorMessage,
		FileName:      r.FileName,
		RowNumber:     r.RowNumber,
		ImportID:      r.ImportID,
		CreatedAt:     r.CreatedAt,
	}
}

// InsertDiscards implements storage.DiscardStore.
func (s *Store) InsertDiscards(ctx context.Context, recs []domain.DiscardedRecord) error {
	if len(recs) == 0 {
		return nil
	}
	width := len(discardColumns)
	per := s.chunkRows(width, len(recs))
	row := "(" + placeholders(width) + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.d.Quote(ddl.DiscardsTable), s.cols(discardColumns))

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < len(recs); start += per {
			chunk := recs[start:min(start+per, len(recs))]
			tuples := make([]string, len(chunk))
			args := make([]any, 0, len(chunk)*width)
			for i, r := range chunk {
				tuples[i] = row
				created := r.CreatedAt
				if created.IsZero() {
					created = storage.Now()
				}
				data := string(r.OriginalData)
				if data == "" {
					data = "null"
				}
				args = append(args, r.ID, data, string(r.DiscardReason), r.ErrorMessage,
					r.FileName, r.RowNumber, r.ImportID, created)
			}
			q := prefix + strings.Join(tuples, ", ")
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
				return fmt.Errorf("insert %d discards: %w", len(chunk), err)
			}
		}
		return nil
	})
}

// ClearDiscards implements storage.DiscardStore.
func (s *Store) ClearDiscards(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.d.Quote(ddl.DiscardsTable))
	return err
}

// ListDiscards implements storage.DiscardStore.
func (s *Store) ListDiscards(ctx context.Context, importID string, limit int) ([]domain.DiscardedRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE import_id = ? ORDER BY created_at, file_name, %s %s",
		s.cols(discardColumns), s.d.Quote(ddl.DiscardsTable), s.d.Quote("row_number"), s.d.Limit(limit))
	var rows []discardRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), importID); err != nil {
		return nil, fmt.Errorf("list discards: %w", err)
	}
	out := make([]domain.DiscardedRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// CountDiscards implements storage.DiscardStore.
func (s *Store) CountDiscards(ctx context.Context, importID string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE import_id = ?", s.d.Quote(ddl.DiscardsTable))
	err := s.db.GetContext(ctx, &n, s.db.Rebind(q), importID)
	return n, err
}

// DiscardBreakdown implements storage.DiscardStore.
func (s *Store) DiscardBreakdown(ctx context.Context, importID string, topN int) (storage.DiscardBreakdown, error) {
	var b storage.DiscardBreakdown
	if topN <= 0 {
		topN = 10
	}
	table := s.d.Quote(ddl.DiscardsTable)

	total, err := s.CountDiscards(ctx, importID)
	if err != nil {
		return b, fmt.Errorf("count discards: %w", err)
	}
	b.Total = total

	q := fmt.Sprintf("SELECT discard_reason, COUNT(*) AS n FROM %s WHERE import_id = ? GROUP BY discard_reason ORDER BY n DESC, discard_reason", table)
	if err := s.db.SelectContext(ctx, &b.ByReason, s.db.Rebind(q), importID); err != nil {
		return b, fmt.Errorf("discards by reason: %w", err)
	}

	q = fmt.Sprintf("SELECT COALESCE(file_name, '') AS file_name, COUNT(*) AS n FROM %s WHERE import_id = ? GROUP BY file_name ORDER BY n DESC, file_name", table)
	if err := s.db.SelectContext(ctx, &b.ByFile, s.db.Rebind(q), importID); err != nil {
		return b, fmt.Errorf("discards by file: %w", err)
	}

	q = fmt.Sprintf("SELECT error_message, COUNT(*) AS n FROM %s WHERE import_id = ? AND error_message IS NOT NULL GROUP BY error_message ORDER BY n DESC, error_message %s",
		table, s.d.Limit(topN))
	if err := s.db.SelectContext(ctx, &b.TopErrors, s.db.Rebind(q), importID); err != nil {
		return b, fmt.Errorf("top discard errors: %w", err)
	}
	return b, nil
}
