package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

var discardColumns = []string{
	"id", "original_data", "discard_reason", "error_message",
	"file_name", "row_number", "import_id", "created_at",
}

// discardRow reads original_data as text.
type discardRow struct {
	ID            string               `db:"id"`
	OriginalData  string               `db:"original_data"`
	DiscardReason domain.DiscardReason `db:"discard_reason"`
	ErrorMessage  *string              `db:"error_message"`
	FileName      *string              `db:"file_name"`
	RowNumber     *int32               `db:"row_number"`
	ImportID      string               `db:"import_id"`
	CreatedAt     time.Time            `db:"created_at"`
}

// InsertDiscards implements storage.DiscardStore using COPY.
func (r *Repository) InsertDiscards(ctx context.Context, recs []domain.DiscardedRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		created := rec.CreatedAt
		if created.IsZero() {
			created = storage.Now()
		}
		data := []byte(rec.OriginalData)
		if len(data) == 0 {
			data = []byte("null")
		}
		var rowNumber *int32
		if rec.RowNumber != nil {
			n := int32(*rec.RowNumber)
			rowNumber = &n
		}
		rows[i] = []any{rec.ID, data, string(rec.DiscardReason), rec.ErrorMessage,
			rec.FileName, rowNumber, rec.ImportID, created}
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{ddl.DiscardsTable}, discardColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy discards: %w", describe(err))
	}
	return nil
}

// ClearDiscards implements storage.DiscardStore.
func (r *Repository) ClearDiscards(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+pgIdent(ddl.DiscardsTable))
	return err
}

// ListDiscards implements storage.DiscardStore.
func (r *Repository) ListDiscards(ctx context.Context, importID string, limit int) ([]domain.DiscardedRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}
	cols := mapIdent(discardColumns)
	cols[1] = `"original_data"::text AS "original_data"`
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE import_id = $1 ORDER BY created_at, file_name, "row_number" LIMIT $2`,
		strings.Join(cols, ", "), pgIdent(ddl.DiscardsTable))
	rows, err := r.pool.Query(ctx, q, importID, limit)
	if err != nil {
		return nil, fmt.Errorf("list discards: %w", err)
	}
	got, err := pgx.CollectRows(rows, pgx.RowToStructByName[discardRow])
	if err != nil {
		return nil, fmt.Errorf("list discards: %w", err)
	}
	out := make([]domain.DiscardedRecord, len(got))
	for i, d := range got {
		out[i] = domain.DiscardedRecord{
			ID:            d.ID,
			OriginalData:  json.RawMessage(d.OriginalData),
			DiscardReason: d.DiscardReason,
			ErrorMessage:  d.ErrorMessage,
			FileName:      d.FileName,
			ImportID:      d.ImportID,
			CreatedAt:     d.CreatedAt,
		}
		if d.RowNumber != nil {
			n := int(*d.RowNumber)
			out[i].RowNumber = &n
		}
	}
	return out, nil
}

// CountDiscards implements storage.DiscardStore.
func (r *Repository) CountDiscards(ctx context.Context, importID string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE import_id = $1", pgIdent(ddl.DiscardsTable))
	err := r.pool.QueryRow(ctx, q, importID).Scan(&n)
	return n, err
}

// DiscardBreakdown implements storage.DiscardStore.
func (r *Repository) DiscardBreakdown(ctx context.Context, importID string, topN int) (storage.DiscardBreakdown, error) {
	var (
		b     storage.DiscardBreakdown
		err   error
		table = pgIdent(ddl.DiscardsTable)
	)
	if topN <= 0 {
		topN = 10
	}
	if b.Total, err = r.CountDiscards(ctx, importID); err != nil {
		return b, fmt.Errorf("count discards: %w", err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		"SELECT discard_reason, COUNT(*) AS n FROM %s WHERE import_id = $1 GROUP BY discard_reason ORDER BY n DESC, discard_reason", table), importID)
	if err != nil {
		return b, fmt.Errorf("discards by reason: %w", err)
	}
	if b.ByReason, err = pgx.CollectRows(rows, pgx.RowToStructByName[storage.ReasonCount]); err != nil {
		return b, fmt.Errorf("discards by reason: %w", err)
	}

	rows, err = r.pool.Query(ctx, fmt.Sprintf(
		"SELECT COALESCE(file_name, '') AS file_name, COUNT(*) AS n FROM %s WHERE import_id = $1 GROUP BY 1 ORDER BY n DESC, 1", table), importID)
	if err != nil {
		return b, fmt.Errorf("discards by file: %w", err)
	}
	if b.ByFile, err = pgx.CollectRows(rows, pgx.RowToStructByName[storage.FileCount]); err != nil {
		return b, fmt.Errorf("discards by file: %w", err)
	}

	rows, err = r.pool.Query(ctx, fmt.Sprintf(
		"SELECT error_message, COUNT(*) AS n FROM %s WHERE import_id = $1 AND error_message IS NOT NULL GROUP BY error_message ORDER BY n DESC, error_message LIMIT $2", table), importID, topN)
	if err != nil {
		return b, fmt.Errorf("top discard errors: %w", err)
	}
	if b.TopErrors, err = pgx.CollectRows(rows, pgx.RowToStructByName[storage.MessageCount]); err != nil {
		return b, fmt.Errorf("top discard errors: %w", err)
	}
	return b, nil
}
