package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

var (
	upsertColumns = append(append([]string{}, domain.PropertyColumns...), "created_at", "updated_at")
	// updateColumns excludes the key and the original creation time.
	updateColumns = append(append([]string{}, domain.PropertyColumns[1:]...), "updated_at")
	selectColumns = upsertColumns
)

// UpsertBatch implements storage.PropertyStore. Batches larger than the
// dialect's parameter ceiling are split into several statements inside one
// transaction.
func (s *Store) UpsertBatch(ctx context.Context, recs []domain.Property, policy storage.ConflictPolicy) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	now := storage.Now()
	width := len(upsertColumns)
	per := s.chunkRows(width, len(recs))

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < len(recs); start += per {
			end := min(start+per, len(recs))
			chunk := recs[start:end]

			q := s.d.Upsert(ddl.PropertiesTable, "id", upsertColumns, updateColumns, len(chunk), policy)
			args := make([]any, 0, len(chunk)*width)
			for _, p := range chunk {
				args = append(args, p.Values()...)
				args = append(args, now, now)
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
				return fmt.Errorf("upsert %d rows: %w", len(chunk), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

// Truncate implements storage.PropertyStore.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.d.Truncate(ddl.PropertiesTable))
	return err
}

// Count implements storage.PropertyStore.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+s.d.Quote(ddl.PropertiesTable))
	return n, err
}

// Search implements storage.PropertyStore.
func (s *Store) Search(ctx context.Context, f storage.SearchFilter) ([]domain.Property, error) {
	var (
		where []string
		args  []any
	)
	if v := strings.TrimSpace(f.OwnerName); v != "" {
		where = append(where, "LOWER(owner_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(v)+"%")
	}
	if f.MinBalance != nil {
		where = append(where, "current_cash_balance >= ?")
		args = append(args, *f.MinBalance)
	}
	if f.MaxBalance != nil {
		where = append(where, "current_cash_balance <= ?")
		args = append(args, *f.MaxBalance)
	}
	if v := strings.TrimSpace(f.City); v != "" {
		where = append(where, "LOWER(owner_city) LIKE ?")
		args = append(args, "%"+strings.ToLower(v)+"%")
	}
	if v := strings.TrimSpace(f.PropertyType); v != "" {
		where = append(where, "property_type = ?")
		args = append(args, v)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", s.cols(selectColumns), s.d.Quote(ddl.PropertiesTable))
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY current_cash_balance DESC, id ")
	sb.WriteString(s.d.Limit(f.EffectiveLimit()))

	var out []domain.Property
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return out, nil
}
