package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

var importColumns = []string{
	"id", "source_url", "total_records", "successful_records", "failed_records",
	"import_status", "error_message", "created_at", "updated_at",
}

// CreateImport implements storage.LedgerStore.
func (s *Store) CreateImport(ctx context.Context, run domain.ImportRun) error {
	now := storage.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.d.Quote(ddl.ImportsTable), s.cols(importColumns), placeholders(len(importColumns)))
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		run.ID, run.SourceURL, run.TotalRecords, run.SuccessfulRecords, run.FailedRecords,
		string(run.Status), run.ErrorMessage, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create import %s: %w", run.ID, err)
	}
	return nil
}

// UpdateImport implements storage.LedgerStore.
func (s *Store) UpdateImport(ctx context.Context, id string, u storage.ImportUpdate) error {
	var (
		set  []string
		args []any
	)
	if u.Status != nil {
		set = append(set, "import_status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Successful != nil {
		set = append(set, "successful_records = ?")
		args = append(args, *u.Successful)
	}
	if u.Failed != nil {
		set = append(set, "failed_records = ?")
		args = append(args, *u.Failed)
	}
	if u.ErrorMessage != nil {
		set = append(set, "error_message = ?")
		args = append(args, *u.ErrorMessage)
	}
	set = append(set, "updated_at = ?")
	args = append(args, storage.Now(), id)
	where := "id = ?"
	if u.From != nil {
		where += " AND import_status = ?"
		args = append(args, string(*u.From))
	}

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.d.Quote(ddl.ImportsTable), strings.Join(set, ", "), where)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("update import %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateTotal records the row count of a run once counting finishes.
func (s *Store) UpdateTotal(ctx context.Context, id string, total int64) error {
	q := fmt.Sprintf("UPDATE %s SET total_records = ?, updated_at = ? WHERE id = ?", s.d.Quote(ddl.ImportsTable))
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q), total, storage.Now(), id)
	return err
}

// GetImport implements storage.LedgerStore.
func (s *Store) GetImport(ctx context.Context, id string) (domain.ImportRun, error) {
	var run domain.ImportRun
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", s.cols(importColumns), s.d.Quote(ddl.ImportsTable))
	if err := s.db.GetContext(ctx, &run, s.db.Rebind(q), id); err != nil {
		return domain.ImportRun{}, notFound(err)
	}
	return run, nil
}

// ListImports implements storage.LedgerStore.
func (s *Store) ListImports(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC, id %s",
		s.cols(importColumns), s.d.Quote(ddl.ImportsTable), s.d.Limit(limit))
	var out []domain.ImportRun
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return out, nil
}

// placeholders returns "?, ?, ..." with n marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
