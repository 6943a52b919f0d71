package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

var importColumns = []string{
	"id", "source_url", "total_records", "successful_records", "failed_records",
	"import_status", "error_message", "created_at", "updated_at",
}

// CreateImport implements storage.LedgerStore.
func (r *Repository) CreateImport(ctx context.Context, run domain.ImportRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = storage.Now()
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		pgIdent(ddl.ImportsTable), strings.Join(mapIdent(importColumns), ", "))
	_, err := r.pool.Exec(ctx, q,
		run.ID, run.SourceURL, run.TotalRecords, run.SuccessfulRecords, run.FailedRecords,
		string(run.Status), run.ErrorMessage, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create import %s: %w", run.ID, describe(err))
	}
	return nil
}

// updateSQL renders an UPDATE for the non-nil fields of u; updated_at is
// always refreshed and the id is the last argument.
func updateSQL(id string, u storage.ImportUpdate) (string, []any) {
	var (
		set  []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Status != nil {
		add("import_status", string(*u.Status))
	}
	if u.Successful != nil {
		add("successful_records", *u.Successful)
	}
	if u.Failed != nil {
		add("failed_records", *u.Failed)
	}
	if u.ErrorMessage != nil {
		add("error_message", *u.ErrorMessage)
	}
	add("updated_at", storage.Now())
	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if u.From != nil {
		args = append(args, string(*u.From))
		where += fmt.Sprintf(" AND import_status = $%d", len(args))
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", pgIdent(ddl.ImportsTable), strings.Join(set, ", "), where)
	return q, args
}

// UpdateImport implements storage.LedgerStore.
func (r *Repository) UpdateImport(ctx context.Context, id string, u storage.ImportUpdate) error {
	q, args := updateSQL(id, u)
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update import %s: %w", id, describe(err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateTotal records the row count of a run once counting finishes.
func (r *Repository) UpdateTotal(ctx context.Context, id string, total int64) error {
	q := fmt.Sprintf("UPDATE %s SET total_records = $1, updated_at = $2 WHERE id = $3", pgIdent(ddl.ImportsTable))
	_, err := r.pool.Exec(ctx, q, total, storage.Now(), id)
	return err
}

// GetImport implements storage.LedgerStore.
func (r *Repository) GetImport(ctx context.Context, id string) (domain.ImportRun, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", strings.Join(mapIdent(importColumns), ", "), pgIdent(ddl.ImportsTable))
	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("get import %s: %w", id, err)
	}
	run, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.ImportRun])
	if err != nil {
		return domain.ImportRun{}, notFound(err)
	}
	return run, nil
}

// ListImports implements storage.LedgerStore.
func (r *Repository) ListImports(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC, id LIMIT $1",
		strings.Join(mapIdent(importColumns), ", "), pgIdent(ddl.ImportsTable))
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[domain.ImportRun])
}
