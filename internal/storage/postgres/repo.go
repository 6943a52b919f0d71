// Package postgres implements storage.Repository on Postgres using pgx v5.
// Property batches are COPYed into a transaction-scoped temporary table and
// then upserted into the target table in a single statement.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN      string // connection string for pgxpool
	MaxConns int32  // pool size; zero keeps the pgxpool default
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgxpool: ping: %w", err)
	}
	return &Repository{pool: pool}, pool.Close, nil
}

const stagingTable = "tmp_unclaimed_properties"

var (
	copyColumns = append(append([]string{}, domain.PropertyColumns...), "created_at", "updated_at")
	// setColumns excludes the key and the original creation time.
	setColumns = append(append([]string{}, domain.PropertyColumns[1:]...), "updated_at")
)

// upsertSQL moves the staging rows into the target table.
func upsertSQL(policy storage.ConflictPolicy) string {
	cols := strings.Join(mapIdent(copyColumns), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		pgIdent(ddl.PropertiesTable), cols, cols, pgIdent(stagingTable), pgIdent("id"))
	if policy == storage.ConflictIgnore {
		return q + "DO NOTHING"
	}
	return q + "DO UPDATE SET " + strings.Join(updateColumns(setColumns), ", ")
}

// UpsertBatch implements storage.PropertyStore.
func (r *Repository) UpsertBatch(ctx context.Context, recs []domain.Property, policy storage.ConflictPolicy) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	now := storage.Now()
	rows := make([][]any, len(recs))
	for i, p := range recs {
		rows[i] = copyRow(p, now)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
			pgIdent(stagingTable), pgIdent(ddl.PropertiesTable))
		if _, err := tx.Exec(ctx, create); err != nil {
			return fmt.Errorf("create temp: %w", err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, copyColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy into temp: %w", describe(err))
		}
		if _, err := tx.Exec(ctx, upsertSQL(policy)); err != nil {
			return fmt.Errorf("upsert: %w", describe(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

// copyRow orders a property's values like copyColumns, converting decimals
// to pgtype.Numeric for the binary COPY protocol.
func copyRow(p domain.Property, now time.Time) []any {
	vals := p.Values()
	row := make([]any, 0, len(vals)+2)
	for _, v := range vals {
		if d, ok := v.(decimal.Decimal); ok {
			v = numeric(d)
		}
		row = append(row, v)
	}
	return append(row, now, now)
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// Truncate implements storage.PropertyStore.
func (r *Repository) Truncate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+pgIdent(ddl.PropertiesTable))
	return err
}

// Count implements storage.PropertyStore.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgIdent(ddl.PropertiesTable)).Scan(&n)
	return n, err
}

// searchSQL renders the search query and its positional arguments.
func searchSQL(f storage.SearchFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if v := strings.TrimSpace(f.OwnerName); v != "" {
		where = append(where, "owner_name ILIKE "+arg("%"+v+"%"))
	}
	if f.MinBalance != nil {
		where = append(where, "current_cash_balance >= "+arg(*f.MinBalance))
	}
	if f.MaxBalance != nil {
		where = append(where, "current_cash_balance <= "+arg(*f.MaxBalance))
	}
	if v := strings.TrimSpace(f.City); v != "" {
		where = append(where, "owner_city ILIKE "+arg("%"+v+"%"))
	}
	if v := strings.TrimSpace(f.PropertyType); v != "" {
		where = append(where, "property_type = "+arg(v))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(mapIdent(copyColumns), ", "), pgIdent(ddl.PropertiesTable))
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY current_cash_balance DESC, id LIMIT %d", f.EffectiveLimit())
	return sb.String(), args
}

// Search implements storage.PropertyStore.
func (r *Repository) Search(ctx context.Context, f storage.SearchFilter) ([]domain.Property, error) {
	q, args := searchSQL(f)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Property])
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return out, nil
}

// EnsureSchema implements storage.Repository.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts, err := schemaStatements()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w\n%s", describe(err), stmt)
		}
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// describe surfaces the server's detail and SQLSTATE from a *pgconn.PgError.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
