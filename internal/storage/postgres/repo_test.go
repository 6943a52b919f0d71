package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

func TestUpsertSQL(t *testing.T) {
	upd := upsertSQL(storage.ConflictUpdate)
	assert.True(t, strings.HasPrefix(upd, `INSERT INTO "unclaimed_properties" ("id", "property_type"`), upd)
	assert.Contains(t, upd, `FROM "tmp_unclaimed_properties" ON CONFLICT ("id") DO UPDATE SET "property_type" = EXCLUDED."property_type"`)
	assert.Contains(t, upd, `"updated_at" = EXCLUDED."updated_at"`)
	assert.NotContains(t, upd, `"id" = EXCLUDED."id"`)
	assert.NotContains(t, upd, `"created_at" = EXCLUDED`)

	ign := upsertSQL(storage.ConflictIgnore)
	assert.True(t, strings.HasSuffix(ign, `ON CONFLICT ("id") DO NOTHING`), ign)
}

func TestSearchSQL(t *testing.T) {
	minBal := 10.0
	q, args := searchSQL(storage.SearchFilter{OwnerName: " jane ", MinBalance: &minBal, PropertyType: "CK", Limit: 900})

	assert.Contains(t, q, "WHERE owner_name ILIKE $1 AND current_cash_balance >= $2 AND property_type = $3")
	assert.True(t, strings.HasSuffix(q, "ORDER BY current_cash_balance DESC, id LIMIT 500"), q)
	assert.Equal(t, []any{"%jane%", 10.0, "CK"}, args)

	q, args = searchSQL(storage.SearchFilter{})
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)
	assert.True(t, strings.HasSuffix(q, "LIMIT 50"), q)
}

func TestUpdateSQL(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := storage.Now
	storage.Now = func() time.Time { return fixed }
	defer func() { storage.Now = orig }()

	status := domain.StatusFailed
	msg := "boom"
	q, args := updateSQL("run-1", storage.ImportUpdate{Status: &status, ErrorMessage: &msg})

	assert.Equal(t, `UPDATE "data_imports" SET import_status = $1, error_message = $2, updated_at = $3 WHERE id = $4`, q)
	assert.Equal(t, []any{"failed", "boom", fixed, "run-1"}, args)

	running, pending := domain.StatusInProgress, domain.StatusPending
	q, args = updateSQL("run-2", storage.ImportUpdate{Status: &running, From: &pending})
	assert.Equal(t, `UPDATE "data_imports" SET import_status = $1, updated_at = $2 WHERE id = $3 AND import_status = $4`, q)
	assert.Equal(t, []any{"in_progress", fixed, "run-2", "pending"}, args)
}

func TestCopyRowConvertsDecimals(t *testing.T) {
	now := time.Now()
	p := domain.Property{ID: "P1", CurrentCashBalance: decimal.RequireFromString("12.34")}
	row := copyRow(p, now)

	require.Len(t, row, len(copyColumns))
	n, ok := row[14].(pgtype.Numeric)
	require.True(t, ok, "current_cash_balance is %T", row[14])
	assert.Equal(t, int64(1234), n.Int.Int64())
	assert.Equal(t, int32(-2), n.Exp)
	assert.Equal(t, now, row[len(row)-1])
}

func TestSchemaStatements(t *testing.T) {
	stmts, err := schemaStatements()
	require.NoError(t, err)
	require.Len(t, stmts, 10)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "data_imports"`)
	assert.Contains(t, strings.Join(stmts, "\n"), `"original_data" JSONB NOT NULL`)
	assert.Contains(t, strings.Join(stmts, "\n"), `"created_at" TIMESTAMPTZ NOT NULL`)
}
