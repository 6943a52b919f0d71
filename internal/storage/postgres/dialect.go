package postgres

import (
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
)

// dialect renders Postgres DDL for the shared schema model.
type dialect struct{}

func (dialect) Quote(ident string) string { return pgIdent(ident) }

func (dialect) SQLType(k ddl.Kind) string {
	switch k {
	case ddl.KindKey, ddl.KindName, ddl.KindText:
		return "TEXT"
	case ddl.KindDecimal:
		return "NUMERIC(15,2)"
	case ddl.KindInt:
		return "INTEGER"
	case ddl.KindBigInt:
		return "BIGINT"
	case ddl.KindTimestamp:
		return "TIMESTAMPTZ"
	case ddl.KindJSON:
		return "JSONB"
	}
	return ""
}

// schemaStatements returns CREATE TABLE/INDEX IF NOT EXISTS for every table.
func schemaStatements() ([]string, error) {
	return ddl.Statements(ddl.Schema(), dialect{}, ddl.Options{IfNotExists: true})
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// updateColumns generates a list of column updates in the format: "col = EXCLUDED.col"
func updateColumns(cols []string) []string {
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		updates = append(updates, pgIdent(col)+" = EXCLUDED."+pgIdent(col))
	}
	return updates
}
