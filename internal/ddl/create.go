// Package ddl defines a small, backend-agnostic model for the import's SQL
// tables and renders CREATE TABLE / CREATE INDEX statements from it through a
// Dialect. Backends supply the dialect; the table shapes live in Schema.
package ddl

import (
	"fmt"
	"strings"
)

// Options tune rendering for dialects with different DDL support.
type Options struct {
	// IfNotExists emits CREATE TABLE IF NOT EXISTS.
	IfNotExists bool
	// InlineIndexes renders indexes inside the CREATE TABLE body
	// (MySQL, SQL Server) instead of as separate statements.
	InlineIndexes bool
}

// BuildCreateTableSQL renders a CREATE TABLE statement for t.
//
// A column renders as:
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// Primary key columns are collected into a trailing PRIMARY KEY clause.
func BuildCreateTableSQL(t TableDef, d Dialect, opt Options) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1+len(t.Indexes))
	var pks []string

	for _, c := range t.Columns {
		cn := strings.TrimSpace(c.Name)
		if cn == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		typ := d.SQLType(c.Kind)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s has unknown kind %q", cn, c.Kind)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(cn))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.Quote(cn))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	if opt.InlineIndexes {
		for _, idx := range t.Indexes {
			cols = append(cols, fmt.Sprintf("INDEX %s (%s)", d.Quote(idx.Name), quoteAll(d, idx.Columns)))
		}
	}

	head := "CREATE TABLE "
	if opt.IfNotExists {
		head += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n)", head, d.Quote(name), strings.Join(cols, ",\n  ")), nil
}

// BuildCreateIndexSQL renders CREATE INDEX IF NOT EXISTS for one index of t.
func BuildCreateIndexSQL(t TableDef, idx IndexDef, d Dialect) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Quote(idx.Name), d.Quote(t.Name), quoteAll(d, idx.Columns))
}

// Statements renders every table in tables and, unless indexes are inline,
// each index as its own statement, in dependency order.
func Statements(tables []TableDef, d Dialect, opt Options) ([]string, error) {
	var out []string
	for _, t := range tables {
		stmt, err := BuildCreateTableSQL(t, d, opt)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		if !opt.InlineIndexes {
			for _, idx := range t.Indexes {
				out = append(out, BuildCreateIndexSQL(t, idx, d))
			}
		}
	}
	return out, nil
}

func quoteAll(d Dialect, cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}
