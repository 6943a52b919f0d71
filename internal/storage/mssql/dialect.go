package mssql

import (
	"fmt"
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// dialect renders Transact-SQL.
type dialect struct{}

func (dialect) DriverName() string { return "sqlserver" }

// MaxParams is the 2100-parameter RPC limit.
func (dialect) MaxParams() int { return 2100 }

func (dialect) Quote(ident string) string { return msIdent(ident) }

func (dialect) SQLType(k ddl.Kind) string {
	switch k {
	case ddl.KindKey:
		return "NVARCHAR(255)"
	case ddl.KindName:
		return "NVARCHAR(400)"
	case ddl.KindText, ddl.KindJSON:
		return "NVARCHAR(MAX)"
	case ddl.KindDecimal:
		return "DECIMAL(15,2)"
	case ddl.KindInt:
		return "INT"
	case ddl.KindBigInt:
		return "BIGINT"
	case ddl.KindTimestamp:
		return "DATETIME2"
	}
	return ""
}

// Upsert renders a MERGE over a VALUES source. ConflictIgnore drops the
// WHEN MATCHED arm.
func (dialect) Upsert(table, key string, cols, update []string, rows int, policy storage.ConflictPolicy) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = tuple
	}
	src := make([]string, len(cols))
	for i, c := range cols {
		src[i] = "src." + msIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s WITH (HOLDLOCK) AS tgt USING (VALUES %s) AS src (%s) ON tgt.%s = src.%s",
		msFQN(table), strings.Join(tuples, ", "), strings.Join(mapIdent(cols), ", "), msIdent(key), msIdent(key))
	if policy != storage.ConflictIgnore {
		set := make([]string, len(update))
		for i, c := range update {
			set[i] = fmt.Sprintf("tgt.%s = src.%s", msIdent(c), msIdent(c))
		}
		sb.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		sb.WriteString(strings.Join(set, ", "))
	}
	fmt.Fprintf(&sb, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		strings.Join(mapIdent(cols), ", "), strings.Join(src, ", "))
	return sb.String()
}

func (dialect) Truncate(table string) string { return "TRUNCATE TABLE " + msFQN(table) }

// Limit uses OFFSET/FETCH, which requires the preceding ORDER BY.
func (dialect) Limit(n int) string { return fmt.Sprintf("OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n) }

// Schema guards each CREATE TABLE with OBJECT_ID, since T-SQL has no
// CREATE TABLE IF NOT EXISTS. Indexes are declared inline.
func (d dialect) Schema() ([]string, error) {
	var out []string
	for _, t := range ddl.Schema() {
		stmt, err := ddl.BuildCreateTableSQL(t, d, ddl.Options{InlineIndexes: true})
		if err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", strings.ReplaceAll(t.Name, "'", "''"), stmt))
	}
	return out, nil
}

// msIdent quotes an identifier with brackets, escaping closing brackets.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.data_imports" to
// "[dbo].[data_imports]". If no dot is present, returns a single quoted ident.
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their bracket-quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
