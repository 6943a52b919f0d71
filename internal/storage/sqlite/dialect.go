package sqlite

import (
	"fmt"
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// dialect renders SQLite SQL. SQLite is dynamically typed, so types pick a
// column affinity: decimals are NUMERIC and timestamps DATETIME, which the
// driver parses back into time.Time.
type dialect struct{}

func (dialect) DriverName() string { return "sqlite" }

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER for builds since 3.32.
func (dialect) MaxParams() int { return 32766 }

func (dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (dialect) SQLType(k ddl.Kind) string {
	switch k {
	case ddl.KindDecimal:
		return "NUMERIC"
	case ddl.KindInt, ddl.KindBigInt:
		return "INTEGER"
	case ddl.KindTimestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func (d dialect) Upsert(table, key string, cols, update []string, rows int, policy storage.ConflictPolicy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.Quote(table), quoteAll(d, cols))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s) ", d.Quote(key))
	if policy == storage.ConflictIgnore {
		sb.WriteString("DO NOTHING")
		return sb.String()
	}
	sb.WriteString("DO UPDATE SET ")
	for i, c := range update {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = excluded.%s", d.Quote(c), d.Quote(c))
	}
	return sb.String()
}

// Truncate uses DELETE, as SQLite has no TRUNCATE.
func (d dialect) Truncate(table string) string { return "DELETE FROM " + d.Quote(table) }

func (dialect) Limit(n int) string { return fmt.Sprintf("LIMIT %d", n) }

func (d dialect) Schema() ([]string, error) {
	return ddl.Statements(ddl.Schema(), d, ddl.Options{IfNotExists: true})
}

func quoteAll(d dialect, cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}
