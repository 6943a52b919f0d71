package mysql

import (
	"fmt"
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// dialect renders MySQL 8 SQL. Identifiers are backtick-quoted because
// row_number is reserved.
type dialect struct{}

func (dialect) DriverName() string { return "mysql" }

// MaxParams is the prepared-statement placeholder limit.
func (dialect) MaxParams() int { return 65535 }

func (dialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (dialect) SQLType(k ddl.Kind) string {
	switch k {
	case ddl.KindKey:
		return "VARCHAR(255)"
	case ddl.KindName:
		return "VARCHAR(400)"
	case ddl.KindText:
		return "TEXT"
	case ddl.KindDecimal:
		return "DECIMAL(15,2)"
	case ddl.KindInt:
		return "INT"
	case ddl.KindBigInt:
		return "BIGINT"
	case ddl.KindTimestamp:
		return "DATETIME(6)"
	case ddl.KindJSON:
		return "JSON"
	}
	return ""
}

// Upsert renders a multi-row INSERT with ON DUPLICATE KEY UPDATE, or INSERT
// IGNORE for ConflictIgnore.
func (d dialect) Upsert(table, _ string, cols, update []string, rows int, policy storage.ConflictPolicy) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = tuple
	}

	verb := "INSERT"
	if policy == storage.ConflictIgnore {
		verb = "INSERT IGNORE"
	}
	stmt := fmt.Sprintf("%s INTO %s (%s) VALUES %s", verb, d.Quote(table), strings.Join(q, ", "), strings.Join(tuples, ", "))
	if policy == storage.ConflictIgnore {
		return stmt
	}
	set := make([]string, len(update))
	for i, c := range update {
		set[i] = fmt.Sprintf("%s = VALUES(%s)", d.Quote(c), d.Quote(c))
	}
	return stmt + " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
}

func (d dialect) Truncate(table string) string { return "TRUNCATE TABLE " + d.Quote(table) }

func (dialect) Limit(n int) string { return fmt.Sprintf("LIMIT %d", n) }

// Schema declares indexes inline; MySQL has no CREATE INDEX IF NOT EXISTS.
func (d dialect) Schema() ([]string, error) {
	return ddl.Statements(ddl.Schema(), d, ddl.Options{IfNotExists: true, InlineIndexes: true})
}
