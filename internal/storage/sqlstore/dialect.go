// Package sqlstore implements storage.Repository over database/sql and sqlx
// for backends that differ only in SQL dialect (sqlite, mysql, mssql). Each
// backend package supplies a Dialect and registers itself with storage.
package sqlstore

import (
	"github.com/kzetxa/getmoneyclaude/internal/ddl"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect interface {
	ddl.Dialect

	// DriverName is the database/sql driver name, which also selects the
	// sqlx bind style.
	DriverName() string

	// MaxParams is the bind-parameter ceiling of one statement.
	MaxParams() int

	// Upsert returns a statement inserting rows tuples of cols into table
	// keyed on key, using '?' placeholders in row-major order. On conflict
	// the non-key columns in update are overwritten (ConflictUpdate) or the
	// row is skipped (ConflictIgnore).
	Upsert(table, key string, cols, update []string, rows int, policy storage.ConflictPolicy) string

	// Truncate returns a statement emptying table.
	Truncate(table string) string

	// Limit returns the clause that caps an ordered SELECT at n rows; it
	// is appended after ORDER BY.
	Limit(n int) string

	// Schema returns the statements that create the import tables when
	// they do not yet exist.
	Schema() ([]string, error)
}
