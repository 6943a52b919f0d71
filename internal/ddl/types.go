package ddl

// Kind is a logical column type. Dialects map it to a concrete SQL type.
type Kind string

const (
	// KindKey is a short, indexable string (ids, enums).
	KindKey Kind = "key"
	// KindName is an indexable human-readable string (owner and holder names).
	KindName Kind = "name"
	// KindText is an unbounded string.
	KindText Kind = "text"
	// KindDecimal is a fixed-point monetary amount with two decimals.
	KindDecimal Kind = "decimal"
	// KindInt is a 32-bit integer.
	KindInt Kind = "int"
	// KindBigInt is a 64-bit integer.
	KindBigInt Kind = "bigint"
	// KindTimestamp is a point in time.
	KindTimestamp Kind = "timestamp"
	// KindJSON is a JSON document.
	KindJSON Kind = "json"
)

// ColumnDef describes a single column.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Kind: logical type, mapped by the Dialect
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., '1', 0)
type ColumnDef struct {
	Name       string
	Kind       Kind
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// IndexDef is a secondary, non-unique index.
type IndexDef struct {
	Name    string
	Columns []string
}

// TableDef holds a table name and its ordered columns and indexes.
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Indexes []IndexDef
}

// Dialect renders identifiers and types for one SQL backend.
type Dialect interface {
	// Quote quotes an identifier.
	Quote(ident string) string
	// SQLType returns the concrete type for k.
	SQLType(k Kind) string
}
