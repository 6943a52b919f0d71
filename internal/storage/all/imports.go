// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init function of each backend, which registers its
// factory with the storage package. Importing it makes the following kinds
// available:
//
//   - "postgres" (internal/storage/postgres)
//   - "mssql"    (internal/storage/mssql)
//   - "mysql"    (internal/storage/mysql)
//   - "sqlite"   (internal/storage/sqlite)
package all

import (
	_ "github.com/kzetxa/getmoneyclaude/internal/storage/mssql"
	_ "github.com/kzetxa/getmoneyclaude/internal/storage/mysql"
	_ "github.com/kzetxa/getmoneyclaude/internal/storage/postgres"
	_ "github.com/kzetxa/getmoneyclaude/internal/storage/sqlite"
)
