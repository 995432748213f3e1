// Package dialect describes the SQL backends supported by strata.
//
// Each backend implements the Dialect interface: identifier quoting,
// parameter placeholders, column types, DDL fragments, paging, index
// hints and the metadata queries the schema manager needs. The store
// renders every statement through this surface.
//
// # Supported Dialects
//
//   - dialect/sqlite: embedded and file databases (modernc.org/sqlite)
//   - dialect/sqlite/sqlite3: file databases through cgo (mattn/go-sqlite3)
//   - dialect/mysql: MySQL and MariaDB
//   - dialect/postgres: PostgreSQL (pgx)
//   - dialect/mssql: SQL Server and Azure SQL
//
// # Placeholders
//
// Parameters are numbered from zero and rendered by the dialect:
//
//	sqlite, mssql   @p0, @p1 (named arguments)
//	mysql           ?, ?
//	postgres        $1, $2
//
// # Optional Capabilities
//
// A dialect may also implement ValueDecoder and ValueEncoder to convert
// driver-specific representations, and StoreManager to create and drop
// the database itself.
package dialect
