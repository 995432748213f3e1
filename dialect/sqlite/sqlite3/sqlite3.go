// Package sqlite3 binds the SQLite dialect to github.com/mattn/go-sqlite3,
// the cgo driver for file databases.
//
//	s, err := store.Open(sqlite3.New(), "file:shop.db?_foreign_keys=on")
package sqlite3

import (
	_ "github.com/mattn/go-sqlite3"

	"github.com/syssam/strata/dialect/sqlite"
)

// DriverName is the database/sql name of the mattn driver.
const DriverName = "sqlite3"

// Dialect is the SQLite dialect bound to the mattn driver.
type Dialect struct {
	*sqlite.Dialect
}

// New returns the SQLite dialect for the mattn driver.
func New() *Dialect { return &Dialect{Dialect: sqlite.NewDriver(DriverName)} }
