//go:build cgo

package sqlite3

import (
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/syssam/strata/dialect"
)

// IsUniqueConstraintError reports if err is a uniqueness or primary-key
// violation reported by the driver.
func (*Dialect) IsUniqueConstraintError(err error) bool {
	var e sqlite3.Error
	return errors.As(err, &e) &&
		(e.ExtendedCode == sqlite3.ErrConstraintUnique || e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// IsForeignKeyConstraintError reports if err is a foreign-key violation
// reported by the driver.
func (*Dialect) IsForeignKeyConstraintError(err error) bool {
	var e sqlite3.Error
	return errors.As(err, &e) && e.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

var _ dialect.ConstraintClassifier = (*Dialect)(nil)
