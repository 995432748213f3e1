package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/syssam/strata/dialect"
)

// Server error numbers of constraint violations.
const (
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

// IsUniqueConstraintError reports if err is a duplicate-key error.
func (*Dialect) IsUniqueConstraintError(err error) bool {
	var e *mysql.MySQLError
	return errors.As(err, &e) && e.Number == errDuplicateEntry
}

// IsForeignKeyConstraintError reports if err is a foreign-key error.
func (*Dialect) IsForeignKeyConstraintError(err error) bool {
	var e *mysql.MySQLError
	return errors.As(err, &e) && (e.Number == errRowIsReferenced || e.Number == errNoReferencedRow)
}

var _ dialect.ConstraintClassifier = (*Dialect)(nil)
