package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/syssam/strata/schema/field"
)

// Dialect names.
const (
	SQLite    = "sqlite"
	MySQL     = "mysql"
	Postgres  = "postgres"
	SQLServer = "sqlserver"
)

// Querier runs statements against a connection or a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DurationStorage is how a backend stores time.Duration values.
type DurationStorage uint8

// Duration storage modes.
const (
	// DurationTicks stores the duration as an integer count of nanoseconds.
	DurationTicks DurationStorage = iota
	// DurationEpoch stores the duration as a timestamp offset from Epoch.
	DurationEpoch
)

// Epoch is the base date of durations stored as timestamps.
var Epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Dialect is the capability surface of one SQL backend. The store renders
// every statement through it and never branches on the backend itself.
// Identifiers passed to the DDL helpers are already quoted.
type Dialect interface {
	// Name returns the dialect name.
	Name() string
	// Driver returns the database/sql driver name.
	Driver() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder returns the text of the i-th (zero-based) parameter.
	Placeholder(i int) string
	// Arg returns the value bound to the i-th parameter.
	Arg(i int, v any) any
	// IsReserved reports if the word cannot name a table or a column.
	IsReserved(word string) bool

	// ColumnType returns the column type of a field.
	ColumnType(f *field.Descriptor) (string, error)
	// PrimaryKeyClause returns the attributes of a primary-key column.
	PrimaryKeyClause(identity bool) string
	// Literal renders a default value.
	Literal(v any) (string, error)
	// CurrentTimestamp returns the default expression of the current UTC time.
	CurrentTimestamp() string
	// AddColumn returns the statement adding a column definition to a table.
	AddColumn(table, column string) string
	// Truncate returns the statement removing all rows of a table.
	Truncate(table string) string
	// Returning returns the clauses that make an INSERT return the key
	// column. output goes before VALUES and returning at the end. Both are
	// empty when the backend reports the key through LastInsertId.
	Returning(key string) (output, returning string)
	// LimitOffset returns the paging clause. orderBy is the ORDER BY clause
	// to use when the query has none and the backend requires one.
	LimitOffset(limit, offset int) (orderBy, clause string)
	// IndexHint returns the table suffix that forces an index seek. It is
	// empty when the backend has no table-direct access path.
	IndexHint(index string) string
	// Durations returns how durations are stored.
	Durations() DurationStorage
	// RowVersionManaged reports if the backend assigns row versions.
	RowVersionManaged() bool
	// FieldType maps a database type name to a field type.
	FieldType(dbType string) field.Type
	// Comparable returns the expression that orders values of type t by
	// value in range conditions and ORDER BY clauses. expr is a quoted
	// column or a placeholder.
	Comparable(t field.Type, expr string) string

	// TableNames lists the user tables.
	TableNames(ctx context.Context, q Querier) ([]string, error)
	// TableExists reports if the table exists.
	TableExists(ctx context.Context, q Querier, table string) (bool, error)
	// Columns lists the column names of a table.
	Columns(ctx context.Context, q Querier, table string) ([]string, error)
	// IndexExists reports if the named index exists on the table.
	IndexExists(ctx context.Context, q Querier, table, index string) (bool, error)
	// FieldLength returns the maximum character length of a column,
	// or -1 if unbounded or not a character column.
	FieldLength(ctx context.Context, q Querier, table, column string) (int, error)
	// PrimaryKey returns the primary-key column and the name of its index.
	// Both are empty when the table has no primary key.
	PrimaryKey(ctx context.Context, q Querier, table string) (column, index string, err error)
}

// ValueDecoder is implemented by dialects that convert some driver values
// before the generic conversion rules run.
type ValueDecoder interface {
	DecodeValue(t field.Type, v any) (any, bool, error)
}

// ValueEncoder is implemented by dialects that bind some field values in
// a backend-specific form.
type ValueEncoder interface {
	EncodeValue(t field.Type, v any) (any, bool)
}

// StoreManager is implemented by dialects that can create and delete the
// store (database) named by a data source.
type StoreManager interface {
	StoreExists(ctx context.Context, dsn string) (bool, error)
	CreateStore(ctx context.Context, dsn string) error
	DeleteStore(ctx context.Context, dsn string) error
}

// ConstraintClassifier is implemented by dialects that recognize
// constraint violations from the error types of their driver.
type ConstraintClassifier interface {
	IsUniqueConstraintError(err error) bool
	IsForeignKeyConstraintError(err error) bool
}

// IdentityReporter is implemented by dialects that can tell if the
// backend assigns the values of a key column.
type IdentityReporter interface {
	IsIdentity(ctx context.Context, q Querier, table, column string) (bool, error)
}

// Opener is implemented by dialects that build the connection pool from a
// driver connector instead of sql.Open, for example to normalize the data
// source first.
type Opener interface {
	OpenDB(dsn string) (*sql.DB, error)
}

// Open opens the data source with the dialect.
func Open(d Dialect, dsn string) (*sql.DB, error) {
	if o, ok := d.(Opener); ok {
		return o.OpenDB(dsn)
	}
	return sql.Open(d.Driver(), dsn)
}

// IndexName returns the name of the secondary index of a searchable field.
func IndexName(entity, column string, order field.SearchOrder) string {
	return fmt.Sprintf("ORM_IDX_%s_%s_%s", entity, column, order)
}

// ColumnDefinition renders the column of a field for CREATE TABLE and
// ALTER TABLE statements.
func ColumnDefinition(d Dialect, f *field.Descriptor, identity bool) (string, error) {
	typ, err := d.ColumnType(f)
	if err != nil {
		return "", err
	}
	def := d.Quote(f.Name) + " " + typ
	if f.Type == field.TypeRowVersion && d.RowVersionManaged() {
		return def + " NOT NULL", nil
	}
	if f.Nullable {
		def += " NULL"
	} else {
		def += " NOT NULL"
	}
	switch {
	case f.PrimaryKey:
		def += " " + d.PrimaryKeyClause(identity)
	case f.Unique:
		def += " UNIQUE"
	}
	switch {
	case f.DefaultNow:
		def += " DEFAULT " + d.CurrentTimestamp()
	case f.Default != nil && f.Type != field.TypeObject:
		lit, err := d.Literal(f.Default)
		if err != nil {
			return "", fmt.Errorf("dialect: default of %q: %w", f.Name, err)
		}
		def += " DEFAULT " + lit
	case !f.Nullable && !f.PrimaryKey && f.Type != field.TypeRowVersion:
		// Columns added to populated tables need a value for existing rows.
		if lit, ok := zeroLiteral(d, f); ok {
			def += " DEFAULT " + lit
		}
	}
	return def, nil
}

func zeroLiteral(d Dialect, f *field.Descriptor) (string, bool) {
	var v any
	switch {
	case f.Type == field.TypeBool:
		v = false
	case f.Type.Numeric(), f.Type == field.TypeDuration && d.Durations() == DurationTicks:
		return "0", true
	case f.Type == field.TypeString:
		v = ""
	default:
		return "", false
	}
	lit, err := d.Literal(v)
	return lit, err == nil
}
