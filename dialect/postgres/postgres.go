// Package postgres implements the PostgreSQL dialect over the database/sql
// adapter of github.com/jackc/pgx/v5.
package postgres

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

// DriverName is the database/sql name of the pgx adapter.
const DriverName = "pgx"

// SQLSTATE codes of constraint violations.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Dialect is the PostgreSQL dialect.
type Dialect struct {
	dialect.Base
}

// New returns the PostgreSQL dialect.
func New() *Dialect {
	return &Dialect{Base: dialect.NewBase(dialect.Postgres, DriverName,
		"ANALYSE", "ANALYZE", "ARRAY", "ILIKE", "LIMIT", "OFFSET", "RETURNING", "SIMILAR", "VARIADIC", "WINDOW")}
}

// Quote quotes an identifier with double quotes.
func (*Dialect) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

// Placeholder returns $<i+1>.
func (*Dialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i+1) }

// Arg returns v unchanged. Parameters bind by position.
func (*Dialect) Arg(_ int, v any) any { return v }

// ColumnType returns the column type of a field.
func (d *Dialect) ColumnType(f *field.Descriptor) (string, error) {
	if t, ok := d.Override(f); ok {
		return t, nil
	}
	switch f.Type {
	case field.TypeBool:
		return "BOOLEAN", nil
	case field.TypeInt, field.TypeInt32:
		return "INTEGER", nil
	case field.TypeInt16:
		return "SMALLINT", nil
	case field.TypeInt64, field.TypeDuration, field.TypeRowVersion:
		return "BIGINT", nil
	case field.TypeFloat32:
		return "REAL", nil
	case field.TypeFloat64:
		return "DOUBLE PRECISION", nil
	case field.TypeDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", f.Precision, f.Scale), nil
	case field.TypeString:
		if f.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Size), nil
		}
		return "TEXT", nil
	case field.TypeBytes, field.TypeObject:
		return "BYTEA", nil
	case field.TypeTime:
		return "TIMESTAMP", nil
	case field.TypeUUID:
		return "UUID", nil
	}
	return "", dialect.UnsupportedType(dialect.Postgres, f)
}

// PrimaryKeyClause returns the key attributes.
func (*Dialect) PrimaryKeyClause(identity bool) string {
	if identity {
		return "GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
	return "PRIMARY KEY"
}

// CurrentTimestamp returns the current UTC time without time zone.
func (*Dialect) CurrentTimestamp() string { return "(NOW() AT TIME ZONE 'utc')" }

// Literal renders a default value. Byte strings use the hex bytea format.
func (d *Dialect) Literal(v any) (string, error) {
	if b, ok := v.([]byte); ok {
		return `'\x` + hex.EncodeToString(b) + "'::bytea", nil
	}
	return d.Base.Literal(v)
}

// Returning returns a RETURNING clause.
func (d *Dialect) Returning(key string) (string, string) {
	return "", "RETURNING " + key
}

// FieldType maps a database type name to a field type.
func (*Dialect) FieldType(dbType string) field.Type {
	switch t := strings.ToUpper(dbType); {
	case t == "BOOL", t == "BOOLEAN":
		return field.TypeBool
	case t == "INT2", t == "SMALLINT":
		return field.TypeInt16
	case t == "INT4", t == "INTEGER", t == "SERIAL":
		return field.TypeInt32
	case t == "INT8", t == "BIGINT", t == "BIGSERIAL":
		return field.TypeInt64
	case t == "FLOAT4", t == "REAL":
		return field.TypeFloat32
	case t == "FLOAT8", strings.HasPrefix(t, "DOUBLE"):
		return field.TypeFloat64
	case t == "NUMERIC", t == "DECIMAL", t == "MONEY":
		return field.TypeDecimal
	case t == "BYTEA":
		return field.TypeBytes
	case t == "UUID":
		return field.TypeUUID
	case strings.HasPrefix(t, "TIMESTAMP"), t == "DATE":
		return field.TypeTime
	default:
		return field.TypeString
	}
}

// TableNames lists the tables of the current schema.
func (*Dialect) TableNames(ctx context.Context, q dialect.Querier) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_type = 'BASE TABLE' ORDER BY table_name")
}

// TableExists reports if the table exists in the current schema.
func (*Dialect) TableExists(ctx context.Context, q dialect.Querier, table string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1", table)
}

// IsIdentity reports if the column is an identity column or takes its
// default from a sequence.
func (*Dialect) IsIdentity(ctx context.Context, q dialect.Querier, table, column string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM information_schema.columns WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1 AND column_name = $2 "+
			"AND (is_identity = 'YES' OR column_default LIKE 'nextval(%')", table, column)
}

// Columns lists the columns of a table in declaration order.
func (*Dialect) Columns(ctx context.Context, q dialect.Querier, table string) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1 ORDER BY ordinal_position", table)
}

// IndexExists reports if the index exists on the table.
func (*Dialect) IndexExists(ctx context.Context, q dialect.Querier, table, index string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM pg_indexes WHERE schemaname = CURRENT_SCHEMA() AND tablename = $1 AND indexname = $2", table, index)
}

// FieldLength returns the character length of a column.
func (*Dialect) FieldLength(ctx context.Context, q dialect.Querier, table, column string) (int, error) {
	return dialect.QueryLength(ctx, q,
		"SELECT character_maximum_length FROM information_schema.columns WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1 AND column_name = $2", table, column)
}

// PrimaryKey returns the key column and the name of its constraint index.
func (*Dialect) PrimaryKey(ctx context.Context, q dialect.Querier, table string) (string, string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT kcu.column_name, tc.constraint_name FROM information_schema.table_constraints tc "+
			"JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema "+
			"WHERE tc.table_schema = CURRENT_SCHEMA() AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY' ORDER BY kcu.ordinal_position", table)
	if err != nil {
		return "", "", err
	}
	defer rows.Close()
	var column, index string
	if rows.Next() {
		if err := rows.Scan(&column, &index); err != nil {
			return "", "", err
		}
	}
	return column, index, rows.Err()
}

// IsUniqueConstraintError reports if err is a unique violation.
func (*Dialect) IsUniqueConstraintError(err error) bool {
	return sqlState(err) == uniqueViolation
}

// IsForeignKeyConstraintError reports if err is a foreign-key violation.
func (*Dialect) IsForeignKeyConstraintError(err error) bool {
	return sqlState(err) == foreignKeyViolation
}

// sqlState extracts the SQLSTATE of pgx and lib/pq errors.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.SQLState()
	}
	return ""
}

// OpenDB opens the data source through the pgx adapter.
func (*Dialect) OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("dialect/postgres: parse dsn: %w", err)
	}
	return stdlib.OpenDB(*cfg), nil
}

// StoreExists reports if the database named by the data source exists.
func (d *Dialect) StoreExists(ctx context.Context, dsn string) (bool, error) {
	var exists bool
	err := d.server(ctx, dsn, func(db *sql.DB, name string) (err error) {
		exists, err = dialect.QueryExists(ctx, db, "SELECT 1 FROM pg_database WHERE datname = $1", name)
		return err
	})
	return exists, err
}

// CreateStore creates the database named by the data source.
func (d *Dialect) CreateStore(ctx context.Context, dsn string) error {
	return d.server(ctx, dsn, func(db *sql.DB, name string) error {
		_, err := db.ExecContext(ctx, "CREATE DATABASE "+d.Quote(name))
		return err
	})
}

// DeleteStore drops the database named by the data source.
func (d *Dialect) DeleteStore(ctx context.Context, dsn string) error {
	return d.server(ctx, dsn, func(db *sql.DB, name string) error {
		_, err := db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+d.Quote(name))
		return err
	})
}

// server runs fn on a connection to the maintenance database.
func (*Dialect) server(ctx context.Context, dsn string, fn func(*sql.DB, string) error) error {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("dialect/postgres: parse dsn: %w", err)
	}
	name := cfg.Database
	if name == "" {
		return fmt.Errorf("dialect/postgres: data source names no database")
	}
	cfg.Database = "postgres"
	db := stdlib.OpenDB(*cfg)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("dialect/postgres: connect server: %w", err)
	}
	return fn(db, name)
}

var (
	_ dialect.Dialect              = (*Dialect)(nil)
	_ dialect.StoreManager         = (*Dialect)(nil)
	_ dialect.ConstraintClassifier = (*Dialect)(nil)
	_ dialect.Opener               = (*Dialect)(nil)
	_ dialect.IdentityReporter     = (*Dialect)(nil)
)
