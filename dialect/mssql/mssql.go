// Package mssql implements the SQL Server and Azure SQL dialect over
// github.com/microsoft/go-mssqldb.
//
// Row versions are assigned by the server (ROWVERSION columns) and
// durations are stored as DATETIME2 offsets from dialect.Epoch.
package mssql

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

// DriverName is the database/sql name of the driver.
const DriverName = "sqlserver"

// Server error numbers of constraint violations.
const (
	errUniqueConstraint = 2627
	errUniqueIndex      = 2601
	errForeignKey       = 547
)

// Dialect is the SQL Server dialect.
type Dialect struct {
	dialect.Base
}

// New returns the SQL Server dialect.
func New() *Dialect {
	b := dialect.NewBase(dialect.SQLServer, DriverName,
		"BACKUP", "BREAK", "BROWSE", "CHECKPOINT", "CLUSTERED", "DBCC", "DENY", "DUMP", "ERRLVL", "FILE",
		"FILLFACTOR", "HOLDLOCK", "IDENTITY_INSERT", "IDENTITYCOL", "KILL", "LINENO", "MERGE", "NOCHECK",
		"NONCLUSTERED", "OFFSETS", "OPENQUERY", "PERCENT", "PIVOT", "PLAN", "PRINT", "PROC", "RAISERROR",
		"READTEXT", "RECONFIGURE", "REPLICATION", "RESTORE", "REVERT", "ROWCOUNT", "ROWGUIDCOL", "RULE",
		"SAVE", "SETUSER", "SHUTDOWN", "STATISTICS", "TEXTSIZE", "TOP", "TRAN", "TRIGGER", "TRUNCATE",
		"TRY_CONVERT", "TSEQUAL", "UNPIVOT", "UPDATETEXT", "USE", "WAITFOR", "WHILE", "WRITETEXT")
	b.BoolAsInt = true
	return &Dialect{Base: b}
}

// Quote quotes an identifier with brackets.
func (*Dialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// Placeholder returns @p<i>.
func (*Dialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

// Arg binds v to the named parameter p<i>.
func (*Dialect) Arg(i int, v any) any { return sql.Named(fmt.Sprintf("p%d", i), v) }

// ColumnType returns the column type of a field.
func (d *Dialect) ColumnType(f *field.Descriptor) (string, error) {
	if t, ok := d.Override(f); ok {
		return t, nil
	}
	switch f.Type {
	case field.TypeBool:
		return "BIT", nil
	case field.TypeInt, field.TypeInt32:
		return "INT", nil
	case field.TypeInt16:
		return "SMALLINT", nil
	case field.TypeInt64:
		return "BIGINT", nil
	case field.TypeFloat32:
		return "REAL", nil
	case field.TypeFloat64:
		return "FLOAT", nil
	case field.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", f.Precision, f.Scale), nil
	case field.TypeString:
		switch {
		case f.Size > 0 && f.Size <= 4000:
			return fmt.Sprintf("NVARCHAR(%d)", f.Size), nil
		case f.Size == 0 && (f.PrimaryKey || f.Unique || f.SearchOrder != field.NotSearchable):
			// Index keys are limited to 900 bytes.
			return "NVARCHAR(450)", nil
		}
		return "NVARCHAR(MAX)", nil
	case field.TypeBytes:
		if f.Size > 0 && f.Size <= 8000 {
			return fmt.Sprintf("VARBINARY(%d)", f.Size), nil
		}
		return "VARBINARY(MAX)", nil
	case field.TypeObject:
		return "VARBINARY(MAX)", nil
	case field.TypeTime, field.TypeDuration:
		return "DATETIME2", nil
	case field.TypeUUID:
		return "UNIQUEIDENTIFIER", nil
	case field.TypeRowVersion:
		return "ROWVERSION", nil
	}
	return "", dialect.UnsupportedType(dialect.SQLServer, f)
}

// PrimaryKeyClause returns the key attributes.
func (*Dialect) PrimaryKeyClause(identity bool) string {
	if identity {
		return "IDENTITY(1,1) PRIMARY KEY"
	}
	return "PRIMARY KEY"
}

// CurrentTimestamp returns SYSUTCDATETIME().
func (*Dialect) CurrentTimestamp() string { return "SYSUTCDATETIME()" }

// Literal renders a default value.
func (d *Dialect) Literal(v any) (string, error) {
	switch v := v.(type) {
	case []byte:
		return "0x" + strings.ToUpper(hex.EncodeToString(v)), nil
	case string:
		lit, err := d.Base.Literal(v)
		return "N" + lit, err
	}
	return d.Base.Literal(v)
}

// AddColumn returns an ALTER TABLE ... ADD statement.
func (*Dialect) AddColumn(table, column string) string {
	return "ALTER TABLE " + table + " ADD " + column
}

// Returning returns an OUTPUT clause.
func (*Dialect) Returning(key string) (string, string) {
	return "OUTPUT INSERTED." + key, ""
}

// LimitOffset returns an OFFSET/FETCH clause. It requires an ORDER BY.
func (*Dialect) LimitOffset(limit, offset int) (string, string) {
	return "ORDER BY (SELECT NULL)", fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

// IndexHint returns a table hint forcing the index.
func (d *Dialect) IndexHint(index string) string {
	if index == "" {
		return ""
	}
	return "WITH (INDEX(" + d.Quote(index) + "))"
}

// Durations returns DurationEpoch.
func (*Dialect) Durations() dialect.DurationStorage { return dialect.DurationEpoch }

// RowVersionManaged returns true.
func (*Dialect) RowVersionManaged() bool { return true }

// EncodeValue binds UUIDs in the mixed-endian layout of UNIQUEIDENTIFIER.
func (*Dialect) EncodeValue(t field.Type, v any) (any, bool) {
	if t != field.TypeUUID {
		return nil, false
	}
	switch u := v.(type) {
	case uuid.UUID:
		return mssql.UniqueIdentifier(u), true
	case *uuid.UUID:
		if u == nil {
			return nil, true
		}
		return mssql.UniqueIdentifier(*u), true
	}
	return nil, false
}

// DecodeValue reads UNIQUEIDENTIFIER values.
func (*Dialect) DecodeValue(t field.Type, v any) (any, bool, error) {
	b, ok := v.([]byte)
	if t != field.TypeUUID || !ok {
		return nil, false, nil
	}
	var u mssql.UniqueIdentifier
	if err := u.Scan(b); err != nil {
		return nil, true, err
	}
	return uuid.UUID(u), true, nil
}

// FieldType maps a database type name to a field type.
func (*Dialect) FieldType(dbType string) field.Type {
	switch t := strings.ToUpper(dbType); t {
	case "BIT":
		return field.TypeBool
	case "TINYINT", "SMALLINT":
		return field.TypeInt16
	case "INT":
		return field.TypeInt32
	case "BIGINT":
		return field.TypeInt64
	case "REAL":
		return field.TypeFloat32
	case "FLOAT":
		return field.TypeFloat64
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return field.TypeDecimal
	case "UNIQUEIDENTIFIER":
		return field.TypeUUID
	case "TIMESTAMP", "ROWVERSION":
		return field.TypeRowVersion
	case "BINARY", "VARBINARY", "IMAGE":
		return field.TypeBytes
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return field.TypeTime
	default:
		return field.TypeString
	}
}

// TableNames lists the user tables.
func (*Dialect) TableNames(ctx context.Context, q dialect.Querier) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME")
}

// TableExists reports if the table exists.
func (d *Dialect) TableExists(ctx context.Context, q dialect.Querier, table string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME = @p0", d.Arg(0, table))
}

// Columns lists the columns of a table in declaration order.
func (d *Dialect) Columns(ctx context.Context, q dialect.Querier, table string) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p0 ORDER BY ORDINAL_POSITION", d.Arg(0, table))
}

// IndexExists reports if the index exists on the table.
func (d *Dialect) IndexExists(ctx context.Context, q dialect.Querier, table, index string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM sys.indexes WHERE object_id = OBJECT_ID(QUOTENAME(@p0)) AND name = @p1",
		d.Arg(0, table), d.Arg(1, index))
}

// FieldLength returns the character length of a column. MAX columns
// report -1.
func (d *Dialect) FieldLength(ctx context.Context, q dialect.Querier, table, column string) (int, error) {
	return dialect.QueryLength(ctx, q,
		"SELECT CHARACTER_MAXIMUM_LENGTH FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p0 AND COLUMN_NAME = @p1",
		d.Arg(0, table), d.Arg(1, column))
}

// PrimaryKey returns the key column and the name of its index.
func (d *Dialect) PrimaryKey(ctx context.Context, q dialect.Querier, table string) (string, string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT c.name, i.name FROM sys.indexes i "+
			"JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id "+
			"JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id "+
			"WHERE i.object_id = OBJECT_ID(QUOTENAME(@p0)) AND i.is_primary_key = 1 ORDER BY ic.key_ordinal",
		d.Arg(0, table))
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

// IsIdentity reports if the column is an IDENTITY column.
func (d *Dialect) IsIdentity(ctx context.Context, q dialect.Querier, table, column string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM sys.identity_columns WHERE object_id = OBJECT_ID(QUOTENAME(@p0)) AND name = @p1",
		d.Arg(0, table), d.Arg(1, column))
}

// IsUniqueConstraintError reports if err is a unique key or unique index violation.
func (*Dialect) IsUniqueConstraintError(err error) bool {
	var e mssql.Error
	return errors.As(err, &e) && (e.SQLErrorNumber() == errUniqueConstraint || e.SQLErrorNumber() == errUniqueIndex)
}

// IsForeignKeyConstraintError reports if err is a reference constraint violation.
func (*Dialect) IsForeignKeyConstraintError(err error) bool {
	var e mssql.Error
	return errors.As(err, &e) && e.SQLErrorNumber() == errForeignKey
}

// OpenDB opens the data source with a driver connector.
func (*Dialect) OpenDB(dsn string) (*sql.DB, error) {
	c, err := mssql.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("dialect/mssql: %w", err)
	}
	return sql.OpenDB(c), nil
}

// StoreExists reports if the database named by the data source exists.
func (d *Dialect) StoreExists(ctx context.Context, dsn string) (bool, error) {
	var exists bool
	err := d.server(ctx, dsn, func(db *sql.DB, name string) (err error) {
		exists, err = dialect.QueryExists(ctx, db, "SELECT 1 FROM sys.databases WHERE name = @p0", d.Arg(0, name))
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

// server runs fn on a connection to the master database.
func (*Dialect) server(ctx context.Context, dsn string, fn func(*sql.DB, string) error) error {
	cfg, err := msdsn.Parse(dsn)
	if err != nil {
		return fmt.Errorf("dialect/mssql: parse dsn: %w", err)
	}
	name := cfg.Database
	if name == "" {
		return fmt.Errorf("dialect/mssql: data source names no database")
	}
	cfg.Database = "master"
	db := sql.OpenDB(mssql.NewConnectorConfig(cfg))
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("dialect/mssql: connect server: %w", err)
	}
	return fn(db, name)
}

var (
	_ dialect.Dialect              = (*Dialect)(nil)
	_ dialect.StoreManager         = (*Dialect)(nil)
	_ dialect.ValueEncoder         = (*Dialect)(nil)
	_ dialect.ValueDecoder         = (*Dialect)(nil)
	_ dialect.ConstraintClassifier = (*Dialect)(nil)
	_ dialect.Opener               = (*Dialect)(nil)
	_ dialect.IdentityReporter     = (*Dialect)(nil)
)
