// Package mysql implements the MySQL and MariaDB dialect over
// github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

// DriverName is the database/sql name of the driver.
const DriverName = "mysql"

// Dialect is the MySQL dialect.
type Dialect struct {
	dialect.Base
}

// New returns the MySQL dialect.
func New() *Dialect {
	b := dialect.NewBase(dialect.MySQL, DriverName,
		"DATABASES", "FORCE", "IGNORE", "INDEX", "KEYS", "LIMIT", "LOCK", "OFFSET", "RANK", "REGEXP", "REPLACE", "SHOW", "STATUS", "USE")
	b.BoolAsInt = true
	b.EscapeBackslash = true
	return &Dialect{Base: b}
}

// Quote quotes an identifier with backticks.
func (*Dialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// Placeholder returns ?.
func (*Dialect) Placeholder(int) string { return "?" }

// Arg returns v unchanged. Parameters bind by position.
func (*Dialect) Arg(_ int, v any) any { return v }

// ColumnType returns the column type of a field.
func (d *Dialect) ColumnType(f *field.Descriptor) (string, error) {
	if t, ok := d.Override(f); ok {
		return t, nil
	}
	switch f.Type {
	case field.TypeBool:
		return "TINYINT(1)", nil
	case field.TypeInt, field.TypeInt32:
		return "INT", nil
	case field.TypeInt16:
		return "SMALLINT", nil
	case field.TypeInt64, field.TypeDuration, field.TypeRowVersion:
		return "BIGINT", nil
	case field.TypeFloat32:
		return "FLOAT", nil
	case field.TypeFloat64:
		return "DOUBLE", nil
	case field.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", f.Precision, f.Scale), nil
	case field.TypeString:
		switch {
		case f.Size > 0:
			return fmt.Sprintf("VARCHAR(%d)", f.Size), nil
		case f.PrimaryKey || f.Unique || f.SearchOrder != field.NotSearchable:
			// Indexed columns need a bounded length.
			return "VARCHAR(255)", nil
		}
		return "LONGTEXT", nil
	case field.TypeBytes:
		if f.Size > 0 {
			return fmt.Sprintf("VARBINARY(%d)", f.Size), nil
		}
		return "LONGBLOB", nil
	case field.TypeObject:
		return "LONGBLOB", nil
	case field.TypeTime:
		return "DATETIME(6)", nil
	case field.TypeUUID:
		return "BINARY(16)", nil
	}
	return "", dialect.UnsupportedType(dialect.MySQL, f)
}

// PrimaryKeyClause returns the key attributes.
func (*Dialect) PrimaryKeyClause(identity bool) string {
	if identity {
		return "AUTO_INCREMENT PRIMARY KEY"
	}
	return "PRIMARY KEY"
}

// CurrentTimestamp returns CURRENT_TIMESTAMP(6), matching DATETIME(6) columns.
func (*Dialect) CurrentTimestamp() string { return "CURRENT_TIMESTAMP(6)" }

// Literal renders a default value. UUIDs are stored as 16 raw bytes.
func (d *Dialect) Literal(v any) (string, error) {
	if u, ok := v.(uuid.UUID); ok {
		return d.Base.Literal(u[:])
	}
	return d.Base.Literal(v)
}

// IndexHint returns a FORCE INDEX clause.
func (d *Dialect) IndexHint(index string) string {
	if index == "" {
		return ""
	}
	return "FORCE INDEX (" + d.Quote(index) + ")"
}

// EncodeValue binds UUIDs as 16 raw bytes.
func (*Dialect) EncodeValue(t field.Type, v any) (any, bool) {
	if t != field.TypeUUID {
		return nil, false
	}
	switch u := v.(type) {
	case uuid.UUID:
		return u[:], true
	case *uuid.UUID:
		if u == nil {
			return nil, true
		}
		return u[:], true
	}
	return nil, false
}

// DecodeValue reads booleans sent as integers or text.
func (*Dialect) DecodeValue(t field.Type, v any) (any, bool, error) {
	if t != field.TypeBool {
		return nil, false, nil
	}
	switch b := v.(type) {
	case int64:
		return b != 0, true, nil
	case []byte:
		return len(b) > 0 && b[0] != '0', true, nil
	}
	return nil, false, nil
}

// FieldType maps a database type name to a field type.
func (*Dialect) FieldType(dbType string) field.Type {
	t := strings.ToUpper(dbType)
	switch {
	case t == "TINYINT(1)", t == "BOOL", t == "BOOLEAN", t == "BIT":
		return field.TypeBool
	case strings.HasPrefix(t, "TINYINT"), strings.HasPrefix(t, "SMALLINT"):
		return field.TypeInt16
	case strings.HasPrefix(t, "BIGINT"):
		return field.TypeInt64
	case strings.Contains(t, "INT"):
		return field.TypeInt32
	case strings.HasPrefix(t, "FLOAT"):
		return field.TypeFloat32
	case strings.HasPrefix(t, "DOUBLE"), strings.HasPrefix(t, "REAL"):
		return field.TypeFloat64
	case strings.HasPrefix(t, "DECIMAL"), strings.HasPrefix(t, "NUMERIC"):
		return field.TypeDecimal
	case t == "BINARY(16)":
		return field.TypeUUID
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BINARY"):
		return field.TypeBytes
	case strings.HasPrefix(t, "DATE"), strings.HasPrefix(t, "TIMESTAMP"):
		return field.TypeTime
	default:
		return field.TypeString
	}
}

// TableNames lists the tables of the current database.
func (*Dialect) TableNames(ctx context.Context, q dialect.Querier) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME")
}

// TableExists reports if the table exists in the current database.
func (*Dialect) TableExists(ctx context.Context, q dialect.Querier, table string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?", table)
}

// Columns lists the columns of a table in declaration order.
func (*Dialect) Columns(ctx context.Context, q dialect.Querier, table string) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", table)
}

// IndexExists reports if the index exists on the table.
func (*Dialect) IndexExists(ctx context.Context, q dialect.Querier, table, index string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM INFORMATION_SCHEMA.STATISTICS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME = ?", table, index)
}

// FieldLength returns the character length of a column.
func (*Dialect) FieldLength(ctx context.Context, q dialect.Querier, table, column string) (int, error) {
	return dialect.QueryLength(ctx, q,
		"SELECT CHARACTER_MAXIMUM_LENGTH FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?", table, column)
}

// PrimaryKey returns the key column. MySQL always names the key index PRIMARY.
func (*Dialect) PrimaryKey(ctx context.Context, q dialect.Querier, table string) (string, string, error) {
	cols, err := dialect.QueryStrings(ctx, q,
		"SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION", table)
	if err != nil || len(cols) == 0 {
		return "", "", err
	}
	return cols[0], "PRIMARY", nil
}

// IsIdentity reports if the column is AUTO_INCREMENT.
func (*Dialect) IsIdentity(ctx context.Context, q dialect.Querier, table, column string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ? AND EXTRA LIKE '%auto_increment%'", table, column)
}

// OpenDB opens the data source with the settings the store relies on:
// DATETIME values parse into UTC time.Time values.
func (*Dialect) OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	c, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("dialect/mysql: %w", err)
	}
	return sql.OpenDB(c), nil
}

// ParseDSN parses a data source and forces time parsing in UTC.
func ParseDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("dialect/mysql: parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg, nil
}

// StoreExists reports if the database named by the data source exists.
func (d *Dialect) StoreExists(ctx context.Context, dsn string) (bool, error) {
	var exists bool
	err := d.server(ctx, dsn, func(db *sql.DB, name string) (err error) {
		exists, err = dialect.QueryExists(ctx, db, "SELECT 1 FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", name)
		return err
	})
	return exists, err
}

// CreateStore creates the database named by the data source.
func (d *Dialect) CreateStore(ctx context.Context, dsn string) error {
	return d.server(ctx, dsn, func(db *sql.DB, name string) error {
		_, err := db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+d.Quote(name))
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

// server runs fn on a connection to the server without a default database.
func (d *Dialect) server(ctx context.Context, dsn string, fn func(*sql.DB, string) error) error {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return err
	}
	name := cfg.DBName
	if name == "" {
		return fmt.Errorf("dialect/mysql: data source names no database")
	}
	cfg = cfg.Clone()
	cfg.DBName = ""
	c, err := mysql.NewConnector(cfg)
	if err != nil {
		return fmt.Errorf("dialect/mysql: %w", err)
	}
	db := sql.OpenDB(c)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("dialect/mysql: connect server: %w", err)
	}
	return fn(db, name)
}

var (
	_ dialect.Dialect          = (*Dialect)(nil)
	_ dialect.StoreManager     = (*Dialect)(nil)
	_ dialect.ValueEncoder     = (*Dialect)(nil)
	_ dialect.ValueDecoder     = (*Dialect)(nil)
	_ dialect.Opener           = (*Dialect)(nil)
	_ dialect.IdentityReporter = (*Dialect)(nil)
)
