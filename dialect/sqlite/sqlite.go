// Package sqlite implements the SQLite dialect over modernc.org/sqlite,
// a cgo-free driver for embedded and file databases.
//
//	s, err := store.Open(sqlite.New(), "file:shop.db?_pragma=foreign_keys(1)")
//
// In-memory databases live as long as their connection. Use the
// Persistent connection behavior with ":memory:" data sources.
//
// Data sources without a busy_timeout pragma wait up to BusyTimeout for
// locks held by other connections instead of failing with SQLITE_BUSY.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

// DriverName is the database/sql name of the modernc driver.
const DriverName = "sqlite"

// BusyTimeout is the default lock wait of modernc connections.
const BusyTimeout = 5 * time.Second

// Dialect is the SQLite dialect.
type Dialect struct {
	dialect.Base
}

// New returns the SQLite dialect for the modernc driver.
func New() *Dialect { return NewDriver(DriverName) }

// NewDriver returns the SQLite dialect bound to another registered
// SQLite driver.
func NewDriver(driver string) *Dialect {
	b := dialect.NewBase(dialect.SQLite, driver,
		"AUTOINCREMENT", "GLOB", "INDEXED", "LIMIT", "OFFSET", "PRAGMA", "REGEXP", "REPLACE", "ROWID", "VACUUM")
	b.BoolAsInt = true
	return &Dialect{Base: b}
}

// Quote quotes an identifier with double quotes.
func (*Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Placeholder returns @p<i>.
func (*Dialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

// Arg binds v to the named parameter p<i>.
func (*Dialect) Arg(i int, v any) any { return sql.Named(fmt.Sprintf("p%d", i), v) }

// ColumnType returns the declared type of a field. Declared types keep
// the column affinity that round-trips every field type exactly.
func (d *Dialect) ColumnType(f *field.Descriptor) (string, error) {
	if t, ok := d.Override(f); ok {
		return t, nil
	}
	switch f.Type {
	case field.TypeBool:
		return "BOOLEAN", nil
	case field.TypeInt, field.TypeInt16, field.TypeInt32, field.TypeInt64, field.TypeDuration, field.TypeRowVersion:
		return "INTEGER", nil
	case field.TypeFloat32, field.TypeFloat64:
		return "REAL", nil
	case field.TypeDecimal, field.TypeUUID:
		return "TEXT", nil
	case field.TypeString:
		if f.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Size), nil
		}
		return "TEXT", nil
	case field.TypeBytes, field.TypeObject:
		return "BLOB", nil
	case field.TypeTime:
		return "DATETIME", nil
	}
	return "", dialect.UnsupportedType(dialect.SQLite, f)
}

// PrimaryKeyClause returns the key attributes. Identity keys are rowid
// aliases declared with AUTOINCREMENT.
func (*Dialect) PrimaryKeyClause(identity bool) string {
	if identity {
		return "PRIMARY KEY AUTOINCREMENT"
	}
	return "PRIMARY KEY"
}

// Comparable casts decimals to NUMERIC. Decimals are stored as text to
// keep their precision, and text compares character by character.
func (*Dialect) Comparable(t field.Type, expr string) string {
	if t == field.TypeDecimal {
		return "CAST(" + expr + " AS NUMERIC)"
	}
	return expr
}

// Truncate returns a DELETE statement. SQLite has no TRUNCATE.
func (*Dialect) Truncate(table string) string { return "DELETE FROM " + table }

// IndexHint returns an INDEXED BY clause.
func (d *Dialect) IndexHint(index string) string {
	if index == "" {
		return ""
	}
	return "INDEXED BY " + d.Quote(index)
}

// FieldType maps a declared column type to a field type, following the
// SQLite affinity rules.
func (*Dialect) FieldType(dbType string) field.Type {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "BOOL"):
		return field.TypeBool
	case strings.Contains(t, "INT"):
		return field.TypeInt64
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return field.TypeString
	case t == "", strings.Contains(t, "BLOB"):
		return field.TypeBytes
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return field.TypeFloat64
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return field.TypeTime
	case strings.Contains(t, "DECIMAL"):
		return field.TypeDecimal
	default:
		return field.TypeFloat64
	}
}

// TableNames lists the user tables.
func (*Dialect) TableNames(ctx context.Context, q dialect.Querier) ([]string, error) {
	return dialect.QueryStrings(ctx, q,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

// TableExists reports if the table exists.
func (d *Dialect) TableExists(ctx context.Context, q dialect.Querier, table string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = @p0", d.Arg(0, table))
}

// Columns lists the columns of a table in declaration order.
func (d *Dialect) Columns(ctx context.Context, q dialect.Querier, table string) ([]string, error) {
	return dialect.QueryStrings(ctx, q, "SELECT name FROM pragma_table_info(@p0) ORDER BY cid", d.Arg(0, table))
}

// IndexExists reports if the index exists on the table.
func (d *Dialect) IndexExists(ctx context.Context, q dialect.Querier, table, index string) (bool, error) {
	return dialect.QueryExists(ctx, q,
		"SELECT 1 FROM sqlite_master WHERE type = 'index' AND tbl_name = @p0 AND name = @p1",
		d.Arg(0, table), d.Arg(1, index))
}

// FieldLength returns the length declared by a character column type.
func (d *Dialect) FieldLength(ctx context.Context, q dialect.Querier, table, column string) (int, error) {
	types, err := dialect.QueryStrings(ctx, q,
		"SELECT type FROM pragma_table_info(@p0) WHERE name = @p1", d.Arg(0, table), d.Arg(1, column))
	if err != nil || len(types) == 0 {
		return -1, err
	}
	if !strings.Contains(strings.ToUpper(types[0]), "CHAR") {
		return -1, nil
	}
	return dialect.SizedType(types[0]), nil
}

// PrimaryKey returns the key column and its automatic index. Rowid alias
// keys have no index.
func (d *Dialect) PrimaryKey(ctx context.Context, q dialect.Querier, table string) (string, string, error) {
	cols, err := dialect.QueryStrings(ctx, q,
		"SELECT name FROM pragma_table_info(@p0) WHERE pk = 1", d.Arg(0, table))
	if err != nil || len(cols) == 0 {
		return "", "", err
	}
	idx, err := dialect.QueryStrings(ctx, q,
		"SELECT name FROM pragma_index_list(@p0) WHERE origin = 'pk'", d.Arg(0, table))
	if err != nil {
		return "", "", err
	}
	if len(idx) == 0 {
		return cols[0], "", nil
	}
	return cols[0], idx[0], nil
}

// IsIdentity reports if the table declares AUTOINCREMENT on an integer
// key. Plain INTEGER PRIMARY KEY columns keep the values callers assign.
func (d *Dialect) IsIdentity(ctx context.Context, q dialect.Querier, table, column string) (bool, error) {
	ddl, err := dialect.QueryStrings(ctx, q,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = @p0", d.Arg(0, table))
	if err != nil || len(ddl) == 0 {
		return false, err
	}
	types, err := dialect.QueryStrings(ctx, q,
		"SELECT type FROM pragma_table_info(@p0) WHERE name = @p1 AND pk = 1", d.Arg(0, table), d.Arg(1, column))
	if err != nil || len(types) == 0 {
		return false, err
	}
	return strings.Contains(strings.ToUpper(types[0]), "INT") &&
		strings.Contains(strings.ToUpper(ddl[0]), "AUTOINCREMENT"), nil
}

// StoreExists reports if the database file exists. In-memory databases
// always exist.
func (*Dialect) StoreExists(_ context.Context, dsn string) (bool, error) {
	path, ok := FilePath(dsn)
	if !ok {
		return true, nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// CreateStore creates an empty database file and its directory.
func (*Dialect) CreateStore(_ context.Context, dsn string) error {
	path, ok := FilePath(dsn)
	if !ok {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dialect/sqlite: create store: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("dialect/sqlite: create store: %w", err)
	}
	return f.Close()
}

// DeleteStore removes the database file with its journal files.
func (*Dialect) DeleteStore(_ context.Context, dsn string) error {
	path, ok := FilePath(dsn)
	if !ok {
		return nil
	}
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("dialect/sqlite: delete store: %w", err)
	}
	return nil
}

// OpenDB opens the data source, adding the default busy timeout for the
// modernc driver. Other drivers, such as mattn/go-sqlite3, configure
// their own.
func (d *Dialect) OpenDB(dsn string) (*sql.DB, error) {
	if d.Driver() == DriverName {
		dsn = WithBusyTimeout(dsn, BusyTimeout)
	}
	return sql.Open(d.Driver(), dsn)
}

// WithBusyTimeout adds a busy_timeout pragma to a modernc data source
// that has none.
func WithBusyTimeout(dsn string, timeout time.Duration) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, timeout.Milliseconds())
}

// FilePath extracts the database file of a data source. ok is false for
// in-memory databases.
func FilePath(dsn string) (path string, ok bool) {
	path = strings.TrimPrefix(dsn, "file:")
	query := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i+1:]
	}
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return "", false
	}
	return path, true
}

var (
	_ dialect.Dialect          = (*Dialect)(nil)
	_ dialect.StoreManager     = (*Dialect)(nil)
	_ dialect.IdentityReporter = (*Dialect)(nil)
	_ dialect.Opener           = (*Dialect)(nil)
)
