package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sqlite"
	"github.com/syssam/strata/schema/field"
)

func TestDialect(t *testing.T) {
	t.Parallel()

	d := sqlite.New()
	assert.Equal(t, dialect.SQLite, d.Name())
	assert.Equal(t, sqlite.DriverName, d.Driver())
	assert.Equal(t, `"Customer"`, d.Quote("Customer"))
	assert.Equal(t, `"a""b"`, d.Quote(`a"b`))
	assert.Equal(t, "@p3", d.Placeholder(3))
	assert.Equal(t, sql.Named("p1", 5), d.Arg(1, 5))
	assert.Equal(t, `DELETE FROM "T"`, d.Truncate(`"T"`))
	assert.Equal(t, `INDEXED BY "ORM_IDX_T_A_ASC"`, d.IndexHint("ORM_IDX_T_A_ASC"))
	assert.Empty(t, d.IndexHint(""))
	assert.Equal(t, "PRIMARY KEY AUTOINCREMENT", d.PrimaryKeyClause(true))
	assert.True(t, d.IsReserved("pragma"))
	assert.True(t, d.IsReserved("ORDER"))
	assert.Equal(t, `CAST("Total" AS NUMERIC)`, d.Comparable(field.TypeDecimal, `"Total"`))
	assert.Equal(t, "CAST(@p0 AS NUMERIC)", d.Comparable(field.TypeDecimal, "@p0"))
	assert.Equal(t, `"ID"`, d.Comparable(field.TypeInt64, `"ID"`))
	assert.Equal(t, `"At"`, d.Comparable(field.TypeTime, `"At"`))

	lit, err := d.Literal(true)
	require.NoError(t, err)
	assert.Equal(t, "1", lit)
}

func TestColumnType(t *testing.T) {
	t.Parallel()

	d := sqlite.New()
	tests := []struct {
		field *field.Descriptor
		want  string
	}{
		{field.Bool("a").Descriptor(), "BOOLEAN"},
		{field.Int32("a").Descriptor(), "INTEGER"},
		{field.Duration("a").Descriptor(), "INTEGER"},
		{field.RowVersion("a").Descriptor(), "INTEGER"},
		{field.Float64("a").Descriptor(), "REAL"},
		{field.Decimal("a").Descriptor(), "TEXT"},
		{field.UUID("a").Descriptor(), "TEXT"},
		{field.String("a").Descriptor(), "TEXT"},
		{field.String("a").MaxLen(30).Descriptor(), "VARCHAR(30)"},
		{field.Bytes("a").Descriptor(), "BLOB"},
		{field.Time("a").Descriptor(), "DATETIME"},
		{field.String("a").SchemaType(map[string]string{dialect.SQLite: "CLOB"}).Descriptor(), "CLOB"},
	}
	for _, tt := range tests {
		got, err := d.ColumnType(tt.field)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.field.Type.String())
	}
}

func TestFieldType(t *testing.T) {
	t.Parallel()

	d := sqlite.New()
	assert.Equal(t, field.TypeInt64, d.FieldType("INTEGER"))
	assert.Equal(t, field.TypeInt64, d.FieldType("bigint"))
	assert.Equal(t, field.TypeString, d.FieldType("VARCHAR(20)"))
	assert.Equal(t, field.TypeBytes, d.FieldType(""))
	assert.Equal(t, field.TypeFloat64, d.FieldType("DOUBLE"))
	assert.Equal(t, field.TypeTime, d.FieldType("DATETIME"))
	assert.Equal(t, field.TypeBool, d.FieldType("BOOLEAN"))
	assert.Equal(t, field.TypeDecimal, d.FieldType("DECIMAL(10,2)"))
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := sql.Open(sqlite.DriverName, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	defer db.Close()
	d := sqlite.New()

	_, err = db.ExecContext(ctx, `CREATE TABLE "Customer" ("ID" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, "Name" VARCHAR(50) NOT NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE "Tag" ("Code" TEXT NOT NULL PRIMARY KEY, "Label" TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE INDEX "ORM_IDX_Customer_Name_ASC" ON "Customer" ("Name")`)
	require.NoError(t, err)

	names, err := d.TableNames(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer", "Tag"}, names)

	ok, err := d.TableExists(ctx, db, "Customer")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.TableExists(ctx, db, "Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	cols, err := d.Columns(ctx, db, "Customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name"}, cols)

	ok, err = d.IndexExists(ctx, db, "Customer", "ORM_IDX_Customer_Name_ASC")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.IndexExists(ctx, db, "Customer", "ORM_IDX_Customer_Name_DESC")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := d.FieldLength(ctx, db, "Customer", "Name")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	n, err = d.FieldLength(ctx, db, "Customer", "ID")
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	col, idx, err := d.PrimaryKey(ctx, db, "Customer")
	require.NoError(t, err)
	assert.Equal(t, "ID", col)
	assert.Empty(t, idx)

	col, idx, err = d.PrimaryKey(ctx, db, "Tag")
	require.NoError(t, err)
	assert.Equal(t, "Code", col)
	assert.Equal(t, "sqlite_autoindex_Tag_1", idx)

	_, err = db.ExecContext(ctx, `CREATE TABLE "Ticket" ("No" INTEGER PRIMARY KEY, "Title" TEXT)`)
	require.NoError(t, err)
	for _, tt := range []struct {
		table, column string
		want          bool
	}{
		{"Customer", "ID", true},
		{"Ticket", "No", false},
		{"Tag", "Code", false},
		{"Missing", "ID", false},
	} {
		ok, err := d.IsIdentity(ctx, db, tt.table, tt.column)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s.%s", tt.table, tt.column)
	}
}

func TestStoreManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := sqlite.New()
	path := filepath.Join(t.TempDir(), "nested", "shop.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)"

	ok, err := d.StoreExists(ctx, dsn)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.CreateStore(ctx, dsn))
	ok, err = d.StoreExists(ctx, dsn)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, d.CreateStore(ctx, dsn))

	require.NoError(t, d.DeleteStore(ctx, dsn))
	ok, err = d.StoreExists(ctx, dsn)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.StoreExists(ctx, ":memory:")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, d.CreateStore(ctx, "file::memory:?cache=shared"))
}

func TestFilePath(t *testing.T) {
	t.Parallel()

	p, ok := sqlite.FilePath("file:/tmp/a.db?cache=shared")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/a.db", p)
	p, ok = sqlite.FilePath("data/b.db")
	assert.True(t, ok)
	assert.Equal(t, "data/b.db", p)
	_, ok = sqlite.FilePath("file:test?mode=memory")
	assert.False(t, ok)
	_, ok = sqlite.FilePath(":memory:")
	assert.False(t, ok)
}

func TestWithBusyTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_pragma=busy_timeout(5000)"},
		{"file:shop.db", "file:shop.db?_pragma=busy_timeout(5000)"},
		{"file:shop.db?_pragma=foreign_keys(1)", "file:shop.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:shop.db?_pragma=busy_timeout(100)", "file:shop.db?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqlite.WithBusyTimeout(tt.dsn, sqlite.BusyTimeout), tt.dsn)
	}
}

func TestOpenDBBusyTimeout(t *testing.T) {
	t.Parallel()

	db, err := dialect.Open(sqlite.New(), "file:"+filepath.Join(t.TempDir(), "busy.db"))
	require.NoError(t, err)
	defer db.Close()
	var ms int64
	require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&ms))
	assert.Equal(t, sqlite.BusyTimeout.Milliseconds(), ms)
}
