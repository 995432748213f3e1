package dialect_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

type ansi struct {
	dialect.Base
}

func newANSI() ansi {
	b := dialect.NewBase("ansi", "ansi", "LIMIT")
	b.BoolAsInt = true
	return ansi{Base: b}
}

func (ansi) Quote(s string) string       { return `"` + s + `"` }
func (ansi) Placeholder(i int) string    { return fmt.Sprintf("$%d", i+1) }
func (ansi) Arg(_ int, v any) any        { return v }
func (ansi) FieldType(string) field.Type { return field.TypeString }
func (ansi) PrimaryKeyClause(identity bool) string {
	if identity {
		return "PRIMARY KEY AUTOINCREMENT"
	}
	return "PRIMARY KEY"
}

func (a ansi) ColumnType(f *field.Descriptor) (string, error) {
	if t, ok := a.Override(f); ok {
		return t, nil
	}
	switch f.Type {
	case field.TypeInt:
		return "INTEGER", nil
	case field.TypeString:
		return "VARCHAR(20)", nil
	case field.TypeBool:
		return "BOOLEAN", nil
	case field.TypeTime:
		return "TIMESTAMP", nil
	case field.TypeRowVersion:
		return "BIGINT", nil
	}
	return "", dialect.UnsupportedType("ansi", f)
}

func (ansi) TableNames(context.Context, dialect.Querier) ([]string, error)      { return nil, nil }
func (ansi) TableExists(context.Context, dialect.Querier, string) (bool, error) { return false, nil }
func (ansi) Columns(context.Context, dialect.Querier, string) ([]string, error) { return nil, nil }
func (ansi) IndexExists(context.Context, dialect.Querier, string, string) (bool, error) {
	return false, nil
}
func (ansi) FieldLength(context.Context, dialect.Querier, string, string) (int, error) {
	return -1, nil
}
func (ansi) PrimaryKey(context.Context, dialect.Querier, string) (string, string, error) {
	return "", "", nil
}

var _ dialect.Dialect = ansi{}

func TestBase(t *testing.T) {
	t.Parallel()

	d := newANSI()
	assert.Equal(t, "ansi", d.Name())
	assert.Equal(t, "ansi", d.Driver())
	assert.True(t, d.IsReserved("select"))
	assert.True(t, d.IsReserved("Order"))
	assert.True(t, d.IsReserved("limit"))
	assert.False(t, d.IsReserved("Customer"))
	assert.Equal(t, "CURRENT_TIMESTAMP", d.CurrentTimestamp())
	assert.Equal(t, `ALTER TABLE "t" ADD COLUMN "c" INTEGER`, d.AddColumn(`"t"`, `"c" INTEGER`))
	assert.Equal(t, `TRUNCATE TABLE "t"`, d.Truncate(`"t"`))
	out, ret := d.Returning(`"ID"`)
	assert.Empty(t, out)
	assert.Empty(t, ret)
	order, clause := d.LimitOffset(10, 20)
	assert.Empty(t, order)
	assert.Equal(t, "LIMIT 10 OFFSET 20", clause)
	assert.Empty(t, d.IndexHint("idx"))
	assert.Equal(t, dialect.DurationTicks, d.Durations())
	assert.False(t, d.RowVersionManaged())
}

func TestLiteral(t *testing.T) {
	t.Parallel()

	d := newANSI()
	id := uuid.MustParse("8f1c6c9e-4f4a-4c1e-9d38-6f0e7d1b2a3c")
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{true, "1"},
		{false, "0"},
		{"it's", "'it''s'"},
		{`a\b`, `'a\b'`},
		{42, "42"},
		{int16(-3), "-3"},
		{int32(7), "7"},
		{int64(9), "9"},
		{float32(1.5), "1.5"},
		{2.25, "2.25"},
		{decimal.RequireFromString("10.50"), "10.5"},
		{time.Second, "1000000000"},
		{time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), "'2024-05-06 07:08:09'"},
		{id, "'" + id.String() + "'"},
		{[]byte{0xde, 0xad}, "X'DEAD'"},
	}
	for _, tt := range tests {
		got, err := d.Literal(tt.in)
		require.NoError(t, err, "%T", tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := d.Literal(struct{}{})
	assert.Error(t, err)

	b := dialect.NewBase("mysql", "mysql")
	b.EscapeBackslash = true
	got, err := b.Literal(`a\b'`)
	require.NoError(t, err)
	assert.Equal(t, `'a\\b'''`, got)
	got, err = b.Literal(true)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", got)
}

func TestColumnDefinition(t *testing.T) {
	t.Parallel()

	d := newANSI()
	tests := []struct {
		name     string
		field    *field.Descriptor
		identity bool
		want     string
	}{
		{"identity", field.Int("ID").PrimaryKey().Descriptor(), true, `"ID" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT`},
		{"key", field.String("Code").PrimaryKey().Descriptor(), false, `"Code" VARCHAR(20) NOT NULL PRIMARY KEY`},
		{"nullable", field.String("Email").Nullable().Descriptor(), false, `"Email" VARCHAR(20) NULL`},
		{"unique", field.String("Name").Unique().Descriptor(), false, `"Name" VARCHAR(20) NOT NULL UNIQUE DEFAULT ''`},
		{"default", field.Int("Qty").Default(5).Descriptor(), false, `"Qty" INTEGER NOT NULL DEFAULT 5`},
		{"zero", field.Bool("Active").Descriptor(), false, `"Active" BOOLEAN NOT NULL DEFAULT 0`},
		{"now", field.Time("At").DefaultNow().Descriptor(), false, `"At" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP`},
		{"time", field.Time("At").Descriptor(), false, `"At" TIMESTAMP NOT NULL`},
		{"override", field.String("Code").SchemaType(map[string]string{"ansi": "CHAR(3)"}).Descriptor(), false, `"Code" CHAR(3) NOT NULL DEFAULT ''`},
		{"rowversion", field.RowVersion("V").Descriptor(), false, `"V" BIGINT NOT NULL`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dialect.ColumnDefinition(d, tt.field, tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := dialect.ColumnDefinition(d, field.Float64("F").Descriptor(), false)
	assert.ErrorContains(t, err, "unsupported type float64")
}

func TestIndexName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ORM_IDX_Customer_Name_ASC", dialect.IndexName("Customer", "Name", field.Ascending))
	assert.Equal(t, "ORM_IDX_Orders_InvoiceNumber_DESC", dialect.IndexName("Orders", "InvoiceNumber", field.Descending))
}

func TestSizedType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50, dialect.SizedType("VARCHAR(50)"))
	assert.Equal(t, 12, dialect.SizedType("decimal(12, 2)"))
	assert.Equal(t, -1, dialect.SizedType("TEXT"))
	assert.Equal(t, -1, dialect.SizedType("VARCHAR(max)"))
}

func TestQueryHelpers(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery("SELECT name FROM tables").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Customer").AddRow("Orders"))
	names, err := dialect.QueryStrings(ctx, db, "SELECT name FROM tables")
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer", "Orders"}, names)

	mock.ExpectQuery("SELECT 1 FROM tables").WithArgs("Nope").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	ok, err := dialect.QueryExists(ctx, db, "SELECT 1 FROM tables WHERE name = ?", "Nope")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery("SELECT len").WillReturnRows(sqlmock.NewRows([]string{"len"}).AddRow(int64(50)))
	n, err := dialect.QueryLength(ctx, db, "SELECT len")
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	mock.ExpectQuery("SELECT len").WillReturnRows(sqlmock.NewRows([]string{"len"}).AddRow(nil))
	n, err = dialect.QueryLength(ctx, db, "SELECT len")
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	require.NoError(t, mock.ExpectationsWereMet())
}
