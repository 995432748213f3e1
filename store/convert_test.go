package store

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sqlite"
	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

func TestConvertValue(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	at := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	version := make([]byte, 8)
	binary.BigEndian.PutUint64(version, 42)

	tests := []struct {
		name string
		typ  field.Type
		in   any
		want any
	}{
		{"bool from int64", field.TypeBool, int64(1), true},
		{"bool from string", field.TypeBool, "false", false},
		{"int from int64", field.TypeInt, int64(7), 7},
		{"int16 from float64", field.TypeInt16, float64(12), int16(12)},
		{"int32 from string", field.TypeInt32, "99", int32(99)},
		{"int64 from decimal", field.TypeInt64, decimal.NewFromInt(5), int64(5)},
		{"int from decimal text", field.TypeInt, "10.00", 10},
		{"rowversion from bytes", field.TypeRowVersion, version, int64(42)},
		{"rowversion from int64", field.TypeRowVersion, int64(3), int64(3)},
		{"float32 from float64", field.TypeFloat32, 2.5, float32(2.5)},
		{"float64 from int64", field.TypeFloat64, int64(2), float64(2)},
		{"float64 from text", field.TypeFloat64, []byte("1.25"), 1.25},
		{"decimal from text", field.TypeDecimal, "12.34", decimal.RequireFromString("12.34")},
		{"decimal from int64", field.TypeDecimal, int64(3), decimal.NewFromInt(3)},
		{"string from bytes", field.TypeString, []byte("abc"), "abc"},
		{"bytes from string", field.TypeBytes, "abc", []byte("abc")},
		{"time from text", field.TypeTime, "2024-03-01 12:30:00.0000005+00:00", at},
		{"time from RFC3339", field.TypeTime, "2024-03-01T14:30:00.0000005+02:00", at},
		{"uuid from 16 bytes", field.TypeUUID, id[:], id},
		{"uuid from text", field.TypeUUID, id.String(), id},
		{"duration from ticks", field.TypeDuration, int64(time.Minute), time.Minute},
		{"duration from epoch time", field.TypeDuration, dialect.Epoch.Add(time.Hour), time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertValue(tt.typ, tt.in, dialect.DurationTicks)
			require.NoError(t, err)
			assert.True(t, valuesEqual(got, tt.want), "got %#v, want %#v", got, tt.want)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestConvertValueEpoch(t *testing.T) {
	got, err := convertValue(field.TypeDuration, "1900-01-01 02:00:00", dialect.DurationEpoch)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got)
}

func TestConvertValueErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  field.Type
		in   any
	}{
		{"int16 overflow", field.TypeInt16, int64(math.MaxInt16 + 1)},
		{"int32 overflow", field.TypeInt32, int64(math.MinInt32 - 1)},
		{"fractional int", field.TypeInt, 1.5},
		{"uint64 overflow", field.TypeInt64, uint64(math.MaxUint64)},
		{"float32 overflow", field.TypeFloat32, math.MaxFloat64},
		{"int from text", field.TypeInt, "seven"},
		{"bool from text", field.TypeBool, "maybe"},
		{"uuid from int", field.TypeUUID, 7},
		{"time from int", field.TypeTime, int64(7)},
		{"string from int", field.TypeString, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := convertValue(tt.typ, tt.in, dialect.DurationTicks)
			require.Error(t, err)
		})
	}
}

func TestDecodeEncode(t *testing.T) {
	s := New(sqlite.New(), openMemory(t))
	defer s.Close()
	e, err := schema.FromEntity(&fixture.Customer{})
	require.NoError(t, err)
	name, _ := e.Field("Name")
	email, _ := e.Field("Email")
	settings, _ := e.Field("Settings")

	v, err := s.decode(e, name, nil)
	require.NoError(t, err)
	assert.Equal(t, "", v)
	v, err = s.decode(e, email, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = s.decode(e, name, 3.5)
	require.ErrorIs(t, err, strata.ErrConversion)
	assert.Contains(t, err.Error(), "Customer.Name")

	data, err := s.encode(e, settings, &fixture.Settings{Theme: "light"})
	require.NoError(t, err)
	require.IsType(t, []byte{}, data)
	back, err := s.decode(e, settings, data)
	require.NoError(t, err)
	assert.Equal(t, &fixture.Settings{Theme: "light"}, back)

	b, err := schema.FromEntity(&fixture.Book{})
	require.NoError(t, err)
	readTime, _ := b.Field("ReadTime")
	d, err := s.encode(b, readTime, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(time.Second), d)

	local := time.Date(2024, 1, 1, 8, 0, 0, 0, time.FixedZone("X", 3600))
	o, err := schema.FromEntity(&fixture.Order{})
	require.NoError(t, err)
	placed, _ := o.Field("PlacedAt")
	enc, err := s.encode(o, placed, local)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, enc.(time.Time).Location())
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual([]byte{1}, []byte{1}))
	assert.False(t, valuesEqual([]byte{1}, "x"))
	assert.True(t, valuesEqual(decimal.RequireFromString("1.50"), decimal.RequireFromString("1.5")))
	now := time.Now()
	assert.True(t, valuesEqual(now, now.UTC()))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(1, int64(1)))
}

func TestMapKey(t *testing.T) {
	assert.Equal(t, mapKey(decimal.RequireFromString("2")), mapKey(decimal.NewFromInt(2)))
	assert.Equal(t, "ab", mapKey([]byte("ab")))
	assert.Equal(t, 3, mapKey(3))
}
