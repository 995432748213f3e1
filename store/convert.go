package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// decode converts a value read from the database to the Go type of the
// field. NULL becomes nil for nullable fields and the zero value
// otherwise.
func (s *Store) decode(e *schema.Entity, f *field.Descriptor, v any) (any, error) {
	if v == nil {
		if f.Nullable || f.Type == field.TypeObject {
			return nil, nil
		}
		return zeroValue(f.Type), nil
	}
	if dec, ok := s.dialect.(dialect.ValueDecoder); ok {
		out, ok, err := dec.DecodeValue(f.Type, v)
		if err != nil {
			return nil, conversionError(e, f, v, err)
		}
		if ok {
			return out, nil
		}
	}
	if f.Type == field.TypeObject {
		return s.deserialize(e, f, v)
	}
	out, err := convertValue(f.Type, v, s.dialect.Durations())
	if err != nil {
		return nil, conversionError(e, f, v, err)
	}
	return out, nil
}

// encode converts a field value to the value bound to a statement.
func (s *Store) encode(e *schema.Entity, f *field.Descriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if enc, ok := s.dialect.(dialect.ValueEncoder); ok {
		if out, ok := enc.EncodeValue(f.Type, v); ok {
			return out, nil
		}
	}
	switch f.Type {
	case field.TypeObject:
		return s.serialize(e, f, v)
	case field.TypeDuration:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, conversionError(e, f, v, fmt.Errorf("expect time.Duration"))
		}
		if s.dialect.Durations() == dialect.DurationEpoch {
			return dialect.Epoch.Add(d), nil
		}
		return int64(d), nil
	case field.TypeTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	}
	return v, nil
}

// coerce converts a caller-supplied value, such as a filter operand or a
// foreign key, to the Go type of the field.
func (s *Store) coerce(e *schema.Entity, f *field.Descriptor, v any) (any, error) {
	if v == nil || f.Type == field.TypeObject {
		return v, nil
	}
	out, err := convertValue(f.Type, v, s.dialect.Durations())
	if err != nil {
		return nil, conversionError(e, f, v, err)
	}
	return out, nil
}

func (s *Store) serialize(e *schema.Entity, f *field.Descriptor, v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case f.Codec != nil:
		data, err = f.Codec.Marshal(v)
	case e.Codec != nil:
		data, err = e.Codec.Serialize(f.Name, v)
	default:
		return nil, strata.NewConfigError(strata.ErrMissingSerializer, e.Name, f.Name, "")
	}
	if err != nil {
		return nil, fmt.Errorf("store: serialize %s.%s: %w", e.Name, f.Name, err)
	}
	return data, nil
}

func (s *Store) deserialize(e *schema.Entity, f *field.Descriptor, v any) (any, error) {
	var data []byte
	switch v := v.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, conversionError(e, f, v, fmt.Errorf("object fields are stored as bytes"))
	}
	switch {
	case f.Codec != nil:
		out := f.New()
		if err := f.Codec.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("store: deserialize %s.%s: %w", e.Name, f.Name, err)
		}
		return out, nil
	case e.Codec != nil:
		out, err := e.Codec.Deserialize(f.Name, data)
		if err != nil {
			return nil, fmt.Errorf("store: deserialize %s.%s: %w", e.Name, f.Name, err)
		}
		return out, nil
	default:
		// Dynamic entities keep the raw bytes.
		return data, nil
	}
}

func conversionError(e *schema.Entity, f *field.Descriptor, v any, err error) error {
	return fmt.Errorf("%w: %s.%s: %T to %s: %v", strata.ErrConversion, e.Name, f.Name, v, f.Type, err)
}

// convertValue applies the conversion rules from a driver or caller
// representation to the Go type of t.
func convertValue(t field.Type, v any, durations dialect.DurationStorage) (any, error) {
	switch t {
	case field.TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case []byte:
			return strconv.ParseBool(string(v))
		case string:
			return strconv.ParseBool(v)
		}
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case field.TypeInt, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return narrow(t, n)
	case field.TypeRowVersion:
		if b, ok := v.([]byte); ok && len(b) == 8 {
			return int64(binary.BigEndian.Uint64(b)), nil
		}
		return asInt64(v)
	case field.TypeFloat32:
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("value %v overflows float32", f)
		}
		return float32(f), nil
	case field.TypeFloat64:
		return asFloat64(v)
	case field.TypeDecimal:
		return asDecimal(v)
	case field.TypeString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case field.TypeBytes:
		switch v := v.(type) {
		case []byte:
			return bytes.Clone(v), nil
		case string:
			return []byte(v), nil
		}
	case field.TypeTime:
		return asTime(v)
	case field.TypeUUID:
		return asUUID(v)
	case field.TypeDuration:
		switch v := v.(type) {
		case time.Duration:
			return v, nil
		case time.Time:
			return v.Sub(dialect.Epoch), nil
		case string, []byte:
			if durations == dialect.DurationEpoch {
				t, err := asTime(v)
				if err != nil {
					return nil, err
				}
				return t.Sub(dialect.Epoch), nil
			}
		}
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return time.Duration(n), nil
	}
	return nil, fmt.Errorf("unsupported conversion")
}

func asInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		return floatToInt(v)
	case float32:
		return floatToInt(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case time.Duration:
		return int64(v), nil
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, fmt.Errorf("value %s is not an integer", v)
		}
		if !v.BigInt().IsInt64() {
			return 0, fmt.Errorf("value %s overflows int64", v)
		}
		return v.IntPart(), nil
	case []byte:
		return parseInt(string(v))
	case string:
		return parseInt(v)
	}
	return 0, fmt.Errorf("not an integer")
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return asInt64(d)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}

func narrow(t field.Type, n int64) (any, error) {
	switch t {
	case field.TypeInt:
		if n < math.MinInt || n > math.MaxInt {
			return nil, fmt.Errorf("value %d overflows int", n)
		}
		return int(n), nil
	case field.TypeInt16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("value %d overflows int16", n)
		}
		return int16(n), nil
	case field.TypeInt32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int32", n)
		}
		return int32(n), nil
	}
	return n, nil
}

func asFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	n, err := asInt64(v)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return float64(n), nil
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, nil
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(v)))
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}
	n, err := asInt64(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a number")
	}
	return decimal.NewFromInt(n), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func asTime(v any) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return time.Time{}, fmt.Errorf("not a time")
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func asUUID(v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	}
	return uuid.Nil, fmt.Errorf("not a uuid")
}

func zeroValue(t field.Type) any {
	switch t {
	case field.TypeBool:
		return false
	case field.TypeInt:
		return 0
	case field.TypeInt16:
		return int16(0)
	case field.TypeInt32:
		return int32(0)
	case field.TypeInt64, field.TypeRowVersion:
		return int64(0)
	case field.TypeFloat32:
		return float32(0)
	case field.TypeFloat64:
		return float64(0)
	case field.TypeDecimal:
		return decimal.Zero
	case field.TypeString:
		return ""
	case field.TypeBytes:
		return []byte{}
	case field.TypeTime:
		return time.Time{}
	case field.TypeUUID:
		return uuid.Nil
	case field.TypeDuration:
		return time.Duration(0)
	}
	return nil
}

// valuesEqual compares two values of the same field.
func valuesEqual(a, b any) bool {
	switch a := a.(type) {
	case []byte:
		b, ok := b.([]byte)
		return ok && bytes.Equal(a, b)
	case time.Time:
		b, ok := b.(time.Time)
		return ok && a.Equal(b)
	case decimal.Decimal:
		b, ok := b.(decimal.Decimal)
		return ok && a.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
