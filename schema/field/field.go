package field

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Descriptor holds the persisted layout of a single field.
type Descriptor struct {
	Name        string
	Type        Type
	Nullable    bool
	PrimaryKey  bool
	Unique      bool
	Size        int // Maximum length for strings and bytes. 0 means backend default.
	Precision   int
	Scale       int
	Default     any  // Static default value, applied on insert when the value is nil.
	DefaultNow  bool // Current timestamp generator, applied on insert when the value is zero.
	SearchOrder SearchOrder
	SchemaType  map[string]string // Column type override per dialect.
	Codec       Codec             // Object fields only.
	New         func() any        // Object fields only; returns the value to decode into.
	Comment     string
	Err         error
}

// Builder is the fluent builder of a field descriptor.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: t}}
}

// Bool returns a new boolean field.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Int returns a new int field.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int16 returns a new int16 field.
func Int16(name string) *Builder { return newBuilder(name, TypeInt16) }

// Int32 returns a new int32 field.
func Int32(name string) *Builder { return newBuilder(name, TypeInt32) }

// Int64 returns a new int64 field.
func Int64(name string) *Builder { return newBuilder(name, TypeInt64) }

// Float32 returns a new float32 field.
func Float32(name string) *Builder { return newBuilder(name, TypeFloat32) }

// Float64 returns a new float64 field.
func Float64(name string) *Builder { return newBuilder(name, TypeFloat64) }

// Decimal returns a new decimal.Decimal field. Precision defaults to (18,2).
func Decimal(name string) *Builder {
	b := newBuilder(name, TypeDecimal)
	b.desc.Precision, b.desc.Scale = 18, 2
	return b
}

// String returns a new string field.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Bytes returns a new []byte field.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// Time returns a new time.Time field.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// UUID returns a new uuid.UUID field.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// Duration returns a new time.Duration field.
func Duration(name string) *Builder { return newBuilder(name, TypeDuration) }

// RowVersion returns a new row-version field. Its value is an int64 that
// changes on every update of the row.
func RowVersion(name string) *Builder { return newBuilder(name, TypeRowVersion) }

// Object returns a new object field. Values are serialized with the field
// codec or, when none is set, with the entity's strata.ObjectCodec.
// newValue returns the pointer a stored value is decoded into.
//
//	field.Object("settings", func() any { return &Settings{} }).Codec(codec.Msgpack)
func Object(name string, newValue func() any) *Builder {
	b := newBuilder(name, TypeObject)
	b.desc.New = newValue
	return b
}

// Nullable marks the column as nullable. Accessors exchange nil for NULL.
func (b *Builder) Nullable() *Builder {
	b.desc.Nullable = true
	return b
}

// PrimaryKey marks the field as the entity primary key.
func (b *Builder) PrimaryKey() *Builder {
	b.desc.PrimaryKey = true
	return b
}

// Unique adds a uniqueness constraint to the column.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// MaxLen sets the maximum length of string and bytes columns.
func (b *Builder) MaxLen(n int) *Builder {
	if !b.desc.Type.Sized() {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("MaxLen is not allowed on %s field %q", b.desc.Type, b.desc.Name))
	}
	if n <= 0 {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("MaxLen of field %q must be positive", b.desc.Name))
	}
	b.desc.Size = n
	return b
}

// Precision sets the precision and scale of decimal columns.
func (b *Builder) Precision(precision, scale int) *Builder {
	if b.desc.Type != TypeDecimal {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("Precision is not allowed on %s field %q", b.desc.Type, b.desc.Name))
	}
	if precision <= 0 || scale < 0 || scale > precision {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("invalid precision (%d,%d) for field %q", precision, scale, b.desc.Name))
	}
	b.desc.Precision, b.desc.Scale = precision, scale
	return b
}

// Default sets a static default value. It must have the Go type of the field.
func (b *Builder) Default(v any) *Builder {
	if err := CheckValue(b.desc.Type, v); err != nil {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("default of field %q: %w", b.desc.Name, err))
	}
	b.desc.Default = v
	return b
}

// DefaultNow sets the current timestamp as the default of a time field.
func (b *Builder) DefaultNow() *Builder {
	if b.desc.Type != TypeTime {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("DefaultNow is not allowed on %s field %q", b.desc.Type, b.desc.Name))
	}
	b.desc.DefaultNow = true
	return b
}

// Searchable declares the index intent of the field.
func (b *Builder) Searchable(order SearchOrder) *Builder {
	b.desc.SearchOrder = order
	return b
}

// SchemaType overrides the column type per dialect.
//
//	field.String("code").SchemaType(map[string]string{
//	    dialect.Postgres: "citext",
//	})
func (b *Builder) SchemaType(types map[string]string) *Builder {
	b.desc.SchemaType = types
	return b
}

// Codec sets the codec of an object field.
func (b *Builder) Codec(c Codec) *Builder {
	if b.desc.Type != TypeObject {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("Codec is not allowed on %s field %q", b.desc.Type, b.desc.Name))
	}
	b.desc.Codec = c
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the strata.Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	if d.Name == "" {
		d.Err = errors.Join(d.Err, errors.New("field name cannot be empty"))
	}
	if d.Type == TypeRowVersion && (d.Nullable || d.PrimaryKey || d.Default != nil) {
		d.Err = errors.Join(d.Err, fmt.Errorf("rowversion field %q cannot be nullable, a primary key or have a default", d.Name))
	}
	if d.PrimaryKey && d.Nullable {
		d.Err = errors.Join(d.Err, fmt.Errorf("primary key %q cannot be nullable", d.Name))
	}
	if d.Type == TypeObject && d.New == nil {
		d.Err = errors.Join(d.Err, fmt.Errorf("object field %q requires a value constructor", d.Name))
	}
	return d
}

// CheckValue reports an error if v does not have the Go type of t.
func CheckValue(t Type, v any) error {
	ok := false
	switch t {
	case TypeBool:
		_, ok = v.(bool)
	case TypeInt:
		_, ok = v.(int)
	case TypeInt16:
		_, ok = v.(int16)
	case TypeInt32:
		_, ok = v.(int32)
	case TypeInt64, TypeRowVersion:
		_, ok = v.(int64)
	case TypeFloat32:
		_, ok = v.(float32)
	case TypeFloat64:
		_, ok = v.(float64)
	case TypeDecimal:
		_, ok = v.(decimal.Decimal)
	case TypeString:
		_, ok = v.(string)
	case TypeBytes:
		_, ok = v.([]byte)
	case TypeTime:
		_, ok = v.(time.Time)
	case TypeUUID:
		_, ok = v.(uuid.UUID)
	case TypeDuration:
		_, ok = v.(time.Duration)
	case TypeObject:
		ok = v != nil
	}
	if !ok {
		return fmt.Errorf("expect value of type %s, got %T", t, v)
	}
	return nil
}
