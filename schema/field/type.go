package field

// Type is the semantic data type of a field. It also fixes the Go type
// that entity accessors exchange with the store.
type Type uint8

// Field types.
const (
	TypeInvalid    Type = iota
	TypeBool            // bool
	TypeInt             // int
	TypeInt16           // int16
	TypeInt32           // int32
	TypeInt64           // int64
	TypeFloat32         // float32
	TypeFloat64         // float64
	TypeDecimal         // decimal.Decimal
	TypeString          // string
	TypeBytes           // []byte
	TypeTime            // time.Time
	TypeUUID            // uuid.UUID
	TypeDuration        // time.Duration
	TypeObject          // any, through a Codec
	TypeRowVersion      // int64, stored as 8 bytes where the backend assigns it
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:    "invalid",
	TypeBool:       "bool",
	TypeInt:        "int",
	TypeInt16:      "int16",
	TypeInt32:      "int32",
	TypeInt64:      "int64",
	TypeFloat32:    "float32",
	TypeFloat64:    "float64",
	TypeDecimal:    "decimal.Decimal",
	TypeString:     "string",
	TypeBytes:      "[]byte",
	TypeTime:       "time.Time",
	TypeUUID:       "uuid.UUID",
	TypeDuration:   "time.Duration",
	TypeObject:     "object",
	TypeRowVersion: "rowversion",
}

// String returns the Go type name of the field type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the type is a known field type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Integer reports if the type is stored as an integer.
func (t Type) Integer() bool {
	switch t {
	case TypeInt, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// Numeric reports if the type is a numeric type.
func (t Type) Numeric() bool {
	return t.Integer() || t == TypeFloat32 || t == TypeFloat64 || t == TypeDecimal
}

// Sized reports if the type accepts a maximum length.
func (t Type) Sized() bool {
	return t == TypeString || t == TypeBytes
}

// SearchOrder declares the index intent of a field. Every searchable field
// gets a secondary index when its table is created.
type SearchOrder uint8

// Search orders.
const (
	NotSearchable SearchOrder = iota
	Ascending
	Descending
)

// String returns the SQL keyword of the order.
func (o SearchOrder) String() string {
	switch o {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return ""
	}
}

// Codec serializes object-typed field values.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
