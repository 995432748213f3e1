package strata

import (
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

type (
	// Field is the interface for entity fields. It is implemented
	// by the builders of the schema/field package.
	Field interface {
		Descriptor() *field.Descriptor
	}

	// Edge is the interface for entity references. It is implemented
	// by the builders of the schema/edge package.
	Edge interface {
		Descriptor() *edge.Descriptor
	}

	// Accessor reads and writes the in-memory values of an entity by
	// field or reference name. Implementations exchange the Go type fixed
	// by each field type (see field.Type), nil for NULL values, a single
	// Accessor (or nil) for many-to-one references and a []Accessor for
	// one-to-many references.
	Accessor interface {
		Get(name string) any
		Set(name string, value any) error
	}

	// Entity is a typed entity. It declares its layout and gives the store
	// access to its values. Entities are registered by their pointer type.
	//
	//	type Customer struct {
	//		strata.Schema
	//		ID     int
	//		Name   string
	//		Orders []*Order
	//	}
	//
	//	func (Customer) Fields() []strata.Field {
	//		return []strata.Field{
	//			field.Int("ID").PrimaryKey(),
	//			field.String("Name").MaxLen(100),
	//		}
	//	}
	//
	//	func (Customer) Edges() []strata.Edge {
	//		return []strata.Edge{
	//			edge.To("Orders", Order.Type).Field("CustomerID"),
	//		}
	//	}
	//
	//	func (Customer) Config() strata.Config {
	//		return strata.Config{Key: strata.KeyIdentity}
	//	}
	Entity interface {
		Type()
		Fields() []Field
		Edges() []Edge
		Config() Config
		Accessor
	}

	// Mixin is a reusable set of fields and references. The fields of the
	// mixins returned by an entity's Mixin method come before its own.
	Mixin interface {
		Fields() []Field
		Edges() []Edge
	}

	// ObjectCodec is implemented by entities that serialize their own
	// object-typed fields. It is used for object fields without a field codec.
	ObjectCodec interface {
		Serialize(field string, value any) ([]byte, error)
		Deserialize(field string, data []byte) (any, error)
	}
)

// Config is the entity storage configuration.
type Config struct {
	// Table overrides the entity name. It defaults to the Go type name.
	Table string
	// Key is the primary-key assignment policy.
	Key KeyScheme
}

// KeyScheme is the policy for primary-key assignment.
type KeyScheme uint8

// Key schemes.
const (
	// KeyNone means the caller assigns the key.
	KeyNone KeyScheme = iota
	// KeyIdentity means the backend assigns an auto-increment integer key.
	KeyIdentity
	// KeyGUID means the store assigns a random UUID when the key is unset.
	KeyGUID
)

// String returns the name of the key scheme.
func (k KeyScheme) String() string {
	switch k {
	case KeyIdentity:
		return "identity"
	case KeyGUID:
		return "guid"
	default:
		return "none"
	}
}

// Schema is the default implementation of the declaration part of the
// Entity interface. It is embedded by user entities.
type Schema struct{}

// Type is used as a reference target in edge declarations:
//
//	edge.To("Orders", Order.Type)
func (Schema) Type() {}

// Fields of the entity.
func (Schema) Fields() []Field { return nil }

// Edges of the entity.
func (Schema) Edges() []Edge { return nil }

// Config of the entity.
func (Schema) Config() Config { return Config{} }

// Mixin of the entity.
func (Schema) Mixin() []Mixin { return nil }

// Accessors converts a typed slice of entities to the form exchanged
// by one-to-many reference accessors.
func Accessors[T Accessor](items []T) []Accessor {
	if items == nil {
		return nil
	}
	out := make([]Accessor, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

// As converts the value received by a one-to-many reference setter
// back to a typed slice. Elements of another type are skipped.
func As[T Accessor](v any) []T {
	items, _ := v.([]Accessor)
	if items == nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if t, ok := item.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// One converts the value received by a many-to-one reference setter
// to its typed form. It returns the zero value for nil.
func One[T Accessor](v any) T {
	t, _ := v.(T)
	return t
}
