package edge

import (
	"errors"
	"fmt"
	"reflect"
)

// Direction of a reference.
type Direction uint8

// Reference directions.
const (
	// OneToMany references a collection of child rows whose foreign key
	// holds the key of the owning row.
	OneToMany Direction = iota + 1
	// ManyToOne references a single parent row whose key is held by a
	// foreign key of the owning row.
	ManyToOne
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case OneToMany:
		return "one-to-many"
	case ManyToOne:
		return "many-to-one"
	default:
		return "invalid"
	}
}

// Descriptor holds the declaration of a reference.
type Descriptor struct {
	Name          string       // Accessor name on the owning entity.
	Direction     Direction    // Reference direction.
	Entity        string       // Related entity name.
	Type          reflect.Type // Related Go type, when declared by type.
	Field         string       // Foreign-key field name.
	CascadeDelete bool         // Delete related rows with the owner.
	Comment       string
	Err           error
}

// Builder is the fluent builder of a reference descriptor.
type Builder struct {
	desc *Descriptor
}

// To declares a one-to-many reference. The foreign key lives on the
// related entity and is named with Field:
//
//	edge.To("Orders", Order.Type).Field("CustomerID")
//
// The related entity is given by a Type method expression or by name.
func To(name string, entity any) *Builder {
	return newBuilder(name, OneToMany, entity)
}

// From declares a many-to-one reference. The foreign key lives on the
// owning entity and is named with Field:
//
//	edge.From("Customer", Customer.Type).Field("CustomerID")
func From(name string, entity any) *Builder {
	return newBuilder(name, ManyToOne, entity)
}

func newBuilder(name string, dir Direction, entity any) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Direction: dir}}
	switch v := entity.(type) {
	case string:
		b.desc.Entity = v
	case nil:
		b.desc.Err = fmt.Errorf("edge %q: missing related entity", name)
	default:
		t := reflect.TypeOf(v)
		if t.Kind() != reflect.Func || t.NumIn() != 1 {
			b.desc.Err = fmt.Errorf("edge %q: related entity must be a name or a Type method expression, got %T", name, v)
			break
		}
		t = t.In(0)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		b.desc.Entity, b.desc.Type = t.Name(), t
	}
	return b
}

// Field sets the name of the foreign-key field.
func (b *Builder) Field(name string) *Builder {
	b.desc.Field = name
	return b
}

// CascadeDelete deletes the related rows when the owning row is deleted.
func (b *Builder) CascadeDelete() *Builder {
	b.desc.CascadeDelete = true
	return b
}

// Comment sets the comment of the reference.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the strata.Edge interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	if d.Name == "" {
		d.Err = errors.Join(d.Err, errors.New("edge name cannot be empty"))
	}
	if d.Field == "" {
		d.Err = errors.Join(d.Err, fmt.Errorf("edge %q: missing foreign-key field", d.Name))
	}
	return d
}
