package strata

import (
	"fmt"
	"slices"
)

// DynamicEntity is a schema-less entity whose layout is discovered from
// the database at runtime. Values are kept in field order.
type DynamicEntity struct {
	name   string
	key    string
	names  []string
	values map[string]any
}

// NewDynamicEntity returns an empty dynamic entity with the given fields.
// key names the primary-key field and may be empty.
func NewDynamicEntity(name, key string, fields ...string) *DynamicEntity {
	e := &DynamicEntity{
		name:   name,
		key:    key,
		names:  slices.Clone(fields),
		values: make(map[string]any, len(fields)),
	}
	return e
}

// Name returns the entity name.
func (e *DynamicEntity) Name() string { return e.name }

// KeyField returns the name of the primary-key field.
func (e *DynamicEntity) KeyField() string { return e.key }

// Key returns the primary-key value, or nil if the entity has no key.
func (e *DynamicEntity) Key() any {
	if e.key == "" {
		return nil
	}
	return e.values[e.key]
}

// Fields returns the field names in order.
func (e *DynamicEntity) Fields() []string { return slices.Clone(e.names) }

// Get returns the value of the named field, or nil if unset.
func (e *DynamicEntity) Get(name string) any {
	return e.values[name]
}

// Set sets the value of a field. Unknown names are appended to the
// field order.
func (e *DynamicEntity) Set(name string, value any) error {
	if name == "" {
		return fmt.Errorf("strata: dynamic entity %s: empty field name", e.name)
	}
	if _, ok := e.values[name]; !ok && !slices.Contains(e.names, name) {
		e.names = append(e.names, name)
	}
	e.values[name] = value
	return nil
}

// Map returns a copy of the field values.
func (e *DynamicEntity) Map() map[string]any {
	m := make(map[string]any, len(e.values))
	for k, v := range e.values {
		m[k] = v
	}
	return m
}

// String implements the fmt.Stringer interface.
func (e *DynamicEntity) String() string {
	s := e.name + "("
	for i, n := range e.names {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", n, e.values[n])
	}
	return s + ")"
}

var _ Accessor = (*DynamicEntity)(nil)
