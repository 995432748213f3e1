package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Entity is the registered metadata of one entity. Its layout is fixed at
// registration. The caches guarded by mu (ordinals, index names) are filled
// lazily by the store.
type Entity struct {
	Name       string
	Fields     []*field.Descriptor
	PrimaryKey *field.Descriptor // nil if the entity has no key
	Key        strata.KeyScheme
	References []*edge.Descriptor
	Dynamic    bool
	Discovered bool // read from an existing table
	Codec      strata.ObjectCodec // entity-level serializer, may be nil

	typ     reflect.Type // pointer type of a typed entity
	byName  map[string]int
	mu      sync.Mutex
	ord     []int
	ordOK   bool
	pkIndex *string
	indexes map[string]struct{}
}

// New returns an empty instance of the entity.
func (e *Entity) New() strata.Accessor {
	if e.Dynamic {
		names := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			names[i] = f.Name
		}
		key := ""
		if e.PrimaryKey != nil {
			key = e.PrimaryKey.Name
		}
		return strata.NewDynamicEntity(e.Name, key, names...)
	}
	return reflect.New(e.typ.Elem()).Interface().(strata.Accessor)
}

// GoType returns the registered pointer type of a typed entity, or nil.
func (e *Entity) GoType() reflect.Type { return e.typ }

// Field returns the named field. Names are matched case-insensitively
// when no exact match exists.
func (e *Entity) Field(name string) (*field.Descriptor, bool) {
	if i, ok := e.byName[name]; ok {
		return e.Fields[i], true
	}
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

// Reference returns the named reference.
func (e *Entity) Reference(name string) (*edge.Descriptor, bool) {
	for _, r := range e.References {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// KeyValue returns the primary-key value of v, or nil if the entity has no key.
func (e *Entity) KeyValue(v strata.Accessor) any {
	if e.PrimaryKey == nil {
		return nil
	}
	return v.Get(e.PrimaryKey.Name)
}

// Ordinals returns the cached column position of every field, -1 for
// fields missing from the table. ok is false when the cache is invalid.
func (e *Entity) Ordinals() (ord []int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ord, e.ordOK
}

// SetOrdinals caches field positions from the column names of a result set.
func (e *Entity) SetOrdinals(columns []string) []int {
	ord := make([]int, len(e.Fields))
	for i, f := range e.Fields {
		ord[i] = -1
		for j, c := range columns {
			if strings.EqualFold(c, f.Name) {
				ord[i] = j
				break
			}
		}
	}
	e.mu.Lock()
	e.ord, e.ordOK = ord, true
	e.mu.Unlock()
	return ord
}

// InvalidateOrdinals drops the cached ordinals. It is called whenever the
// table is created, altered or dropped.
func (e *Entity) InvalidateOrdinals() {
	e.mu.Lock()
	e.ord, e.ordOK = nil, false
	e.mu.Unlock()
}

// PrimaryKeyIndex returns the cached name of the primary-key index.
// ok is false when it was never resolved. An empty name means the
// backend exposes no named index for the key.
func (e *Entity) PrimaryKeyIndex() (name string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pkIndex == nil {
		return "", false
	}
	return *e.pkIndex, true
}

// SetPrimaryKeyIndex caches the name of the primary-key index.
func (e *Entity) SetPrimaryKeyIndex(name string) {
	e.mu.Lock()
	e.pkIndex = &name
	e.mu.Unlock()
}

// HasIndex reports if the index name is known to exist.
func (e *Entity) HasIndex(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.indexes[name]
	return ok
}

// AddIndex records a known index name.
func (e *Entity) AddIndex(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexes == nil {
		e.indexes = make(map[string]struct{})
	}
	e.indexes[name] = struct{}{}
}

// Indexes returns the known index names.
func (e *Entity) Indexes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.indexes))
	for n := range e.indexes {
		names = append(names, n)
	}
	return names
}

// FromEntity builds the metadata of a typed entity and checks its
// declaration. v must be a pointer.
func FromEntity(v strata.Entity) (*Entity, error) {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: entity %T must be a pointer to a struct", v)
	}
	cfg := v.Config()
	name := cfg.Table
	if name == "" {
		name = t.Elem().Name()
	}
	e := &Entity{Name: name, Key: cfg.Key, typ: t}
	if c, ok := v.(strata.ObjectCodec); ok {
		e.Codec = c
	}
	var (
		declFields []strata.Field
		declEdges  []strata.Edge
	)
	if m, ok := v.(interface{ Mixin() []strata.Mixin }); ok {
		for _, mx := range m.Mixin() {
			declFields = append(declFields, mx.Fields()...)
			declEdges = append(declEdges, mx.Edges()...)
		}
	}
	declFields = append(declFields, v.Fields()...)
	declEdges = append(declEdges, v.Edges()...)
	fields := make([]*field.Descriptor, 0, len(declFields))
	for _, f := range declFields {
		fields = append(fields, f.Descriptor())
	}
	if err := e.setFields(fields); err != nil {
		return nil, err
	}
	zero := e.New()
	for _, ed := range declEdges {
		d := ed.Descriptor()
		if d.Err != nil {
			return nil, strata.NewConfigError(strata.ErrInvalidReference, name, d.Name, d.Err.Error())
		}
		if _, ok := e.Reference(d.Name); ok {
			return nil, strata.NewConfigError(strata.ErrInvalidReference, name, d.Name, "duplicate reference")
		}
		switch d.Direction {
		case edge.OneToMany:
			if _, ok := zero.Get(d.Name).([]strata.Accessor); !ok {
				return nil, strata.NewConfigError(strata.ErrInvalidReference, name, d.Name,
					"one-to-many reference must bind to a []strata.Accessor accessor")
			}
		case edge.ManyToOne:
			if _, ok := e.Field(d.Field); !ok {
				return nil, strata.NewConfigError(strata.ErrInvalidReference, name, d.Name,
					fmt.Sprintf("foreign-key field %q is not declared", d.Field))
			}
		}
		e.References = append(e.References, d)
	}
	return e, nil
}

// NewDynamic builds the metadata of a dynamic entity. key names the
// primary-key field and may be empty.
func NewDynamic(name string, fields []*field.Descriptor, key string, scheme strata.KeyScheme) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("schema: dynamic entity name cannot be empty")
	}
	own := make([]*field.Descriptor, len(fields))
	for i, f := range fields {
		c := *f
		c.PrimaryKey = key != "" && f.Name == key
		own[i] = &c
	}
	e := &Entity{Name: name, Key: scheme, Dynamic: true}
	if err := e.setFields(own); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Entity) setFields(fields []*field.Descriptor) error {
	e.byName = make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Err != nil {
			return strata.NewConfigError(strata.ErrInvalidField, e.Name, f.Name, f.Err.Error())
		}
		if _, ok := e.byName[f.Name]; ok {
			return strata.NewConfigError(strata.ErrInvalidField, e.Name, f.Name, "duplicate field")
		}
		e.byName[f.Name] = i
		if f.PrimaryKey {
			if e.PrimaryKey != nil {
				return strata.NewConfigError(strata.ErrInvalidField, e.Name, f.Name, "multiple primary keys")
			}
			e.PrimaryKey = f
		}
		if f.Type == field.TypeObject && f.Codec == nil && e.Codec == nil && !e.Dynamic {
			return strata.NewConfigError(strata.ErrMissingSerializer, e.Name, f.Name,
				"object fields need a field codec or an entity implementing strata.ObjectCodec")
		}
	}
	e.Fields = fields
	switch e.Key {
	case strata.KeyIdentity:
		if e.PrimaryKey == nil {
			return strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "identity key scheme")
		}
		if !e.PrimaryKey.Type.Integer() {
			return strata.NewConfigError(strata.ErrUnsupportedIdentity, e.Name, e.PrimaryKey.Name,
				fmt.Sprintf("identity keys must be integers, got %s", e.PrimaryKey.Type))
		}
	case strata.KeyGUID:
		if e.PrimaryKey == nil {
			return strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "guid key scheme")
		}
		if e.PrimaryKey.Type != field.TypeUUID {
			return strata.NewConfigError(strata.ErrUnsupportedIdentity, e.Name, e.PrimaryKey.Name,
				fmt.Sprintf("guid keys must be uuid.UUID, got %s", e.PrimaryKey.Type))
		}
	}
	return nil
}
