package schema

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
)

// Registry holds the metadata of all known entities. Reads are lock-free
// on an immutable snapshot. Register and Remove copy the snapshot under a
// mutex.
type Registry struct {
	mu    sync.Mutex
	state atomic.Pointer[snapshot]
}

type snapshot struct {
	byName map[string]*Entity
	byType map[reflect.Type]*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.state.Store(&snapshot{
		byName: map[string]*Entity{},
		byType: map[reflect.Type]*Entity{},
	})
	return r
}

// Register adds a typed entity. Registering the same type twice returns
// the existing metadata.
func (r *Registry) Register(v strata.Entity) (*Entity, error) {
	if e, ok := r.LookupType(reflect.TypeOf(v)); ok {
		return e, nil
	}
	e, err := FromEntity(v)
	if err != nil {
		return nil, err
	}
	return r.add(e)
}

// Add registers the metadata of a dynamic entity. An existing dynamic
// entity with the same name is replaced.
func (r *Registry) Add(e *Entity) (*Entity, error) {
	return r.add(e)
}

func (r *Registry) add(e *Entity) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load()
	if prev, ok := cur.byName[e.Name]; ok {
		switch {
		case e.typ != nil && prev.typ == e.typ:
			return prev, nil
		case !prev.Dynamic || !e.Dynamic:
			return nil, fmt.Errorf("schema: entity name %q is already registered", e.Name)
		}
	}
	next := &snapshot{byName: maps.Clone(cur.byName), byType: maps.Clone(cur.byType)}
	next.byName[e.Name] = e
	if e.typ != nil {
		next.byType[e.typ] = e
	}
	r.state.Store(next)
	return e, nil
}

// Remove drops the named entity. It reports whether it was registered.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load()
	e, ok := lookup(cur, name)
	if !ok {
		return false
	}
	next := &snapshot{byName: maps.Clone(cur.byName), byType: maps.Clone(cur.byType)}
	delete(next.byName, e.Name)
	if e.typ != nil {
		delete(next.byType, e.typ)
	}
	r.state.Store(next)
	return true
}

// Lookup returns the entity registered under name. Names are matched
// case-insensitively when no exact match exists.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	return lookup(r.state.Load(), name)
}

func lookup(s *snapshot, name string) (*Entity, bool) {
	if e, ok := s.byName[name]; ok {
		return e, true
	}
	for n, e := range s.byName {
		if strings.EqualFold(n, name) {
			return e, true
		}
	}
	return nil, false
}

// LookupType returns the entity registered for the Go type.
func (r *Registry) LookupType(t reflect.Type) (*Entity, bool) {
	e, ok := r.state.Load().byType[t]
	return e, ok
}

// Entities returns all registered entities ordered by name.
func (r *Registry) Entities() []*Entity {
	s := r.state.Load()
	names := slices.Sorted(maps.Keys(s.byName))
	out := make([]*Entity, len(names))
	for i, n := range names {
		out[i] = s.byName[n]
	}
	return out
}

// Resolve returns the metadata of an entity value. Typed entities that
// are not registered yet are registered on the fly.
func (r *Registry) Resolve(v strata.Accessor) (*Entity, error) {
	switch v := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil entity", strata.ErrUnknownEntity)
	case *strata.DynamicEntity:
		if e, ok := r.Lookup(v.Name()); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %s", strata.ErrUnknownEntity, v.Name())
	case strata.Entity:
		return r.Register(v)
	default:
		if e, ok := r.LookupType(reflect.TypeOf(v)); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %T", strata.ErrUnknownEntity, v)
	}
}

// Related returns the entity on the other side of a reference. A target
// declared by Go type is registered on the fly.
func (r *Registry) Related(ref *edge.Descriptor) (*Entity, error) {
	if ref.Type != nil {
		pt := reflect.PointerTo(ref.Type)
		if e, ok := r.LookupType(pt); ok {
			return e, nil
		}
		if v, ok := reflect.New(ref.Type).Interface().(strata.Entity); ok {
			return r.Register(v)
		}
	}
	if e, ok := r.Lookup(ref.Entity); ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s (reference %s)", strata.ErrUnknownEntity, ref.Entity, ref.Name)
}
