package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
)

// visited holds the instances already written or deleted by one cascade.
// It stops the walk on mutual references.
type visited map[strata.Accessor]struct{}

func (v visited) mark(a strata.Accessor) bool {
	if _, ok := v[a]; ok {
		return false
	}
	v[a] = struct{}{}
	return true
}

func hasCascades(e *schema.Entity) bool {
	for _, ref := range e.References {
		if ref.CascadeDelete {
			return true
		}
	}
	return false
}

// related returns the entity on the other side of a reference.
func (s *Store) related(ctx context.Context, ref *edge.Descriptor) (*schema.Entity, error) {
	re, err := s.registry.Related(ref)
	if errors.Is(err, strata.ErrUnknownEntity) && ref.Type == nil && ref.Entity != "" {
		return s.entity(ctx, ref.Entity)
	}
	return re, err
}

// isNew reports if v has no stored row yet. Identity keys are new while
// they hold 0 or -1, GUID keys while unset. Caller-assigned keys are
// looked up.
func (s *Store) isNew(ctx context.Context, e *schema.Entity, v strata.Accessor) (bool, error) {
	if e.PrimaryKey == nil {
		return true, nil
	}
	key := e.KeyValue(v)
	if key == nil {
		return true, nil
	}
	switch e.Key {
	case strata.KeyIdentity:
		n, err := asInt64(key)
		if err != nil {
			return false, conversionError(e, e.PrimaryKey, key, err)
		}
		return n == 0 || n == -1, nil
	case strata.KeyGUID:
		id, err := asUUID(key)
		if err != nil {
			return false, conversionError(e, e.PrimaryKey, key, err)
		}
		return id == uuid.Nil, nil
	default:
		found, err := s.containsKey(ctx, e, key)
		return !found, err
	}
}

// save writes a related instance once per cascade.
func (s *Store) save(ctx context.Context, e *schema.Entity, v strata.Accessor, seen visited) error {
	if _, ok := seen[v]; ok {
		return nil
	}
	isNew, err := s.isNew(ctx, e, v)
	if err != nil {
		return err
	}
	if isNew {
		return s.insertGraph(ctx, e, v, seen)
	}
	return s.updateGraph(ctx, e, v, &writeOptions{references: true}, seen)
}

func (s *Store) insertGraph(ctx context.Context, e *schema.Entity, v strata.Accessor, seen visited) error {
	seen.mark(v)
	if err := s.cascadeBefore(ctx, e, v, seen); err != nil {
		return err
	}
	if err := s.insert(ctx, e, v); err != nil {
		return err
	}
	return s.cascadeAfter(ctx, e, v, seen)
}

func (s *Store) updateGraph(ctx context.Context, e *schema.Entity, v strata.Accessor, o *writeOptions, seen visited) error {
	seen.mark(v)
	if err := s.cascadeBefore(ctx, e, v, seen); err != nil {
		return err
	}
	if err := s.update(ctx, e, v, o); err != nil {
		return err
	}
	return s.cascadeAfter(ctx, e, v, seen)
}

// cascadeBefore writes the parents of the many-to-one references of v
// and copies their keys into the foreign keys of v.
func (s *Store) cascadeBefore(ctx context.Context, e *schema.Entity, v strata.Accessor, seen visited) error {
	for _, ref := range e.References {
		if ref.Direction != edge.ManyToOne {
			continue
		}
		parent := one(v.Get(ref.Name))
		if parent == nil {
			continue
		}
		pe, err := s.resolve(ctx, parent)
		if err != nil {
			return err
		}
		if err := s.save(ctx, pe, parent, seen); err != nil {
			return err
		}
		fk, ok := e.Field(ref.Field)
		if !ok {
			return strata.NewConfigError(strata.ErrInvalidReference, e.Name, ref.Name, "unknown foreign-key field "+ref.Field)
		}
		key, err := s.coerce(e, fk, pe.KeyValue(parent))
		if err != nil {
			return err
		}
		if err := v.Set(fk.Name, key); err != nil {
			return fmt.Errorf("store: set %s.%s: %w", e.Name, fk.Name, err)
		}
	}
	return nil
}

// cascadeAfter copies the key of v into the foreign key of its
// one-to-many children and writes them.
func (s *Store) cascadeAfter(ctx context.Context, e *schema.Entity, v strata.Accessor, seen visited) error {
	for _, ref := range e.References {
		if ref.Direction != edge.OneToMany {
			continue
		}
		children, _ := v.Get(ref.Name).([]strata.Accessor)
		if len(children) == 0 {
			continue
		}
		key := e.KeyValue(v)
		for _, child := range children {
			if one(child) == nil {
				continue
			}
			ce, err := s.resolve(ctx, child)
			if err != nil {
				return err
			}
			fk, ok := ce.Field(ref.Field)
			if !ok {
				return strata.NewConfigError(strata.ErrInvalidReference, e.Name, ref.Name,
					fmt.Sprintf("%s has no foreign-key field %s", ce.Name, ref.Field))
			}
			fkv, err := s.coerce(ce, fk, key)
			if err != nil {
				return err
			}
			if err := child.Set(fk.Name, fkv); err != nil {
				return fmt.Errorf("store: set %s.%s: %w", ce.Name, fk.Name, err)
			}
			if err := s.save(ctx, ce, child, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteGraph deletes the cascade-delete children of v, then v, then
// its cascade-delete parents.
func (s *Store) deleteGraph(ctx context.Context, e *schema.Entity, v strata.Accessor, seen visited) error {
	if !seen.mark(v) {
		return nil
	}
	key := e.KeyValue(v)
	for _, ref := range e.References {
		if ref.Direction != edge.OneToMany || !ref.CascadeDelete {
			continue
		}
		ce, err := s.related(ctx, ref)
		if err != nil {
			return err
		}
		c, err := s.buildSelect(ce, []Filter{Eq(ref.Field, key)}, false)
		if err != nil {
			return err
		}
		children, err := s.load(ctx, ce, c)
		if err != nil {
			return strata.NewQueryError(ce.Name, "delete", err)
		}
		for _, child := range children {
			if err := s.deleteGraph(ctx, ce, child, seen); err != nil {
				return err
			}
		}
	}
	if err := s.deleteKey(ctx, e, key); err != nil {
		return err
	}
	for _, ref := range e.References {
		if ref.Direction != edge.ManyToOne || !ref.CascadeDelete {
			continue
		}
		fkv := v.Get(ref.Field)
		if fkv == nil {
			continue
		}
		pe, err := s.related(ctx, ref)
		if err != nil {
			return err
		}
		parent, err := s.selectByKey(ctx, pe, fkv)
		if strata.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.deleteGraph(ctx, pe, parent, seen); err != nil {
			return err
		}
	}
	return nil
}

// filler sets the references of materialized instances. With cache, the
// related tables are read once per filler and matched in memory;
// otherwise every instance queries its own related rows.
type filler struct {
	s      *Store
	cache  bool
	tables map[string][]strata.Accessor
}

func (s *Store) newFiller(cache bool) *filler {
	return &filler{s: s, cache: cache, tables: make(map[string][]strata.Accessor)}
}

func (fl *filler) table(ctx context.Context, e *schema.Entity) ([]strata.Accessor, error) {
	if items, ok := fl.tables[e.Name]; ok {
		return items, nil
	}
	c, err := fl.s.buildSelect(e, nil, false)
	if err != nil {
		return nil, err
	}
	items, err := fl.s.load(ctx, e, c)
	if err != nil {
		return nil, err
	}
	fl.tables[e.Name] = items
	return items, nil
}

// fill sets every reference of items. Related instances are not filled
// in turn.
func (fl *filler) fill(ctx context.Context, e *schema.Entity, items []strata.Accessor) error {
	if len(items) == 0 {
		return nil
	}
	for _, ref := range e.References {
		re, err := fl.s.related(ctx, ref)
		if err != nil {
			return err
		}
		switch ref.Direction {
		case edge.ManyToOne:
			err = fl.fillParents(ctx, e, re, ref, items)
		case edge.OneToMany:
			err = fl.fillChildren(ctx, e, re, ref, items)
		}
		if err != nil {
			return fmt.Errorf("store: fill %s.%s: %w", e.Name, ref.Name, err)
		}
	}
	return nil
}

func (fl *filler) fillParents(ctx context.Context, e, pe *schema.Entity, ref *edge.Descriptor, items []strata.Accessor) error {
	if pe.PrimaryKey == nil {
		return strata.NewConfigError(strata.ErrNoPrimaryKey, pe.Name, "", "reference "+ref.Name)
	}
	var byKey map[any]strata.Accessor
	if fl.cache {
		parents, err := fl.table(ctx, pe)
		if err != nil {
			return err
		}
		byKey = make(map[any]strata.Accessor, len(parents))
		for _, p := range parents {
			byKey[mapKey(pe.KeyValue(p))] = p
		}
	}
	for _, v := range items {
		var parent strata.Accessor
		if fkv := v.Get(ref.Field); fkv != nil {
			key, err := fl.s.coerce(pe, pe.PrimaryKey, fkv)
			if err != nil {
				return err
			}
			if fl.cache {
				parent = byKey[mapKey(key)]
			} else {
				parent, err = fl.s.selectByKey(ctx, pe, key)
				if err != nil && !strata.IsNotFound(err) {
					return err
				}
			}
		}
		if err := v.Set(ref.Name, parent); err != nil {
			return err
		}
	}
	return nil
}

func (fl *filler) fillChildren(ctx context.Context, e, ce *schema.Entity, ref *edge.Descriptor, items []strata.Accessor) error {
	if e.PrimaryKey == nil {
		return strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "reference "+ref.Name)
	}
	var byParent map[any][]strata.Accessor
	if fl.cache {
		children, err := fl.table(ctx, ce)
		if err != nil {
			return err
		}
		byParent = make(map[any][]strata.Accessor)
		for _, c := range children {
			fkv := c.Get(ref.Field)
			if fkv == nil {
				continue
			}
			key, err := fl.s.coerce(e, e.PrimaryKey, fkv)
			if err != nil {
				return err
			}
			byParent[mapKey(key)] = append(byParent[mapKey(key)], c)
		}
	}
	for _, v := range items {
		children := []strata.Accessor{}
		key := e.KeyValue(v)
		switch {
		case key == nil:
		case fl.cache:
			children = append(children, byParent[mapKey(key)]...)
		default:
			c, err := fl.s.buildSelect(ce, []Filter{Eq(ref.Field, key)}, false)
			if err != nil {
				return err
			}
			found, err := fl.s.load(ctx, ce, c)
			if err != nil {
				return err
			}
			children = append(children, found...)
		}
		if err := v.Set(ref.Name, children); err != nil {
			return err
		}
	}
	return nil
}

// mapKey returns a comparable form of a key value.
func mapKey(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.UnixNano()
	}
	return v
}

// one returns a nil Accessor for nil interfaces and typed nil pointers.
func one(v any) strata.Accessor {
	a, ok := v.(strata.Accessor)
	if !ok {
		return nil
	}
	if rv := reflect.ValueOf(a); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return a
}
