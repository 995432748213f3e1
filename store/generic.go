package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// entityFor returns the entity of the typed entity T, registering it on
// first use.
func entityFor[T strata.Accessor](s *Store) (*schema.Entity, error) {
	t := reflect.TypeFor[T]()
	if e, ok := s.registry.LookupType(t); ok {
		return e, nil
	}
	if t.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: %s is not a pointer type", strata.ErrUnknownEntity, t)
	}
	v, ok := reflect.New(t.Elem()).Interface().(strata.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement strata.Entity", strata.ErrUnknownEntity, t)
	}
	return s.registry.Register(v)
}

func typed[T strata.Accessor](items []strata.Accessor) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		out = append(out, v.(T))
	}
	return out
}

// Select returns every instance of T.
//
//	customers, err := store.Select[*Customer](ctx, s, store.FillReferences())
func Select[T strata.Accessor](ctx context.Context, s *Store, opts ...SelectOption) ([]T, error) {
	return Filtered[T](ctx, s, nil, opts...)
}

// Get returns the instance of T with the given key.
func Get[T strata.Accessor](ctx context.Context, s *Store, key any, opts ...SelectOption) (T, error) {
	var zero T
	e, err := entityFor[T](s)
	if err != nil {
		return zero, err
	}
	v, err := s.SelectByKey(ctx, e.Name, key, opts...)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Where returns the instances of T whose field equals value.
func Where[T strata.Accessor](ctx context.Context, s *Store, field string, value any, opts ...SelectOption) ([]T, error) {
	return Filtered[T](ctx, s, []Filter{Eq(field, value)}, opts...)
}

// Filtered returns the instances of T matching every filter.
func Filtered[T strata.Accessor](ctx context.Context, s *Store, filters []Filter, opts ...SelectOption) ([]T, error) {
	e, err := entityFor[T](s)
	if err != nil {
		return nil, err
	}
	items, err := s.selectFiltered(ctx, e, filters, newSelectOptions(opts))
	if err != nil {
		return nil, err
	}
	return typed[T](items), nil
}

// FetchAs returns one page of instances of T.
func FetchAs[T strata.Accessor](ctx context.Context, s *Store, o FetchOptions) ([]T, error) {
	e, err := entityFor[T](s)
	if err != nil {
		return nil, err
	}
	items, err := s.Fetch(ctx, e.Name, o)
	if err != nil {
		return nil, err
	}
	return typed[T](items), nil
}
