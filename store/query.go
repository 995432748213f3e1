package store

import (
	"context"
	"math"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// SelectOption configures the Select methods.
type SelectOption func(*selectOptions)

type selectOptions struct {
	fill bool
}

// FillReferences sets the references of the selected instances. Bulk
// selects read each related table once.
func FillReferences() SelectOption {
	return func(o *selectOptions) { o.fill = true }
}

func newSelectOptions(opts []SelectOption) *selectOptions {
	o := &selectOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SelectAll returns every instance of the entity.
func (s *Store) SelectAll(ctx context.Context, entity string, opts ...SelectOption) ([]strata.Accessor, error) {
	return s.SelectFiltered(ctx, entity, nil, opts...)
}

// SelectWhere returns the instances whose field equals value.
func (s *Store) SelectWhere(ctx context.Context, entity, field string, value any, opts ...SelectOption) ([]strata.Accessor, error) {
	return s.SelectFiltered(ctx, entity, []Filter{Eq(field, value)}, opts...)
}

// SelectFiltered returns the instances matching every filter.
func (s *Store) SelectFiltered(ctx context.Context, entity string, filters []Filter, opts ...SelectOption) ([]strata.Accessor, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return nil, err
	}
	return s.selectFiltered(ctx, e, filters, newSelectOptions(opts))
}

func (s *Store) selectFiltered(ctx context.Context, e *schema.Entity, filters []Filter, o *selectOptions) ([]strata.Accessor, error) {
	c, err := s.selectCommand(ctx, e, filters)
	if err != nil {
		return nil, err
	}
	items, err := s.load(ctx, e, c)
	if err != nil {
		return nil, strata.NewQueryError(e.Name, "select", err)
	}
	if o.fill {
		if err := s.newFiller(true).fill(ctx, e, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SelectByKey returns the instance with the given key. It fails with a
// not-found error when no row matches.
func (s *Store) SelectByKey(ctx context.Context, entity string, key any, opts ...SelectOption) (strata.Accessor, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return nil, err
	}
	v, err := s.selectByKey(ctx, e, key)
	if err != nil {
		return nil, err
	}
	if newSelectOptions(opts).fill {
		if err := s.newFiller(false).fill(ctx, e, []strata.Accessor{v}); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *Store) selectByKey(ctx context.Context, e *schema.Entity, key any) (strata.Accessor, error) {
	if e.PrimaryKey == nil {
		return nil, strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "select by key")
	}
	if key == nil {
		return nil, strata.NewNotFoundErrorWithID(e.Name, key)
	}
	c, err := s.selectCommand(ctx, e, []Filter{KeyEq(e.PrimaryKey.Name, key)})
	if err != nil {
		return nil, err
	}
	items, err := s.load(ctx, e, c)
	if err != nil {
		return nil, strata.NewQueryError(e.Name, "select", err)
	}
	if len(items) == 0 {
		return nil, strata.NewNotFoundErrorWithID(e.Name, key)
	}
	return items[0], nil
}

// FetchOptions pages and sorts a Fetch.
type FetchOptions struct {
	// Count is the maximum number of instances returned, all when zero.
	Count int
	// Offset is the number of matching rows skipped.
	Offset int
	// SortField orders the rows. Without it the backend order applies.
	SortField  string
	Descending bool
	// Filter restricts the rows, nil for all rows.
	Filter         *Filter
	FillReferences bool
}

// Fetch returns one page of instances.
func (s *Store) Fetch(ctx context.Context, entity string, o FetchOptions) ([]strata.Accessor, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return nil, err
	}
	var filters []Filter
	if o.Filter != nil {
		filters = []Filter{*o.Filter}
	}
	c, err := s.buildSelect(e, filters, false)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(c.text)
	if o.SortField != "" {
		f, ok := e.Field(o.SortField)
		if !ok {
			return nil, strata.NewConfigError(strata.ErrInvalidField, e.Name, o.SortField, "unknown sort field")
		}
		sb.WriteString(" ORDER BY " + s.dialect.Comparable(f.Type, s.dialect.Quote(f.Name)))
		if o.Descending {
			sb.WriteString(" DESC")
		}
	}
	if o.Count > 0 || o.Offset > 0 {
		limit := o.Count
		if limit <= 0 {
			limit = math.MaxInt32
		}
		orderBy, clause := s.dialect.LimitOffset(limit, max(o.Offset, 0))
		if o.SortField == "" && orderBy != "" {
			sb.WriteString(" " + orderBy)
		}
		sb.WriteString(" " + clause)
	}
	c.text = sb.String()
	items, err := s.load(ctx, e, c)
	if err != nil {
		return nil, strata.NewQueryError(e.Name, "fetch", err)
	}
	if o.FillReferences {
		if err := s.newFiller(true).fill(ctx, e, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}
