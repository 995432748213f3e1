// Package mixin provides reusable field sets for strata entities.
//
// A mixin is embedded in an entity declaration through its Mixin method.
// Its fields come before the entity's own fields:
//
//	type Invoice struct {
//		strata.Schema
//		ID        int
//		CreatedAt time.Time
//		Version   int64
//	}
//
//	func (Invoice) Mixin() []strata.Mixin {
//		return []strata.Mixin{
//			mixin.Time{},
//			mixin.Version{},
//		}
//	}
//
// The entity still reads and writes the mixin values through its
// Get and Set methods.
package mixin

import (
	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/field"
)

// Schema is the default implementation for the strata.Mixin interface.
// It should be embedded in all custom mixin definitions.
//
//	type Audit struct {
//		mixin.Schema
//	}
//
//	func (Audit) Fields() []strata.Field {
//		return []strata.Field{
//			field.String("CreatedBy").MaxLen(64),
//		}
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []strata.Field { return nil }

// Edges returns the references of the mixin.
func (Schema) Edges() []strata.Edge { return nil }

var _ strata.Mixin = (*Schema)(nil)

// Time adds a CreatedAt field set to the current time on insert when
// it is zero.
type Time struct {
	Schema
}

// Fields returns the CreatedAt field.
func (Time) Fields() []strata.Field {
	return []strata.Field{
		field.Time("CreatedAt").
			DefaultNow().
			Comment("Time the row was inserted"),
	}
}

// Version adds a Version row-version field. The store starts it at 1
// and increments it on every update, or reads it back from backends
// that assign it.
type Version struct {
	Schema
}

// Fields returns the Version field.
func (Version) Fields() []strata.Field {
	return []strata.Field{
		field.RowVersion("Version").
			Comment("Row version, changed on every update"),
	}
}

// Searchable wraps a mixin and marks all its fields searchable in the
// given order, so each gets a secondary index.
//
//	mixin.Searchable(mixin.Time{}, field.Descending)
func Searchable(m strata.Mixin, order field.SearchOrder) strata.Mixin {
	return searchable{Mixin: m, order: order}
}

type searchable struct {
	strata.Mixin
	order field.SearchOrder
}

func (s searchable) Fields() []strata.Field {
	fields := s.Mixin.Fields()
	for i := range fields {
		fields[i].Descriptor().SearchOrder = s.order
	}
	return fields
}
