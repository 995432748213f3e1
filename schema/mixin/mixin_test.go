package mixin_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sqlite"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/mixin"
	"github.com/syssam/strata/store"
)

type Invoice struct {
	strata.Schema
	ID        int
	Number    string
	CreatedAt time.Time
	Version   int64
}

func (Invoice) Mixin() []strata.Mixin {
	return []strata.Mixin{
		mixin.Searchable(mixin.Time{}, field.Descending),
		mixin.Version{},
	}
}

func (Invoice) Fields() []strata.Field {
	return []strata.Field{
		field.Int("ID").PrimaryKey(),
		field.String("Number").MaxLen(20),
	}
}

func (Invoice) Config() strata.Config {
	return strata.Config{Key: strata.KeyIdentity}
}

func (i *Invoice) Get(name string) any {
	switch name {
	case "ID":
		return i.ID
	case "Number":
		return i.Number
	case "CreatedAt":
		return i.CreatedAt
	case "Version":
		return i.Version
	}
	return nil
}

func (i *Invoice) Set(name string, v any) error {
	switch name {
	case "ID":
		i.ID = v.(int)
	case "Number":
		i.Number = v.(string)
	case "CreatedAt":
		i.CreatedAt = v.(time.Time)
	case "Version":
		i.Version = v.(int64)
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

func TestSchemaBaseMixin(t *testing.T) {
	m := mixin.Schema{}
	assert.Nil(t, m.Fields())
	assert.Nil(t, m.Edges())
}

func TestMixinFields(t *testing.T) {
	e, err := schema.FromEntity(&Invoice{})
	require.NoError(t, err)

	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"CreatedAt", "Version", "ID", "Number"}, names)

	created, ok := e.Field("CreatedAt")
	require.True(t, ok)
	assert.True(t, created.DefaultNow)
	assert.Equal(t, field.Descending, created.SearchOrder)

	version, ok := e.Field("Version")
	require.True(t, ok)
	assert.Equal(t, field.TypeRowVersion, version.Type)
	assert.Equal(t, "ID", e.PrimaryKey.Name)
}

func TestMixinStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(sqlite.New(), "file:"+filepath.Join(t.TempDir(), "invoices.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Register(&Invoice{}))
	_, err = s.EnsureCompatibility(ctx)
	require.NoError(t, err)

	inv := &Invoice{Number: "INV-1"}
	require.NoError(t, s.Insert(ctx, inv))
	assert.False(t, inv.CreatedAt.IsZero())
	assert.EqualValues(t, 1, inv.Version)

	inv.Number = "INV-2"
	require.NoError(t, s.Update(ctx, inv))
	assert.EqualValues(t, 2, inv.Version)

	e, ok := s.Registry().Lookup("Invoice")
	require.True(t, ok)
	assert.True(t, e.HasIndex("ORM_IDX_Invoice_CreatedAt_DESC"))

	got, err := store.Get[*Invoice](ctx, s, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2", got.Number)
	assert.True(t, got.CreatedAt.Equal(inv.CreatedAt))
}
