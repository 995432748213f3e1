package schema_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

func TestFromEntity(t *testing.T) {
	t.Parallel()

	e, err := schema.FromEntity(&fixture.Customer{})
	require.NoError(t, err)
	assert.Equal(t, "Customer", e.Name)
	assert.Equal(t, strata.KeyIdentity, e.Key)
	require.NotNil(t, e.PrimaryKey)
	assert.Equal(t, "ID", e.PrimaryKey.Name)
	assert.Len(t, e.Fields, 4)
	require.Len(t, e.References, 1)
	assert.Equal(t, edge.OneToMany, e.References[0].Direction)
	assert.False(t, e.Dynamic)
	assert.Equal(t, reflect.TypeOf(&fixture.Customer{}), e.GoType())

	f, ok := e.Field("name")
	require.True(t, ok)
	assert.Equal(t, "Name", f.Name)
	_, ok = e.Field("missing")
	assert.False(t, ok)

	_, ok = e.Reference("Orders")
	assert.True(t, ok)

	v := e.New()
	require.IsType(t, &fixture.Customer{}, v)
	require.NoError(t, v.Set("ID", 5))
	assert.Equal(t, 5, e.KeyValue(v))

	o, err := schema.FromEntity(&fixture.Order{})
	require.NoError(t, err)
	assert.Equal(t, "Orders", o.Name)
}

type (
	noKey       struct{ base }
	badIdentity struct{ base }
	badGUID     struct{ base }
	noCodec     struct{ base }
	withCodec   struct{ base }
	badO2M      struct{ base }
	badM2O      struct{ base }
	twoKeys     struct{ base }
	badField    struct{ base }
)

type base struct{ strata.Schema }

func (base) Get(string) any        { return nil }
func (base) Set(string, any) error { return nil }

func (noKey) Fields() []strata.Field { return []strata.Field{field.Int("ID")} }
func (noKey) Config() strata.Config  { return strata.Config{Key: strata.KeyIdentity} }

func (badIdentity) Fields() []strata.Field { return []strata.Field{field.String("ID").PrimaryKey()} }
func (badIdentity) Config() strata.Config  { return strata.Config{Key: strata.KeyIdentity} }

func (badGUID) Fields() []strata.Field { return []strata.Field{field.Int("ID").PrimaryKey()} }
func (badGUID) Config() strata.Config  { return strata.Config{Key: strata.KeyGUID} }

func (noCodec) Fields() []strata.Field {
	return []strata.Field{field.Object("Data", func() any { return &map[string]int{} })}
}

func (withCodec) Fields() []strata.Field {
	return []strata.Field{field.Object("Data", func() any { return &map[string]int{} })}
}
func (withCodec) Serialize(string, any) ([]byte, error)   { return nil, nil }
func (withCodec) Deserialize(string, []byte) (any, error) { return nil, nil }

func (badO2M) Fields() []strata.Field { return []strata.Field{field.Int("ID").PrimaryKey()} }
func (badO2M) Edges() []strata.Edge {
	return []strata.Edge{edge.To("Orders", fixture.Order.Type).Field("CustomerID")}
}

func (badM2O) Fields() []strata.Field { return []strata.Field{field.Int("ID").PrimaryKey()} }
func (badM2O) Edges() []strata.Edge {
	return []strata.Edge{edge.From("Customer", fixture.Customer.Type).Field("CustomerID")}
}

func (twoKeys) Fields() []strata.Field {
	return []strata.Field{field.Int("A").PrimaryKey(), field.Int("B").PrimaryKey()}
}

func (badField) Fields() []strata.Field { return []strata.Field{field.String("Name").MaxLen(-1)} }

func TestFromEntityErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value strata.Entity
		kind  error
	}{
		{"no_key", &noKey{}, strata.ErrNoPrimaryKey},
		{"bad_identity", &badIdentity{}, strata.ErrUnsupportedIdentity},
		{"bad_guid", &badGUID{}, strata.ErrUnsupportedIdentity},
		{"no_codec", &noCodec{}, strata.ErrMissingSerializer},
		{"bad_o2m", &badO2M{}, strata.ErrInvalidReference},
		{"bad_m2o", &badM2O{}, strata.ErrInvalidReference},
		{"two_keys", &twoKeys{}, strata.ErrInvalidField},
		{"bad_field", &badField{}, strata.ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.FromEntity(tt.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.True(t, strata.IsConfigError(err))
		})
	}

	e, err := schema.FromEntity(&withCodec{})
	require.NoError(t, err)
	assert.NotNil(t, e.Codec)

	_, err = schema.FromEntity(noKey{})
	assert.ErrorContains(t, err, "must be a pointer")
}

func TestOrdinals(t *testing.T) {
	t.Parallel()

	e, err := schema.FromEntity(&fixture.Customer{})
	require.NoError(t, err)
	_, ok := e.Ordinals()
	assert.False(t, ok)

	ord := e.SetOrdinals([]string{"Name", "id", "Extra", "Settings"})
	assert.Equal(t, []int{1, 0, -1, 3}, ord)
	cached, ok := e.Ordinals()
	assert.True(t, ok)
	assert.Equal(t, ord, cached)

	e.InvalidateOrdinals()
	_, ok = e.Ordinals()
	assert.False(t, ok)
}

func TestIndexCache(t *testing.T) {
	t.Parallel()

	e, err := schema.FromEntity(&fixture.Customer{})
	require.NoError(t, err)
	_, ok := e.PrimaryKeyIndex()
	assert.False(t, ok)
	e.SetPrimaryKeyIndex("")
	name, ok := e.PrimaryKeyIndex()
	assert.True(t, ok)
	assert.Empty(t, name)

	assert.False(t, e.HasIndex("ORM_IDX_Customer_Name_ASC"))
	e.AddIndex("ORM_IDX_Customer_Name_ASC")
	assert.True(t, e.HasIndex("ORM_IDX_Customer_Name_ASC"))
	assert.Equal(t, []string{"ORM_IDX_Customer_Name_ASC"}, e.Indexes())
}

func TestNewDynamic(t *testing.T) {
	t.Parallel()

	e, err := schema.NewDynamic("Invoice", []*field.Descriptor{
		field.Int64("ID").Descriptor(),
		field.String("Number").Descriptor(),
	}, "ID", strata.KeyIdentity)
	require.NoError(t, err)
	assert.True(t, e.Dynamic)
	require.NotNil(t, e.PrimaryKey)
	assert.Equal(t, "ID", e.PrimaryKey.Name)

	v := e.New()
	d, ok := v.(*strata.DynamicEntity)
	require.True(t, ok)
	assert.Equal(t, "Invoice", d.Name())
	assert.Equal(t, []string{"ID", "Number"}, d.Fields())

	shared := []*field.Descriptor{
		field.Int64("ID").Descriptor(),
		field.Int64("Ref").Descriptor(),
	}
	byID, err := schema.NewDynamic("ByID", shared, "ID", strata.KeyNone)
	require.NoError(t, err)
	byRef, err := schema.NewDynamic("ByRef", shared, "Ref", strata.KeyNone)
	require.NoError(t, err)
	assert.Equal(t, "ID", byID.PrimaryKey.Name)
	assert.Equal(t, "Ref", byRef.PrimaryKey.Name)
	assert.False(t, shared[0].PrimaryKey)
	assert.False(t, shared[1].PrimaryKey)
	assert.NotSame(t, shared[0], byID.Fields[0])

	_, err = schema.NewDynamic("", nil, "", strata.KeyNone)
	assert.Error(t, err)
	_, err = schema.NewDynamic("Log", []*field.Descriptor{field.String("Line").Descriptor()}, "", strata.KeyIdentity)
	assert.ErrorIs(t, err, strata.ErrNoPrimaryKey)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := schema.NewRegistry()
	c, err := r.Register(&fixture.Customer{})
	require.NoError(t, err)
	again, err := r.Register(&fixture.Customer{})
	require.NoError(t, err)
	assert.Same(t, c, again)

	got, ok := r.Lookup("customer")
	require.True(t, ok)
	assert.Same(t, c, got)

	got, ok = r.LookupType(reflect.TypeOf(&fixture.Customer{}))
	require.True(t, ok)
	assert.Same(t, c, got)

	o, err := r.Related(c.References[0])
	require.NoError(t, err)
	assert.Equal(t, "Orders", o.Name)

	res, err := r.Resolve(&fixture.Book{})
	require.NoError(t, err)
	assert.Equal(t, "Book", res.Name)
	assert.Len(t, r.Entities(), 3)

	_, err = r.Resolve(strata.NewDynamicEntity("Nope", ""))
	assert.ErrorIs(t, err, strata.ErrUnknownEntity)
	_, err = r.Resolve(nil)
	assert.ErrorIs(t, err, strata.ErrUnknownEntity)

	_, err = r.Related(edge.To("Things", "Thing").Field("X").Descriptor())
	assert.ErrorIs(t, err, strata.ErrUnknownEntity)

	assert.True(t, r.Remove("Book"))
	assert.False(t, r.Remove("Book"))
	_, ok = r.LookupType(reflect.TypeOf(&fixture.Book{}))
	assert.False(t, ok)
}

func TestRegistryDynamic(t *testing.T) {
	t.Parallel()

	r := schema.NewRegistry()
	_, err := r.Register(&fixture.Customer{})
	require.NoError(t, err)

	clash, err := schema.NewDynamic("Customer", []*field.Descriptor{field.Int("ID").Descriptor()}, "", strata.KeyNone)
	require.NoError(t, err)
	_, err = r.Add(clash)
	assert.ErrorContains(t, err, "already registered")

	d1, err := schema.NewDynamic("Invoice", []*field.Descriptor{field.Int("ID").Descriptor()}, "", strata.KeyNone)
	require.NoError(t, err)
	_, err = r.Add(d1)
	require.NoError(t, err)
	d2, err := schema.NewDynamic("Invoice", []*field.Descriptor{field.Int("ID").Descriptor(), field.String("N").Descriptor()}, "", strata.KeyNone)
	require.NoError(t, err)
	got, err := r.Add(d2)
	require.NoError(t, err)
	assert.Same(t, d2, got)

	res, err := r.Resolve(strata.NewDynamicEntity("Invoice", ""))
	require.NoError(t, err)
	assert.Same(t, d2, res)
}

func TestRegistryConcurrent(t *testing.T) {
	t.Parallel()

	r := schema.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Register(&fixture.Order{})
			assert.NoError(t, err)
			_, _ = r.Lookup("Orders")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Entities(), 1)
}
