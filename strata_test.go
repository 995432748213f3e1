package strata_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
)

type item struct {
	strata.Schema
	ID int
}

func (i *item) Get(name string) any {
	if name == "ID" {
		return i.ID
	}
	return nil
}

func (i *item) Set(name string, v any) error {
	if name != "ID" {
		return fmt.Errorf("unknown field %q", name)
	}
	i.ID, _ = v.(int)
	return nil
}

func TestSchemaDefaultMethods(t *testing.T) {
	t.Parallel()

	s := item{}
	assert.Nil(t, s.Fields())
	assert.Nil(t, s.Edges())
	assert.Equal(t, strata.Config{}, s.Config())

	var _ strata.Entity = (*item)(nil)
}

func TestKeyScheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", strata.KeyNone.String())
	assert.Equal(t, "identity", strata.KeyIdentity.String())
	assert.Equal(t, "guid", strata.KeyGUID.String())
}

func TestAccessorConversions(t *testing.T) {
	t.Parallel()

	items := []*item{{ID: 1}, {ID: 2}}
	acc := strata.Accessors(items)
	require.Len(t, acc, 2)
	assert.Equal(t, 2, acc[1].Get("ID"))
	assert.Nil(t, strata.Accessors[*item](nil))

	back := strata.As[*item](acc)
	assert.Equal(t, items, back)

	mixed := []strata.Accessor{&item{ID: 3}, strata.NewDynamicEntity("Other", "")}
	assert.Len(t, strata.As[*item](mixed), 1)
	assert.Nil(t, strata.As[*item](nil))
	assert.Nil(t, strata.As[*item]("not a slice"))

	assert.Equal(t, items[0], strata.One[*item](strata.Accessor(items[0])))
	assert.Nil(t, strata.One[*item](nil))
}

func TestDynamicEntity(t *testing.T) {
	t.Parallel()

	e := strata.NewDynamicEntity("Invoice", "ID", "ID", "Number")
	assert.Equal(t, "Invoice", e.Name())
	assert.Equal(t, "ID", e.KeyField())
	assert.Nil(t, e.Key())
	assert.Nil(t, e.Get("Number"))

	require.NoError(t, e.Set("ID", int64(7)))
	require.NoError(t, e.Set("Number", "INV-7"))
	require.NoError(t, e.Set("Total", 10.5))
	assert.Equal(t, int64(7), e.Key())
	assert.Equal(t, []string{"ID", "Number", "Total"}, e.Fields())
	assert.Equal(t, map[string]any{"ID": int64(7), "Number": "INV-7", "Total": 10.5}, e.Map())
	assert.Equal(t, "Invoice(ID=7, Number=INV-7, Total=10.5)", e.String())
	assert.Error(t, e.Set("", 1))

	keyless := strata.NewDynamicEntity("Log", "")
	assert.Nil(t, keyless.Key())
}
