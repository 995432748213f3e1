package edge_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
)

type (
	Customer struct{ strata.Schema }
	Order    struct{ strata.Schema }
)

func TestEdgeTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name: "by_type",
			build: func() *edge.Descriptor {
				return edge.To("Orders", Order.Type).Field("CustomerID").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.Equal(t, "Orders", desc.Name)
				assert.Equal(t, edge.OneToMany, desc.Direction)
				assert.Equal(t, "Order", desc.Entity)
				assert.Equal(t, reflect.TypeOf(Order{}), desc.Type)
				assert.Equal(t, "CustomerID", desc.Field)
				assert.False(t, desc.CascadeDelete)
			},
		},
		{
			name: "by_name",
			build: func() *edge.Descriptor {
				return edge.To("Lines", "OrderLine").Field("OrderID").CascadeDelete().Comment("lines").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.Equal(t, "OrderLine", desc.Entity)
				assert.Nil(t, desc.Type)
				assert.True(t, desc.CascadeDelete)
				assert.Equal(t, "lines", desc.Comment)
			},
		},
		{
			name: "missing_field",
			build: func() *edge.Descriptor {
				return edge.To("Orders", Order.Type).Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.ErrorContains(t, desc.Err, "missing foreign-key field")
			},
		},
		{
			name: "invalid_target",
			build: func() *edge.Descriptor {
				return edge.To("Orders", 42).Field("CustomerID").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Error(t, desc.Err)
			},
		},
		{
			name: "nil_target",
			build: func() *edge.Descriptor {
				return edge.To("Orders", nil).Field("CustomerID").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.ErrorContains(t, desc.Err, "missing related entity")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, tt.build())
		})
	}
}

func TestEdgeFrom(t *testing.T) {
	t.Parallel()

	desc := edge.From("Customer", Customer.Type).Field("CustomerID").Descriptor()
	require.NoError(t, desc.Err)
	assert.Equal(t, edge.ManyToOne, desc.Direction)
	assert.Equal(t, "Customer", desc.Entity)

	desc = edge.From("", "Customer").Field("CustomerID").Descriptor()
	assert.EqualError(t, desc.Err, "edge name cannot be empty")
}

func TestDirection(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "one-to-many", edge.OneToMany.String())
	assert.Equal(t, "many-to-one", edge.ManyToOne.String())
	assert.Equal(t, "invalid", edge.Direction(0).String())
}
