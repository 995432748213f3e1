// Package schema holds the metadata registry of strata entities.
//
// Entity declarations come in two variants. Typed entities embed
// strata.Schema and declare their layout with the builders of the
// [field] and [edge] subpackages:
//
//	type Order struct {
//	    strata.Schema
//	    OrderID       int
//	    InvoiceNumber string
//	    CustomerID    int
//	}
//
//	func (Order) Fields() []strata.Field {
//	    return []strata.Field{
//	        field.Int("OrderID").PrimaryKey(),
//	        field.String("InvoiceNumber").MaxLen(20).Searchable(field.Ascending),
//	        field.Int("CustomerID"),
//	    }
//	}
//
//	func (Order) Config() strata.Config {
//	    return strata.Config{Key: strata.KeyIdentity}
//	}
//
// Dynamic entities are discovered from an existing table and carry their
// values in a strata.DynamicEntity.
//
// A Registry maps names and Go types to their Entity metadata. The layout
// is checked once at registration; afterwards lookups never lock. Each
// Entity also caches what the store learns about its table: the column
// ordinals of its fields and the names of its indexes.
package schema
