// Package edge provides fluent builders for declaring entity references.
//
// A reference is a foreign-key relationship between two entities. Its
// direction decides where the foreign key lives and in which order rows
// are written when inserts cascade.
//
//	// Customer has many Orders. Order.CustomerID holds the customer key.
//	edge.To("Orders", Order.Type).Field("CustomerID")
//
//	// Order belongs to a Customer. Same foreign key, seen from the child.
//	edge.From("Customer", Customer.Type).Field("CustomerID")
//
// One-to-many references are exchanged through a []strata.Accessor
// accessor, many-to-one references through a single strata.Accessor.
//
// Related rows are deleted with their owner only when asked:
//
//	edge.To("Lines", Line.Type).Field("OrderID").CascadeDelete()
package edge
