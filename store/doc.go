// Package store implements the entity store over a dialect.
//
// A Store maps registered entities to tables. It creates and evolves the
// tables, builds parameterized statements from filters, hydrates rows into
// entity values and cascades writes across references:
//
//	s, err := store.Open(sqlite.New(), "file:shop.db")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	if err := s.Register(&Customer{}, &Order{}); err != nil {
//		return err
//	}
//	if _, err := s.EnsureCompatibility(ctx); err != nil {
//		return err
//	}
//	c := &Customer{Name: "Acme", Orders: []*Order{{InvoiceNumber: "A-1"}}}
//	if err := s.Insert(ctx, c, store.WithReferences()); err != nil {
//		return err
//	}
//	customers, err := store.Select[*Customer](ctx, s, store.FillReferences())
//
// Connections are handed out by a dsql.Manager according to the store's
// connection behavior. While a transaction is open, every operation of the
// store runs on the transaction.
package store
