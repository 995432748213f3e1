// Package fixture declares the entities shared by the package tests.
package fixture

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/strata"
	"github.com/syssam/strata/codec"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Customer has many orders.
type Customer struct {
	strata.Schema
	ID       int
	Name     string
	Email    *string
	Settings *Settings
	Orders   []*Order
}

// Settings is stored in an object field.
type Settings struct {
	Theme  string `msgpack:"theme"`
	Emails bool   `msgpack:"emails"`
}

// Fields of the Customer.
func (Customer) Fields() []strata.Field {
	return []strata.Field{
		field.Int("ID").PrimaryKey(),
		field.String("Name").MaxLen(50).Searchable(field.Ascending),
		field.String("Email").MaxLen(100).Nullable(),
		field.Object("Settings", func() any { return &Settings{} }).Codec(codec.Msgpack).Nullable(),
	}
}

// Edges of the Customer.
func (Customer) Edges() []strata.Edge {
	return []strata.Edge{
		edge.To("Orders", Order.Type).Field("CustomerID").CascadeDelete(),
	}
}

// Config of the Customer.
func (Customer) Config() strata.Config {
	return strata.Config{Key: strata.KeyIdentity}
}

// Get implements strata.Accessor.
func (c *Customer) Get(name string) any {
	switch name {
	case "ID":
		return c.ID
	case "Name":
		return c.Name
	case "Email":
		if c.Email == nil {
			return nil
		}
		return *c.Email
	case "Settings":
		if c.Settings == nil {
			return nil
		}
		return c.Settings
	case "Orders":
		return strata.Accessors(c.Orders)
	}
	return nil
}

// Set implements strata.Accessor.
func (c *Customer) Set(name string, v any) (err error) {
	switch name {
	case "ID":
		c.ID, err = as[int](name, v)
	case "Name":
		c.Name, err = as[string](name, v)
	case "Email":
		c.Email = nil
		if v != nil {
			s, serr := as[string](name, v)
			c.Email, err = &s, serr
		}
	case "Settings":
		c.Settings = nil
		if v != nil {
			c.Settings, err = as[*Settings](name, v)
		}
	case "Orders":
		c.Orders = strata.As[*Order](v)
	default:
		err = fmt.Errorf("fixture: unknown Customer field %q", name)
	}
	return err
}

// Order belongs to a customer.
type Order struct {
	strata.Schema
	OrderID       int
	InvoiceNumber string
	CustomerID    int
	Total         decimal.Decimal
	PlacedAt      time.Time
	Customer      *Customer
}

// Fields of the Order.
func (Order) Fields() []strata.Field {
	return []strata.Field{
		field.Int("OrderID").PrimaryKey(),
		field.String("InvoiceNumber").MaxLen(20).Searchable(field.Descending),
		field.Int("CustomerID"),
		field.Decimal("Total").Precision(12, 2).Default(decimal.Zero),
		field.Time("PlacedAt").DefaultNow(),
	}
}

// Edges of the Order.
func (Order) Edges() []strata.Edge {
	return []strata.Edge{
		edge.From("Customer", Customer.Type).Field("CustomerID"),
	}
}

// Config of the Order.
func (Order) Config() strata.Config {
	return strata.Config{Table: "Orders", Key: strata.KeyIdentity}
}

// Get implements strata.Accessor.
func (o *Order) Get(name string) any {
	switch name {
	case "OrderID":
		return o.OrderID
	case "InvoiceNumber":
		return o.InvoiceNumber
	case "CustomerID":
		return o.CustomerID
	case "Total":
		return o.Total
	case "PlacedAt":
		return o.PlacedAt
	case "Customer":
		if o.Customer == nil {
			return nil
		}
		return o.Customer
	}
	return nil
}

// Set implements strata.Accessor.
func (o *Order) Set(name string, v any) (err error) {
	switch name {
	case "OrderID":
		o.OrderID, err = as[int](name, v)
	case "InvoiceNumber":
		o.InvoiceNumber, err = as[string](name, v)
	case "CustomerID":
		o.CustomerID, err = as[int](name, v)
	case "Total":
		o.Total, err = as[decimal.Decimal](name, v)
	case "PlacedAt":
		o.PlacedAt, err = as[time.Time](name, v)
	case "Customer":
		o.Customer = strata.One[*Customer](v)
	default:
		err = fmt.Errorf("fixture: unknown Order field %q", name)
	}
	return err
}

// Book covers the GUID key scheme, row versions and durations.
type Book struct {
	strata.Schema
	ID       uuid.UUID
	Title    string
	Pages    int16
	Rating   float32
	ReadTime time.Duration
	Cover    []byte
	Version  int64
	Active   bool
}

// Fields of the Book.
func (Book) Fields() []strata.Field {
	return []strata.Field{
		field.UUID("ID").PrimaryKey(),
		field.String("Title").MaxLen(80).Unique(),
		field.Int16("Pages"),
		field.Float32("Rating"),
		field.Duration("ReadTime"),
		field.Bytes("Cover").Nullable(),
		field.RowVersion("Version"),
		field.Bool("Active").Default(true),
	}
}

// Config of the Book.
func (Book) Config() strata.Config {
	return strata.Config{Key: strata.KeyGUID}
}

// Get implements strata.Accessor.
func (b *Book) Get(name string) any {
	switch name {
	case "ID":
		return b.ID
	case "Title":
		return b.Title
	case "Pages":
		return b.Pages
	case "Rating":
		return b.Rating
	case "ReadTime":
		return b.ReadTime
	case "Cover":
		if b.Cover == nil {
			return nil
		}
		return b.Cover
	case "Version":
		return b.Version
	case "Active":
		return b.Active
	}
	return nil
}

// Set implements strata.Accessor.
func (b *Book) Set(name string, v any) (err error) {
	switch name {
	case "ID":
		b.ID, err = as[uuid.UUID](name, v)
	case "Title":
		b.Title, err = as[string](name, v)
	case "Pages":
		b.Pages, err = as[int16](name, v)
	case "Rating":
		b.Rating, err = as[float32](name, v)
	case "ReadTime":
		b.ReadTime, err = as[time.Duration](name, v)
	case "Cover":
		b.Cover = nil
		if v != nil {
			b.Cover, err = as[[]byte](name, v)
		}
	case "Version":
		b.Version, err = as[int64](name, v)
	case "Active":
		b.Active, err = as[bool](name, v)
	default:
		err = fmt.Errorf("fixture: unknown Book field %q", name)
	}
	return err
}

func as[T any](name string, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("fixture: field %q expects %T, got %T", name, zero, v)
	}
	return t, nil
}

var (
	_ strata.Entity = (*Customer)(nil)
	_ strata.Entity = (*Order)(nil)
	_ strata.Entity = (*Book)(nil)
)
