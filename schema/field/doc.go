// Package field provides fluent builders for declaring entity fields.
//
// Field names are the column names and the names entity accessors answer to:
//
//	field.Int("ID").PrimaryKey()
//	field.String("Name").MaxLen(100).Searchable(field.Ascending)
//
// # Field Types
//
// Every builder fixes the Go type exchanged through strata.Accessor:
//
//	field.Bool("Active")              // bool
//	field.Int("Count")                // int (also Int16, Int32, Int64)
//	field.Float64("Ratio")            // float64 (also Float32)
//	field.Decimal("Price")            // decimal.Decimal
//	field.String("Name")              // string
//	field.Bytes("Blob")               // []byte
//	field.Time("CreatedAt")           // time.Time
//	field.UUID("ExternalID")          // uuid.UUID
//	field.Duration("Elapsed")         // time.Duration
//	field.RowVersion("Version")       // int64
//	field.Object("Settings", newFn)   // any, serialized by a Codec
//
// # Field Options
//
//	field.String("Email").
//	    Unique().                      // Unique constraint
//	    Nullable().                    // NULL allowed, accessors exchange nil
//	    MaxLen(255).                   // Column length
//	    Default("unknown").            // Applied on insert when the value is nil
//	    Searchable(field.Ascending)    // Secondary index, created with the table
//
// A time field may default to the current timestamp:
//
//	field.Time("CreatedAt").DefaultNow()
//
// # Column Types
//
// Column types come from the dialect and can be overridden per dialect:
//
//	field.String("Code").SchemaType(map[string]string{
//	    dialect.Postgres: "citext",
//	})
package field
