package sql

import (
	"context"
	"database/sql"
	"errors"
)

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type (
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in BeginTx.
	TxOptions = sql.TxOptions
	// IsolationLevel is an alias to sql.IsolationLevel.
	IsolationLevel = sql.IsolationLevel
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// Rows wraps the sql.Rows to avoid locks copy.
type Rows struct{ ColumnScanner }

// NewRows returns rows that call closer after closing the result set.
// closer typically releases the connection the rows were read from.
func NewRows(rows ColumnScanner, closer func() error) *Rows {
	if closer == nil {
		return &Rows{rows}
	}
	return &Rows{&rowsWithCloser{ColumnScanner: rows, closer: closer}}
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
	closed bool
}

// Close closes the underlying ColumnScanner and calls the custom closer
// once.
func (r *rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	if r.closed {
		return err
	}
	r.closed = true
	return errors.Join(err, r.closer())
}
