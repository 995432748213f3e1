package store

import (
	"context"

	dsql "github.com/syssam/strata/dialect/sql"
)

// ExecNonQuery runs a statement outside the entity model and returns the
// number of rows affected.
func (s *Store) ExecNonQuery(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.exec(ctx, dsql.Data, query, args...)
	if err != nil {
		return 0, s.constraintError(err)
	}
	return res.RowsAffected()
}

// TryExecNonQuery runs a best-effort statement. Failures are logged and
// reported as false.
func (s *Store) TryExecNonQuery(ctx context.Context, query string, args ...any) bool {
	if _, err := s.exec(ctx, dsql.Maintenance, query, args...); err != nil {
		s.log.WarnContext(ctx, "statement failed", "sql", query, "error", err)
		return false
	}
	return true
}

// ExecScalar runs a query and returns the first column of its first row,
// nil when there is no row.
func (s *Store) ExecScalar(ctx context.Context, query string, args ...any) (any, error) {
	ss, err := s.session(ctx, dsql.Data)
	if err != nil {
		return nil, err
	}
	defer s.done(ss)
	rows, err := ss.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals[0], rows.Err()
}

// ExecReader runs a query and returns its rows. The connection is
// released when the rows are closed, so they must be closed before the
// next operation on a store using a single connection.
func (s *Store) ExecReader(ctx context.Context, query string, args ...any) (*dsql.Rows, error) {
	ss, err := s.session(ctx, dsql.Data)
	if err != nil {
		return nil, err
	}
	rows, err := ss.q.QueryContext(ctx, query, args...)
	if err != nil {
		s.done(ss)
		return nil, err
	}
	return dsql.NewRows(rows, func() error {
		s.done(ss)
		return nil
	}), nil
}
