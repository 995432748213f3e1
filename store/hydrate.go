package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/syssam/strata"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
)

// checkOrdinals returns the column position of every field. Positions are
// read once from an empty result set and cached on the entity until its
// table changes.
func (s *Store) checkOrdinals(ctx context.Context, q dsql.ExecQuerier, e *schema.Entity) ([]int, error) {
	if ord, ok := e.Ordinals(); ok {
		return ord, nil
	}
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+s.dialect.Quote(e.Name)+" WHERE 1 = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return e.SetOrdinals(cols), nil
}

// materialize reads every row into new instances of the entity. It
// closes rows.
func (s *Store) materialize(e *schema.Entity, rows *sql.Rows, ord []int) ([]strata.Accessor, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for _, i := range ord {
		if i >= len(cols) {
			e.InvalidateOrdinals()
			return nil, fmt.Errorf("store: %s: table layout changed, retry the query", e.Name)
		}
	}
	var (
		out  []strata.Accessor
		vals = make([]any, len(cols))
		ptrs = make([]any, len(cols))
	)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		v, err := s.hydrate(e, vals, ord)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// hydrate builds one instance from the values of a row.
func (s *Store) hydrate(e *schema.Entity, vals []any, ord []int) (strata.Accessor, error) {
	v := e.New()
	for i, f := range e.Fields {
		if ord[i] < 0 {
			continue
		}
		fv, err := s.decode(e, f, vals[ord[i]])
		if err != nil {
			return nil, err
		}
		if err := v.Set(f.Name, fv); err != nil {
			return nil, fmt.Errorf("store: set %s.%s: %w", e.Name, f.Name, err)
		}
	}
	return v, nil
}

// load runs a select and materializes its rows on one session.
func (s *Store) load(ctx context.Context, e *schema.Entity, c *command) ([]strata.Accessor, error) {
	ss, err := s.session(ctx, dsql.Data)
	if err != nil {
		return nil, err
	}
	defer s.done(ss)
	ord, err := s.checkOrdinals(ctx, ss.q, e)
	if err != nil {
		return nil, err
	}
	rows, release, err := s.query(ctx, ss, c)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.materialize(e, rows, ord)
}
