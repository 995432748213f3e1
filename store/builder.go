package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/syssam/strata"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// Op is a filter operator.
type Op uint8

// Filter operators.
const (
	OpEq Op = iota
	OpLike
	OpLT
	OpGT
)

var opSQL = [...]string{OpEq: "=", OpLike: "LIKE", OpLT: "<", OpGT: ">"}

// String returns the SQL operator.
func (o Op) String() string {
	if int(o) < len(opSQL) {
		return opSQL[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Filter is one condition of a query. Conditions are joined with AND.
type Filter struct {
	Field string
	Op    Op
	Value any
	// IsKey marks a condition on the primary key. It lets the store seek
	// the key index directly where the backend supports it.
	IsKey bool
}

// Eq matches rows whose field equals v. A nil v matches NULL.
func Eq(field string, v any) Filter { return Filter{Field: field, Op: OpEq, Value: v} }

// Like matches rows whose field matches the LIKE pattern.
func Like(field, pattern string) Filter { return Filter{Field: field, Op: OpLike, Value: pattern} }

// LT matches rows whose field is less than v.
func LT(field string, v any) Filter { return Filter{Field: field, Op: OpLT, Value: v} }

// GT matches rows whose field is greater than v.
func GT(field string, v any) Filter { return Filter{Field: field, Op: OpGT, Value: v} }

// KeyEq matches the row with the given primary key.
func KeyEq(field string, v any) Filter {
	return Filter{Field: field, Op: OpEq, Value: v, IsKey: true}
}

// command is a rendered statement.
type command struct {
	text   string
	params []dsql.Param
	count  bool
}

// args returns the bound parameter values.
func (c *command) args() []any {
	args := make([]any, len(c.params))
	for i, p := range c.params {
		args[i] = p.Value
	}
	return args
}

// cacheable reports if the command may go through the statement cache.
func (c *command) cacheable() bool { return !c.count }

// bind appends a parameter and returns its placeholder.
func (s *Store) bind(c *command, v any) string {
	i := len(c.params)
	c.params = append(c.params, dsql.Param{Name: fmt.Sprintf("p%d", i), Value: s.dialect.Arg(i, v)})
	return s.dialect.Placeholder(i)
}

// where renders the conditions of filters into c.
func (s *Store) where(e *schema.Entity, c *command, sb *strings.Builder, filters []Filter) error {
	for i, flt := range filters {
		f, ok := e.Field(flt.Field)
		if !ok {
			return strata.NewConfigError(strata.ErrInvalidField, e.Name, flt.Field, "unknown filter field")
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		col := s.dialect.Quote(f.Name)
		if flt.Op == OpLT || flt.Op == OpGT {
			col = s.dialect.Comparable(f.Type, col)
		}
		sb.WriteString(col)
		if flt.Value == nil {
			if flt.Op != OpEq {
				return fmt.Errorf("store: %s.%s: operator %s needs a value", e.Name, f.Name, flt.Op)
			}
			sb.WriteString(" IS NULL")
			continue
		}
		v := flt.Value
		if flt.Op != OpLike {
			var err error
			if v, err = s.coerce(e, f, v); err != nil {
				return err
			}
			if v, err = s.encode(e, f, v); err != nil {
				return err
			}
		}
		p := s.bind(c, v)
		if flt.Op == OpLT || flt.Op == OpGT {
			p = s.dialect.Comparable(f.Type, p)
		}
		sb.WriteString(" " + flt.Op.String() + " " + p)
	}
	return nil
}

// buildSelect renders SELECT * or SELECT COUNT(*) over the entity table.
func (s *Store) buildSelect(e *schema.Entity, filters []Filter, count bool) (*command, error) {
	c := &command{count: count}
	var sb strings.Builder
	if count {
		sb.WriteString("SELECT COUNT(*) FROM ")
	} else {
		sb.WriteString("SELECT * FROM ")
	}
	sb.WriteString(s.dialect.Quote(e.Name))
	if err := s.where(e, c, &sb, filters); err != nil {
		return nil, err
	}
	c.text = sb.String()
	return c, nil
}

// buildDirect renders a select that seeks an index directly. ok is false
// when the filters or the backend do not allow it; the caller then falls
// back to buildSelect.
func (s *Store) buildDirect(ctx context.Context, e *schema.Entity, filters []Filter) (c *command, ok bool, err error) {
	if len(filters) != 1 || filters[0].Op != OpEq || filters[0].Value == nil {
		return nil, false, nil
	}
	flt := filters[0]
	f, found := e.Field(flt.Field)
	if !found {
		return nil, false, nil
	}
	var (
		index  string
		maxLen = -1
	)
	switch {
	case f.PrimaryKey || flt.IsKey:
		if !f.PrimaryKey {
			return nil, false, nil
		}
		if index, err = s.primaryKeyIndex(ctx, e); err != nil {
			return nil, false, err
		}
	case f.SearchOrder != field.NotSearchable:
		info, err := s.EnsureIndex(ctx, e.Name, f.Name, f.SearchOrder)
		if err != nil {
			return nil, false, err
		}
		index, maxLen = info.Name, info.MaxLength
	}
	hint := s.dialect.IndexHint(index)
	if index == "" || hint == "" {
		return nil, false, nil
	}
	v, err := s.coerce(e, f, flt.Value)
	if err != nil {
		return nil, false, err
	}
	if str, isStr := v.(string); isStr && maxLen > 0 && utf8.RuneCountInString(str) > maxLen {
		v = string([]rune(str)[:maxLen])
	}
	if v, err = s.encode(e, f, v); err != nil {
		return nil, false, err
	}
	c = &command{}
	c.text = "SELECT * FROM " + s.dialect.Quote(e.Name) + " " + hint +
		" WHERE " + s.dialect.Quote(f.Name) + " = " + s.bind(c, v)
	return c, true, nil
}

// selectCommand picks the table-direct path when possible.
func (s *Store) selectCommand(ctx context.Context, e *schema.Entity, filters []Filter) (*command, error) {
	c, ok, err := s.buildDirect(ctx, e, filters)
	if err != nil {
		return nil, err
	}
	if ok {
		return c, nil
	}
	return s.buildSelect(e, filters, false)
}
