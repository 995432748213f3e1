package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// WriteOption configures Insert, Update and Save.
type WriteOption func(*writeOptions)

type writeOptions struct {
	references bool
	fields     []string
}

// WithReferences cascades the write to the referenced entities. Parents
// of many-to-one references are written before the entity, children of
// one-to-many references after it. New related rows are inserted, the
// others updated.
func WithReferences() WriteOption {
	return func(o *writeOptions) { o.references = true }
}

// OnlyField restricts an update to the named fields.
func OnlyField(names ...string) WriteOption {
	return func(o *writeOptions) { o.fields = append(o.fields, names...) }
}

func newWriteOptions(opts []WriteOption) *writeOptions {
	o := &writeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *writeOptions) includes(name string) bool {
	if len(o.fields) == 0 {
		return true
	}
	for _, f := range o.fields {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// Insert inserts v. Identity keys, GUID keys, defaults and row versions
// assigned by the store or the backend are set back on v.
func (s *Store) Insert(ctx context.Context, v strata.Accessor, opts ...WriteOption) error {
	e, err := s.resolve(ctx, v)
	if err != nil {
		return err
	}
	if o := newWriteOptions(opts); o.references {
		return s.insertGraph(ctx, e, v, visited{})
	}
	return s.insert(ctx, e, v)
}

// Update writes the fields of v that differ from the stored row. Nothing
// is written when no field changed. It fails with a not-found error when
// the row does not exist.
func (s *Store) Update(ctx context.Context, v strata.Accessor, opts ...WriteOption) error {
	e, err := s.resolve(ctx, v)
	if err != nil {
		return err
	}
	o := newWriteOptions(opts)
	if o.references {
		return s.updateGraph(ctx, e, v, o, visited{})
	}
	return s.update(ctx, e, v, o)
}

// Save inserts v when it is new and updates it otherwise.
func (s *Store) Save(ctx context.Context, v strata.Accessor, opts ...WriteOption) error {
	e, err := s.resolve(ctx, v)
	if err != nil {
		return err
	}
	isNew, err := s.isNew(ctx, e, v)
	if err != nil {
		return err
	}
	if isNew {
		return s.Insert(ctx, v, opts...)
	}
	return s.Update(ctx, v, opts...)
}

func (s *Store) insert(ctx context.Context, e *schema.Entity, v strata.Accessor) error {
	var (
		c       = &command{}
		cols    []string
		vals    []string
		managed *field.Descriptor
	)
	for _, f := range e.Fields {
		if f.PrimaryKey && e.Key == strata.KeyIdentity {
			continue
		}
		fv := v.Get(f.Name)
		switch {
		case f.PrimaryKey && e.Key == strata.KeyGUID:
			id := uuid.Nil
			if fv != nil {
				cv, err := s.coerce(e, f, fv)
				if err != nil {
					return err
				}
				id = cv.(uuid.UUID)
			}
			if id == uuid.Nil {
				id = uuid.New()
				if err := v.Set(f.Name, id); err != nil {
					return fmt.Errorf("store: set %s.%s: %w", e.Name, f.Name, err)
				}
			}
			fv = id
		case f.Type == field.TypeRowVersion:
			if s.dialect.RowVersionManaged() {
				managed = f
				continue
			}
			fv = int64(1)
			if err := v.Set(f.Name, fv); err != nil {
				return fmt.Errorf("store: set %s.%s: %w", e.Name, f.Name, err)
			}
		case f.DefaultNow:
			if t, ok := fv.(time.Time); fv == nil || ok && t.IsZero() {
				fv = time.Now().UTC()
				if err := v.Set(f.Name, fv); err != nil {
					return fmt.Errorf("store: set %s.%s: %w", e.Name, f.Name, err)
				}
			}
		case fv == nil && f.Default != nil:
			fv = f.Default
			if err := v.Set(f.Name, fv); err != nil {
				return fmt.Errorf("store: set %s.%s: %w", e.Name, f.Name, err)
			}
		}
		enc, err := s.encode(e, f, fv)
		if err != nil {
			return err
		}
		cols = append(cols, s.dialect.Quote(f.Name))
		vals = append(vals, s.bind(c, enc))
	}
	var output, returning string
	identity := e.Key == strata.KeyIdentity
	if identity {
		output, returning = s.dialect.Returning(s.dialect.Quote(e.PrimaryKey.Name))
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.dialect.Quote(e.Name))
	if len(cols) > 0 {
		sb.WriteString(" (" + strings.Join(cols, ", ") + ")")
	}
	if output != "" {
		sb.WriteString(" " + output)
	}
	switch {
	case len(cols) > 0:
		sb.WriteString(" VALUES (" + strings.Join(vals, ", ") + ")")
	case s.dialect.Name() == dialect.MySQL:
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}
	if returning != "" {
		sb.WriteString(" " + returning)
	}
	c.text = sb.String()

	ss, err := s.session(ctx, dsql.Data)
	if err != nil {
		return err
	}
	defer s.done(ss)
	var key any
	switch {
	case identity && (output != "" || returning != ""):
		rows, err := ss.q.QueryContext(ctx, c.text, c.args()...)
		if err != nil {
			return strata.NewMutationError(e.Name, "insert", s.constraintError(err))
		}
		if rows.Next() {
			err = rows.Scan(&key)
		}
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return strata.NewMutationError(e.Name, "insert", err)
		}
	default:
		res, err := ss.q.ExecContext(ctx, c.text, c.args()...)
		if err != nil {
			return strata.NewMutationError(e.Name, "insert", s.constraintError(err))
		}
		if identity {
			id, err := res.LastInsertId()
			if err != nil {
				return strata.NewMutationError(e.Name, "insert", err)
			}
			key = id
		}
	}
	if identity {
		if key == nil {
			return strata.NewMutationError(e.Name, "insert", fmt.Errorf("backend returned no key"))
		}
		kv, err := s.decode(e, e.PrimaryKey, key)
		if err != nil {
			return err
		}
		if err := v.Set(e.PrimaryKey.Name, kv); err != nil {
			return fmt.Errorf("store: set %s.%s: %w", e.Name, e.PrimaryKey.Name, err)
		}
	}
	if managed != nil {
		if err := s.reload(ctx, ss, e, v, managed); err != nil {
			return err
		}
	}
	return nil
}

// reload reads one field of the stored row back into v.
func (s *Store) reload(ctx context.Context, ss *session, e *schema.Entity, v strata.Accessor, f *field.Descriptor) error {
	c := &command{}
	key, err := s.keyArg(e, e.KeyValue(v))
	if err != nil {
		return err
	}
	c.text = "SELECT " + s.dialect.Quote(f.Name) + " FROM " + s.dialect.Quote(e.Name) +
		" WHERE " + s.dialect.Quote(e.PrimaryKey.Name) + " = " + s.bind(c, key)
	rows, err := ss.q.QueryContext(ctx, c.text, c.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return strata.NewNotFoundErrorWithID(e.Name, e.KeyValue(v))
	}
	var raw any
	if err := rows.Scan(&raw); err != nil {
		return err
	}
	fv, err := s.decode(e, f, raw)
	if err != nil {
		return err
	}
	return v.Set(f.Name, fv)
}

// keyArg converts a key to its bound form.
func (s *Store) keyArg(e *schema.Entity, key any) (any, error) {
	if e.PrimaryKey == nil {
		return nil, strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "")
	}
	if key == nil {
		return nil, fmt.Errorf("store: %s: nil key", e.Name)
	}
	kv, err := s.coerce(e, e.PrimaryKey, key)
	if err != nil {
		return nil, err
	}
	return s.encode(e, e.PrimaryKey, kv)
}

func (s *Store) update(ctx context.Context, e *schema.Entity, v strata.Accessor, o *writeOptions) error {
	if e.PrimaryKey == nil {
		return strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "update")
	}
	key := e.KeyValue(v)
	cur, err := s.selectByKey(ctx, e, key)
	if err != nil {
		return err
	}
	var (
		c       = &command{}
		sets    []string
		version *field.Descriptor
	)
	for _, f := range e.Fields {
		if f.PrimaryKey {
			continue
		}
		if f.Type == field.TypeRowVersion {
			version = f
			continue
		}
		if !o.includes(f.Name) {
			continue
		}
		nv, err := s.coerce(e, f, v.Get(f.Name))
		if err != nil {
			return err
		}
		enc, err := s.encode(e, f, nv)
		if err != nil {
			return err
		}
		if f.Type == field.TypeObject {
			old, err := s.encode(e, f, cur.Get(f.Name))
			if err != nil {
				return err
			}
			if valuesEqual(old, enc) {
				continue
			}
		} else if valuesEqual(cur.Get(f.Name), nv) {
			continue
		}
		sets = append(sets, s.dialect.Quote(f.Name)+" = "+s.bind(c, enc))
	}
	if len(sets) == 0 {
		s.log.DebugContext(ctx, "update skipped, no changes", "entity", e.Name, "key", key)
		return nil
	}
	var next int64
	managed := version != nil && s.dialect.RowVersionManaged()
	if version != nil && !managed {
		n, err := asInt64(cur.Get(version.Name))
		if err != nil {
			return conversionError(e, version, cur.Get(version.Name), err)
		}
		next = n + 1
		sets = append(sets, s.dialect.Quote(version.Name)+" = "+s.bind(c, next))
	}
	karg, err := s.keyArg(e, key)
	if err != nil {
		return err
	}
	c.text = "UPDATE " + s.dialect.Quote(e.Name) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + s.dialect.Quote(e.PrimaryKey.Name) + " = " + s.bind(c, karg)

	ss, err := s.session(ctx, dsql.Data)
	if err != nil {
		return err
	}
	defer s.done(ss)
	res, err := ss.q.ExecContext(ctx, c.text, c.args()...)
	if err != nil {
		return strata.NewMutationError(e.Name, "update", s.constraintError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return strata.NewNotFoundErrorWithID(e.Name, key)
	}
	switch {
	case managed:
		return s.reload(ctx, ss, e, v, version)
	case version != nil:
		fv, err := convertValue(version.Type, next, s.dialect.Durations())
		if err != nil {
			return err
		}
		return v.Set(version.Name, fv)
	}
	return nil
}

// Delete deletes the row of v and the rows of its cascade-delete
// references.
func (s *Store) Delete(ctx context.Context, v strata.Accessor) error {
	e, err := s.resolve(ctx, v)
	if err != nil {
		return err
	}
	if e.PrimaryKey == nil {
		return strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "delete")
	}
	if hasCascades(e) {
		return s.deleteGraph(ctx, e, v, visited{})
	}
	return s.deleteKey(ctx, e, e.KeyValue(v))
}

// DeleteByKey deletes the row with the given key.
func (s *Store) DeleteByKey(ctx context.Context, entity string, key any) error {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return err
	}
	if e.PrimaryKey == nil {
		return strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "delete")
	}
	if hasCascades(e) {
		v, err := s.selectByKey(ctx, e, key)
		if err != nil {
			return err
		}
		return s.deleteGraph(ctx, e, v, visited{})
	}
	return s.deleteKey(ctx, e, key)
}

// DeleteWhere deletes the rows whose field equals value and returns the
// number of rows deleted.
func (s *Store) DeleteWhere(ctx context.Context, entity, field string, value any) (int64, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return 0, err
	}
	return s.deleteFiltered(ctx, e, []Filter{Eq(field, value)})
}

// DeleteAll deletes every row of the entity. Entities without cascade
// references are truncated.
func (s *Store) DeleteAll(ctx context.Context, entity string) error {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return err
	}
	if !hasCascades(e) {
		return s.TruncateTable(ctx, e.Name)
	}
	_, err = s.deleteFiltered(ctx, e, nil)
	return err
}

func (s *Store) deleteFiltered(ctx context.Context, e *schema.Entity, filters []Filter) (int64, error) {
	if hasCascades(e) {
		c, err := s.buildSelect(e, filters, false)
		if err != nil {
			return 0, err
		}
		items, err := s.load(ctx, e, c)
		if err != nil {
			return 0, strata.NewQueryError(e.Name, "delete", err)
		}
		seen := visited{}
		for _, v := range items {
			if err := s.deleteGraph(ctx, e, v, seen); err != nil {
				return 0, err
			}
		}
		return int64(len(items)), nil
	}
	c := &command{}
	var sb strings.Builder
	sb.WriteString("DELETE FROM " + s.dialect.Quote(e.Name))
	if err := s.where(e, c, &sb, filters); err != nil {
		return 0, err
	}
	c.text = sb.String()
	res, err := s.exec(ctx, dsql.Data, c.text, c.args()...)
	if err != nil {
		return 0, strata.NewMutationError(e.Name, "delete", s.constraintError(err))
	}
	return res.RowsAffected()
}

func (s *Store) deleteKey(ctx context.Context, e *schema.Entity, key any) error {
	c := &command{}
	karg, err := s.keyArg(e, key)
	if err != nil {
		return err
	}
	c.text = "DELETE FROM " + s.dialect.Quote(e.Name) + " WHERE " + s.dialect.Quote(e.PrimaryKey.Name) + " = " + s.bind(c, karg)
	res, err := s.exec(ctx, dsql.Data, c.text, c.args()...)
	if err != nil {
		return strata.NewMutationError(e.Name, "delete", s.constraintError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return strata.NewNotFoundErrorWithID(e.Name, key)
	}
	return nil
}

// Contains reports if the row of v exists.
func (s *Store) Contains(ctx context.Context, v strata.Accessor) (bool, error) {
	e, err := s.resolve(ctx, v)
	if err != nil {
		return false, err
	}
	return s.containsKey(ctx, e, e.KeyValue(v))
}

// ContainsKey reports if a row with the given key exists.
func (s *Store) ContainsKey(ctx context.Context, entity string, key any) (bool, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return false, err
	}
	return s.containsKey(ctx, e, key)
}

func (s *Store) containsKey(ctx context.Context, e *schema.Entity, key any) (bool, error) {
	if e.PrimaryKey == nil {
		return false, strata.NewConfigError(strata.ErrNoPrimaryKey, e.Name, "", "contains")
	}
	if key == nil {
		return false, nil
	}
	n, err := s.count(ctx, e, []Filter{KeyEq(e.PrimaryKey.Name, key)})
	return n > 0, err
}

// Count returns the number of rows matching filters.
func (s *Store) Count(ctx context.Context, entity string, filters ...Filter) (int64, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, e, filters)
}

func (s *Store) count(ctx context.Context, e *schema.Entity, filters []Filter) (int64, error) {
	c, err := s.buildSelect(e, filters, true)
	if err != nil {
		return 0, err
	}
	ss, err := s.session(ctx, dsql.Data)
	if err != nil {
		return 0, err
	}
	defer s.done(ss)
	rows, release, err := s.query(ctx, ss, c)
	if err != nil {
		return 0, strata.NewQueryError(e.Name, "count", err)
	}
	defer release()
	defer rows.Close()
	var n any
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, strata.NewQueryError(e.Name, "count", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, strata.NewQueryError(e.Name, "count", err)
	}
	if n == nil {
		return 0, nil
	}
	return asInt64(n)
}
