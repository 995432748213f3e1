package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// entity returns the registered entity of a name. Unknown names are
// discovered from the database as dynamic entities when their table
// exists.
func (s *Store) entity(ctx context.Context, name string) (*schema.Entity, error) {
	if e, ok := s.registry.Lookup(name); ok {
		return e, nil
	}
	e, err := s.DiscoverEntity(ctx, name)
	if err != nil {
		if errors.Is(err, strata.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", strata.ErrUnknownEntity, name)
		}
		return nil, err
	}
	return e, nil
}

// resolve returns the entity of a value, registering typed entities on
// first use.
func (s *Store) resolve(ctx context.Context, v strata.Accessor) (*schema.Entity, error) {
	if d, ok := v.(*strata.DynamicEntity); ok {
		return s.entity(ctx, d.Name())
	}
	return s.registry.Resolve(v)
}

// StoreExists reports if the database of the data source exists.
func (s *Store) StoreExists(ctx context.Context) (bool, error) {
	m, err := s.storeManager("store exists")
	if err != nil {
		return false, err
	}
	return m.StoreExists(ctx, s.dsn)
}

// CreateStore creates the database of the data source.
func (s *Store) CreateStore(ctx context.Context) error {
	m, err := s.storeManager("create store")
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "creating store")
	return m.CreateStore(ctx, s.dsn)
}

// DeleteStore drops the database of the data source. Held connections
// are closed first.
func (s *Store) DeleteStore(ctx context.Context) error {
	m, err := s.storeManager("delete store")
	if err != nil {
		return err
	}
	if s.InTx() {
		return strata.ErrTxStarted
	}
	s.mgr.Reset()
	if s.stmts != nil {
		s.stmts.Clear()
	}
	for _, e := range s.registry.Entities() {
		e.InvalidateOrdinals()
		s.indexes.forget(e.Name)
	}
	s.log.InfoContext(ctx, "deleting store")
	return m.DeleteStore(ctx, s.dsn)
}

func (s *Store) storeManager(op string) (dialect.StoreManager, error) {
	m, ok := s.dialect.(dialect.StoreManager)
	if !ok {
		return nil, strata.NewUnsupportedError(s.dialect.Name(), op, "")
	}
	if s.dsn == "" {
		return nil, strata.NewUnsupportedError(s.dialect.Name(), op, "store opened without a data source name")
	}
	return m, nil
}

// TableNames lists the tables of the store.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	ss, err := s.session(ctx, dsql.Maintenance)
	if err != nil {
		return nil, err
	}
	defer s.done(ss)
	return s.dialect.TableNames(ctx, ss.q)
}

// TableExists reports if the table exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	ss, err := s.session(ctx, dsql.Maintenance)
	if err != nil {
		return false, err
	}
	defer s.done(ss)
	return s.dialect.TableExists(ctx, ss.q, table)
}

// checkNames rejects entity and field names reserved by the backend.
func (s *Store) checkNames(e *schema.Entity) error {
	if s.dialect.IsReserved(e.Name) {
		return strata.NewConfigError(strata.ErrReservedWord, e.Name, "", fmt.Sprintf("%q is reserved by %s", e.Name, s.dialect.Name()))
	}
	for _, f := range e.Fields {
		if s.dialect.IsReserved(f.Name) {
			return strata.NewConfigError(strata.ErrReservedWord, e.Name, f.Name, fmt.Sprintf("%q is reserved by %s", f.Name, s.dialect.Name()))
		}
	}
	return nil
}

// CreateTable creates the table of a registered entity, then the index
// of every searchable field.
func (s *Store) CreateTable(ctx context.Context, entity string) error {
	e, ok := s.registry.Lookup(entity)
	if !ok {
		return fmt.Errorf("%w: %s", strata.ErrUnknownEntity, entity)
	}
	return s.createTable(ctx, e)
}

func (s *Store) createTable(ctx context.Context, e *schema.Entity) error {
	if err := s.checkNames(e); err != nil {
		return err
	}
	if len(e.Fields) == 0 {
		return strata.NewConfigError(strata.ErrInvalidField, e.Name, "", "entity has no fields")
	}
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		def, err := dialect.ColumnDefinition(s.dialect, f, f.PrimaryKey && e.Key == strata.KeyIdentity)
		if err != nil {
			return strata.NewConfigError(strata.ErrInvalidField, e.Name, f.Name, err.Error())
		}
		cols[i] = def
	}
	stmt := "CREATE TABLE " + s.dialect.Quote(e.Name) + " (" + strings.Join(cols, ", ") + ")"
	if _, err := s.exec(ctx, dsql.Maintenance, stmt); err != nil {
		return fmt.Errorf("store: create table %s: %w", e.Name, err)
	}
	e.InvalidateOrdinals()
	s.log.InfoContext(ctx, "table created", "entity", e.Name)
	return s.ensureIndexes(ctx, e)
}

// ValidateTable adds the columns of registered fields missing from the
// table. Existing columns are never dropped, narrowed or checked for
// type drift. It returns the report of the changes.
func (s *Store) ValidateTable(ctx context.Context, entity string) (*ValidationResult, error) {
	e, ok := s.registry.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", strata.ErrUnknownEntity, entity)
	}
	result, err := s.validateTable(ctx, e)
	if err != nil {
		return nil, err
	}
	return result, s.ensureIndexes(ctx, e)
}

// ensureIndexes verifies the index of every searchable field.
func (s *Store) ensureIndexes(ctx context.Context, e *schema.Entity) error {
	for _, f := range e.Fields {
		if f.SearchOrder == field.NotSearchable {
			continue
		}
		if _, err := s.EnsureIndex(ctx, e.Name, f.Name, f.SearchOrder); err != nil {
			return fmt.Errorf("store: %s: %w", e.Name, err)
		}
	}
	return nil
}

func (s *Store) validateTable(ctx context.Context, e *schema.Entity) (*ValidationResult, error) {
	if err := s.checkNames(e); err != nil {
		return nil, err
	}
	ss, err := s.session(ctx, dsql.Maintenance)
	if err != nil {
		return nil, err
	}
	defer s.done(ss)
	cols, err := s.dialect.Columns(ctx, ss.q, e.Name)
	if err != nil {
		return nil, err
	}
	missing := missingFields(e, cols)
	result := diffTable(e, cols, missing)
	for _, f := range missing {
		def, err := dialect.ColumnDefinition(s.dialect, f, false)
		if err != nil {
			return nil, strata.NewConfigError(strata.ErrInvalidField, e.Name, f.Name, err.Error())
		}
		stmt := s.dialect.AddColumn(s.dialect.Quote(e.Name), def)
		if _, err := ss.q.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("store: add column %s.%s: %w", e.Name, f.Name, err)
		}
		result.Added = append(result.Added, e.Name+"."+f.Name)
		s.log.InfoContext(ctx, "column added", "entity", e.Name, "field", f.Name)
	}
	if len(missing) > 0 {
		e.InvalidateOrdinals()
	}
	return result, nil
}

func missingFields(e *schema.Entity, cols []string) []*field.Descriptor {
	var missing []*field.Descriptor
	for _, f := range e.Fields {
		found := false
		for _, c := range cols {
			if strings.EqualFold(c, f.Name) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, f)
		}
	}
	return missing
}

// EnsureCompatibility creates the store when it does not exist, then
// creates the table of every registered entity or adds its missing
// columns.
func (s *Store) EnsureCompatibility(ctx context.Context) (*ValidationResult, error) {
	if m, ok := s.dialect.(dialect.StoreManager); ok && s.dsn != "" {
		exists, err := m.StoreExists(ctx, s.dsn)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := s.CreateStore(ctx); err != nil {
				return nil, err
			}
		}
	}
	result := &ValidationResult{}
	for _, e := range s.registry.Entities() {
		if e.Discovered {
			continue
		}
		exists, err := s.TableExists(ctx, e.Name)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := s.createTable(ctx, e); err != nil {
				return nil, err
			}
			continue
		}
		r, err := s.validateTable(ctx, e)
		if err != nil {
			return nil, err
		}
		result.merge(r)
		if err := s.ensureIndexes(ctx, e); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// TruncateTable removes every row of the entity table.
func (s *Store) TruncateTable(ctx context.Context, entity string) error {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, dsql.Maintenance, s.dialect.Truncate(s.dialect.Quote(e.Name))); err != nil {
		return strata.NewMutationError(e.Name, "truncate", s.constraintError(err))
	}
	return nil
}

// DropTable drops the table and removes the entity from the registry
// with its cached indexes.
func (s *Store) DropTable(ctx context.Context, table string) error {
	name := table
	if e, ok := s.registry.Lookup(table); ok {
		name = e.Name
		e.InvalidateOrdinals()
	}
	if _, err := s.exec(ctx, dsql.Maintenance, "DROP TABLE "+s.dialect.Quote(name)); err != nil {
		return fmt.Errorf("store: drop table %s: %w", name, err)
	}
	s.registry.Remove(name)
	s.indexes.forget(name)
	if s.stmts != nil {
		s.stmts.Clear()
	}
	s.log.InfoContext(ctx, "table dropped", "entity", name)
	return nil
}

// DiscoverEntity reads the layout of an existing table and registers it
// as a dynamic entity. Integer keys are assumed to be identities and
// uuid keys to use the GUID scheme.
func (s *Store) DiscoverEntity(ctx context.Context, table string) (*schema.Entity, error) {
	ss, err := s.session(ctx, dsql.Maintenance)
	if err != nil {
		return nil, err
	}
	defer s.done(ss)
	exists, err := s.dialect.TableExists(ctx, ss.q, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, strata.NewNotFoundErrorWithID("table", table)
	}
	rows, err := ss.q.QueryContext(ctx, "SELECT * FROM "+s.dialect.Quote(table)+" WHERE 1 = 0")
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	rows.Close()
	if err != nil {
		return nil, err
	}
	key, _, err := s.dialect.PrimaryKey(ctx, ss.q, table)
	if err != nil {
		return nil, err
	}
	fields := make([]*field.Descriptor, len(types))
	scheme := strata.KeyNone
	for i, ct := range types {
		f := &field.Descriptor{Name: ct.Name(), Type: s.dialect.FieldType(ct.DatabaseTypeName())}
		if f.Type == field.TypeInvalid {
			f.Type = field.TypeBytes
		}
		if n, ok := ct.Nullable(); ok {
			f.Nullable = n
		}
		if n, ok := ct.Length(); ok && n > 0 && n < 1<<20 {
			f.Size = int(n)
		}
		if strings.EqualFold(f.Name, key) {
			key = f.Name
			f.Nullable = false
			switch {
			case f.Type.Integer():
				identity, err := s.isIdentity(ctx, ss.q, table, f.Name)
				if err != nil {
					return nil, err
				}
				if identity {
					scheme = strata.KeyIdentity
				}
			case f.Type == field.TypeUUID:
				scheme = strata.KeyGUID
			}
		}
		fields[i] = f
	}
	e, err := schema.NewDynamic(table, fields, key, scheme)
	if err != nil {
		return nil, err
	}
	e.Discovered = true
	e.SetOrdinals(columnNames(types))
	s.log.DebugContext(ctx, "entity discovered", "entity", table, "fields", len(fields), "key", key)
	return s.registry.Add(e)
}

// isIdentity reports if the backend assigns the values of an integer key.
// Dialects that cannot tell treat every integer key as an identity.
func (s *Store) isIdentity(ctx context.Context, q dialect.Querier, table, column string) (bool, error) {
	r, ok := s.dialect.(dialect.IdentityReporter)
	if !ok {
		return true, nil
	}
	return r.IsIdentity(ctx, q, table, column)
}

// RegisterDynamic registers a dynamic entity declared by the caller.
func (s *Store) RegisterDynamic(name string, fields []*field.Descriptor, key string, scheme strata.KeyScheme) (*schema.Entity, error) {
	e, err := schema.NewDynamic(name, fields, key, scheme)
	if err != nil {
		return nil, err
	}
	return s.registry.Add(e)
}

// Entity returns the registered or discovered metadata of an entity.
func (s *Store) Entity(ctx context.Context, name string) (*schema.Entity, error) {
	return s.entity(ctx, name)
}

func columnNames(types []*sql.ColumnType) []string {
	names := make([]string, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
	}
	return names
}
