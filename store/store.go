package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
)

// Store is the entity store over one database. It is safe for concurrent
// use. While a transaction is open every operation runs inside it.
type Store struct {
	dialect  dialect.Dialect
	dsn      string
	log      *slog.Logger
	registry *schema.Registry
	mgr      *dsql.Manager
	stmts    *dsql.StmtCache
	rec      *dsql.Recorder
	indexes  *indexCache
	tx       txState
}

// Option configures a Store.
type Option func(*options)

type options struct {
	log       *slog.Logger
	registry  *schema.Registry
	manager   []dsql.ManagerOption
	stmtCache int
	stats     []dsql.StatsOption
}

// WithLogger sets the logger. Statements are traced at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRegistry shares an entity registry between stores.
func WithRegistry(r *schema.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithBehavior sets the initial connection behavior.
func WithBehavior(b dsql.Behavior) Option {
	return func(o *options) { o.manager = append(o.manager, dsql.WithBehavior(b)) }
}

// WithPoolSize sets the size of the Pooled connection behavior.
func WithPoolSize(n int) Option {
	return func(o *options) { o.manager = append(o.manager, dsql.WithPoolSize(n)) }
}

// WithPollInterval sets the retry interval of callers waiting for a busy
// connection.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.manager = append(o.manager, dsql.WithPollInterval(d)) }
}

// WithAcquireTimeout bounds the wait for a busy connection.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) { o.manager = append(o.manager, dsql.WithAcquireTimeout(d)) }
}

// WithStatementCache enables the prepared statement cache. A size of
// zero or less uses dsql.DefaultStmtCacheSize.
func WithStatementCache(size int) Option {
	return func(o *options) {
		if size <= 0 {
			size = dsql.DefaultStmtCacheSize
		}
		o.stmtCache = size
	}
}

// WithSlowThreshold logs statements running longer than d at warn level.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) { o.stats = append(o.stats, dsql.WithSlowThreshold(d)) }
}

// Open opens the data source with the dialect and returns a Store.
//
//	s, err := store.Open(sqlite.New(), "file:shop.db", store.WithBehavior(dsql.HoldMaintenance))
func Open(d dialect.Dialect, dsn string, opts ...Option) (*Store, error) {
	db, err := dialect.Open(d, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d.Name(), err)
	}
	s := New(d, db, opts...)
	s.dsn = dsn
	return s, nil
}

// New returns a Store over an opened database. The store owns db and
// closes it with Close.
func New(d dialect.Dialect, db *sql.DB, opts ...Option) *Store {
	o := &options{log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = schema.NewRegistry()
	}
	log := o.log.With("dialect", d.Name())
	s := &Store{
		dialect:  d,
		log:      log,
		registry: o.registry,
		mgr:      dsql.NewManager(db, append([]dsql.ManagerOption{dsql.WithLogger(log)}, o.manager...)...),
		rec:      dsql.NewRecorder(append([]dsql.StatsOption{dsql.WithSlowQueryLog(log)}, o.stats...)...),
		indexes:  newIndexCache(),
	}
	if o.stmtCache > 0 {
		s.stmts = dsql.NewStmtCache(o.stmtCache, log)
	}
	return s
}

// Dialect returns the dialect of the store.
func (s *Store) Dialect() dialect.Dialect { return s.dialect }

// Registry returns the entity registry.
func (s *Store) Registry() *schema.Registry { return s.registry }

// Stats returns a snapshot of the statement statistics.
func (s *Store) Stats() dsql.StatsSnapshot { return s.rec.QueryStats().Stats() }

// OpenConnections returns the number of connections held open by the store.
func (s *Store) OpenConnections() int64 { return s.mgr.OpenConnections() }

// Behavior returns the connection behavior.
func (s *Store) Behavior() dsql.Behavior { return s.mgr.Behavior() }

// SetBehavior changes the connection behavior. It fails with a
// configuration error while a transaction is open.
func (s *Store) SetBehavior(b dsql.Behavior) error {
	if s.InTx() {
		return strata.NewConfigError(strata.ErrBehaviorInTx, "", "", b.String())
	}
	if err := s.mgr.SetBehavior(b); err != nil {
		return strata.NewConfigError(strata.ErrBehaviorInTx, "", "", err.Error())
	}
	return nil
}

// Register registers typed entities.
func (s *Store) Register(entities ...strata.Entity) error {
	for _, v := range entities {
		if _, err := s.registry.Register(v); err != nil {
			return err
		}
	}
	return nil
}

// Close rolls back an open transaction and closes every connection. It is
// safe to call more than once.
func (s *Store) Close() error {
	if s.InTx() {
		if err := s.Rollback(); err != nil {
			s.log.Warn("rolling back transaction on close", "error", err)
		}
	}
	if s.stmts != nil {
		s.stmts.Clear()
	}
	return s.mgr.Close()
}

// session is the statement target of one operation: the open transaction
// or a connection acquired for the operation.
type session struct {
	q    dsql.ExecQuerier
	prep dsql.Preparer
	conn *dsql.Conn
}

// session acquires the statement target of an operation. It must be
// returned with done before any other session is acquired.
func (s *Store) session(ctx context.Context, p dsql.Purpose) (*session, error) {
	if tx := s.currentTx(); tx != nil {
		return &session{q: s.wrap(tx), prep: tx}, nil
	}
	c, err := s.mgr.Acquire(ctx, p)
	if err != nil {
		return nil, err
	}
	return &session{q: s.wrap(c), prep: c.Conn, conn: c}, nil
}

func (s *Store) done(ss *session) {
	if ss != nil && ss.conn != nil {
		s.mgr.Release(ss.conn)
	}
}

func (s *Store) wrap(q dsql.ExecQuerier) dsql.ExecQuerier {
	return s.rec.Wrap(dsql.Debug(q, s.log))
}

// query runs a select. Cacheable statements go through the statement cache
// when it is enabled. The returned function must be called after the rows
// are closed.
func (s *Store) query(ctx context.Context, ss *session, c *command) (*sql.Rows, func(), error) {
	if s.stmts == nil || !c.cacheable() {
		rows, err := ss.q.QueryContext(ctx, c.text, c.args()...)
		return rows, func() {}, err
	}
	cmd := s.stmts.Checkout(c.text, c.params)
	stmt, err := cmd.Stmt(ctx, ss.prep)
	if err != nil {
		s.stmts.Return(cmd)
		return nil, nil, err
	}
	args := cmd.Values()
	s.log.DebugContext(ctx, "query", "sql", c.text, "args", args, "prepared", true)
	start := time.Now()
	rows, err := stmt.QueryContext(ctx, args...)
	s.rec.Record(ctx, c.text, args, start, err, true)
	if err != nil {
		s.stmts.Return(cmd)
		return nil, nil, err
	}
	return rows, func() { s.stmts.Return(cmd) }, nil
}

// exec runs a statement on a fresh session.
func (s *Store) exec(ctx context.Context, p dsql.Purpose, query string, args ...any) (sql.Result, error) {
	ss, err := s.session(ctx, p)
	if err != nil {
		return nil, err
	}
	defer s.done(ss)
	return ss.q.ExecContext(ctx, query, args...)
}

// constraintError wraps backend constraint violations in a
// strata.ConstraintError.
func (s *Store) constraintError(err error) error {
	if err == nil {
		return nil
	}
	violated := dsql.IsConstraintError(err)
	if cc, ok := s.dialect.(dialect.ConstraintClassifier); ok && !violated {
		violated = cc.IsUniqueConstraintError(err) || cc.IsForeignKeyConstraintError(err)
	}
	if violated {
		return strata.NewConstraintError(err.Error(), err)
	}
	return err
}
