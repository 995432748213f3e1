package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Purpose is what a connection is acquired for.
type Purpose uint8

// Connection purposes.
const (
	// Maintenance connections run schema and metadata statements.
	Maintenance Purpose = iota
	// Data connections run queries and mutations.
	Data
)

// String returns the purpose name.
func (p Purpose) String() string {
	if p == Maintenance {
		return "maintenance"
	}
	return "data"
}

// Behavior is the connection lifetime policy of a Manager.
type Behavior uint8

// Connection behaviors.
const (
	// AlwaysNew opens a connection per acquire and closes it on release.
	AlwaysNew Behavior = iota
	// HoldMaintenance keeps one maintenance connection open. Data
	// connections behave as AlwaysNew.
	HoldMaintenance
	// Persistent shares one connection for every purpose.
	Persistent
	// Pooled keeps a bounded set of connections shared by every purpose.
	Pooled
)

var behaviorNames = [...]string{
	AlwaysNew:       "always-new",
	HoldMaintenance: "hold-maintenance",
	Persistent:      "persistent",
	Pooled:          "pooled",
}

// String returns the behavior name.
func (b Behavior) String() string {
	if int(b) < len(behaviorNames) {
		return behaviorNames[b]
	}
	return fmt.Sprintf("Behavior(%d)", b)
}

// ParseBehavior parses a behavior name as returned by String.
func ParseBehavior(s string) (Behavior, error) {
	for b, name := range behaviorNames {
		if strings.EqualFold(s, name) {
			return Behavior(b), nil
		}
	}
	return 0, fmt.Errorf("dialect/sql: unknown connection behavior %q", s)
}

// Manager errors.
var (
	// ErrPoolExhausted is returned when no connection became available
	// within the acquire timeout.
	ErrPoolExhausted = errors.New("dialect/sql: no connection available")
	// ErrBehaviorPinned is returned by SetBehavior while a transaction
	// pins the connection.
	ErrBehaviorPinned = errors.New("dialect/sql: connection behavior is pinned by a transaction")
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("dialect/sql: connection manager is closed")
)

// Defaults of a Manager.
const (
	DefaultPollInterval = time.Second
	DefaultPoolSize     = 10
)

// Conn is a connection handed out by a Manager. It must be returned with
// Release.
type Conn struct {
	*sql.Conn
	held     bool // owned by the manager across acquires
	busy     bool
	detached bool // dropped by a behavior change while busy
}

// Held reports if the manager keeps the connection open after release.
func (c *Conn) Held() bool { return c.held }

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBehavior sets the initial connection behavior.
func WithBehavior(b Behavior) ManagerOption {
	return func(m *Manager) { m.behavior = b }
}

// WithPoolSize sets the number of connections of the Pooled behavior.
func WithPoolSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.poolSize = n
		}
	}
}

// WithPollInterval sets the interval at which callers waiting for a busy
// connection retry.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.poll = d
		}
	}
}

// WithAcquireTimeout bounds the wait for a busy connection. Zero waits
// until the context is done.
func WithAcquireTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithLogger sets the logger of the manager.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager hands out connections according to its Behavior. It opens
// physical connections itself; the *sql.DB keeps no idle connections.
type Manager struct {
	db      *sql.DB
	log     *slog.Logger
	poll    time.Duration
	timeout time.Duration
	open    atomic.Int64

	mu          sync.Mutex
	behavior    Behavior
	saved       Behavior
	pinned      bool
	poolSize    int
	persistent  *Conn
	maintenance *Conn
	pool        []*Conn
	closed      bool
	closeOnce   sync.Once
	closeErr    error
}

// NewManager returns a Manager over db.
func NewManager(db *sql.DB, opts ...ManagerOption) *Manager {
	m := &Manager{
		db:       db,
		log:      slog.Default(),
		poll:     DefaultPollInterval,
		poolSize: DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	db.SetMaxIdleConns(0)
	return m
}

// DB returns the underlying database handle.
func (m *Manager) DB() *sql.DB { return m.db }

// Behavior returns the current behavior.
func (m *Manager) Behavior() Behavior {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.behavior
}

// SetBehavior changes the behavior. Held connections that the new behavior
// does not use are closed, or closed on release if busy.
func (m *Manager) SetBehavior(b Behavior) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned {
		return ErrBehaviorPinned
	}
	m.setBehavior(b)
	return nil
}

// setBehavior must be called with mu held.
func (m *Manager) setBehavior(b Behavior) {
	if b == m.behavior {
		return
	}
	m.log.Debug("connection behavior changed", "from", m.behavior, "to", b)
	m.behavior = b
	if b != Persistent {
		m.drop(m.persistent)
		m.persistent = nil
	}
	if b != HoldMaintenance {
		m.drop(m.maintenance)
		m.maintenance = nil
	}
	if b != Pooled {
		for _, c := range m.pool {
			m.drop(c)
		}
		m.pool = nil
	}
}

// drop closes an idle held connection or detaches a busy one. It must be
// called with mu held.
func (m *Manager) drop(c *Conn) {
	if c == nil {
		return
	}
	if c.busy {
		c.detached = true
		return
	}
	m.closeConn(c)
}

func (m *Manager) closeConn(c *Conn) {
	if err := c.Close(); err != nil {
		m.log.Warn("closing connection", "error", err)
	}
	m.open.Add(-1)
}

// Pin switches to the Persistent behavior for the duration of a
// transaction. Unpin restores the previous behavior.
func (m *Manager) Pin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned {
		return
	}
	m.saved = m.behavior
	m.setBehavior(Persistent)
	m.pinned = true
}

// Unpin restores the behavior saved by Pin.
func (m *Manager) Unpin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pinned {
		return
	}
	m.pinned = false
	m.setBehavior(m.saved)
}

// Pinned reports if a transaction pins the behavior.
func (m *Manager) Pinned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pinned
}

// OpenConnections returns the number of physical connections currently
// open through the manager.
func (m *Manager) OpenConnections() int64 { return m.open.Load() }

// Acquire returns a connection for the given purpose. When the connection
// the behavior calls for is busy, Acquire polls until it is released, the
// context is done or the acquire timeout expires.
func (m *Manager) Acquire(ctx context.Context, p Purpose) (*Conn, error) {
	var deadline time.Time
	if m.timeout > 0 {
		deadline = time.Now().Add(m.timeout)
	}
	for {
		c, shared, err := m.tryAcquire(ctx, p)
		if err != nil {
			return nil, err
		}
		if c != nil {
			if shared {
				return m.check(ctx, c)
			}
			return c, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, ErrPoolExhausted
		}
		wait := m.poll
		if !deadline.IsZero() {
			wait = min(wait, time.Until(deadline))
		}
		m.log.Debug("waiting for busy connection", "purpose", p, "behavior", m.Behavior(), "retry", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// tryAcquire claims a connection without waiting. It returns a nil
// connection when the caller must wait. shared reports a held connection.
func (m *Manager) tryAcquire(ctx context.Context, p Purpose) (*Conn, bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false, ErrClosed
	}
	switch {
	case m.behavior == Persistent:
		c, err := m.claim(ctx, &m.persistent)
		m.mu.Unlock()
		return c, true, err
	case m.behavior == HoldMaintenance && p == Maintenance:
		c, err := m.claim(ctx, &m.maintenance)
		m.mu.Unlock()
		return c, true, err
	case m.behavior == Pooled:
		for _, c := range m.pool {
			if !c.busy {
				c.busy = true
				m.mu.Unlock()
				return c, true, nil
			}
		}
		if len(m.pool) >= m.poolSize {
			m.mu.Unlock()
			return nil, false, nil
		}
		c, err := m.openConn(ctx, true)
		if err == nil {
			c.busy = true
			m.pool = append(m.pool, c)
		}
		m.mu.Unlock()
		return c, false, err
	default:
		m.mu.Unlock()
		c, err := m.openConn(ctx, false)
		return c, false, err
	}
}

// claim marks the held connection in slot busy, opening it if needed.
// It must be called with mu held.
func (m *Manager) claim(ctx context.Context, slot **Conn) (*Conn, error) {
	if *slot == nil {
		c, err := m.openConn(ctx, true)
		if err != nil {
			return nil, err
		}
		*slot = c
	} else if (*slot).busy {
		return nil, nil
	}
	(*slot).busy = true
	return *slot, nil
}

func (m *Manager) openConn(ctx context.Context, held bool) (*Conn, error) {
	sc, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open connection: %w", err)
	}
	m.open.Add(1)
	return &Conn{Conn: sc, held: held}, nil
}

// check pings a held connection and reopens it once if the ping fails.
func (m *Manager) check(ctx context.Context, c *Conn) (*Conn, error) {
	err := c.PingContext(ctx)
	if err == nil {
		return c, nil
	}
	m.log.Warn("held connection failed, reopening", "error", err)
	if cerr := c.Conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
		m.log.Debug("closing failed connection", "error", cerr)
	}
	sc, err := m.db.Conn(ctx)
	if err != nil {
		m.open.Add(-1)
		m.mu.Lock()
		m.forget(c)
		m.mu.Unlock()
		return nil, fmt.Errorf("dialect/sql: reopen connection: %w", err)
	}
	c.Conn = sc
	return c, nil
}

// forget removes a held connection from the manager. It must be called
// with mu held.
func (m *Manager) forget(c *Conn) {
	switch {
	case m.persistent == c:
		m.persistent = nil
	case m.maintenance == c:
		m.maintenance = nil
	default:
		for i, pc := range m.pool {
			if pc == c {
				m.pool = append(m.pool[:i], m.pool[i+1:]...)
				break
			}
		}
	}
}

// Reset closes the held connections. Busy ones are closed on release.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range append([]*Conn{m.persistent, m.maintenance}, m.pool...) {
		m.drop(c)
	}
	m.persistent, m.maintenance, m.pool = nil, nil, nil
}

// Release returns a connection acquired with Acquire.
func (m *Manager) Release(c *Conn) {
	if c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !c.held || c.detached || m.closed {
		if c.held && !c.detached {
			m.forget(c)
		}
		m.closeConn(c)
		return
	}
	c.busy = false
}

// Close closes the held connections and the database handle. It is safe
// to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		for _, c := range append([]*Conn{m.persistent, m.maintenance}, m.pool...) {
			m.drop(c)
		}
		m.persistent, m.maintenance, m.pool = nil, nil, nil
		m.mu.Unlock()
		m.closeErr = m.db.Close()
	})
	return m.closeErr
}
