package sql

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultStmtCacheSize is the capacity of a statement cache.
const DefaultStmtCacheSize = 10

// Preparer prepares statements. *sql.Conn and *sql.Tx implement it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Param is a named command parameter.
type Param struct {
	Name  string
	Value any
}

// Command is a statement text with its parameters, optionally prepared.
// Commands checked out of a StmtCache are never shared until returned.
type Command struct {
	Text   string
	Params []Param

	stmt    *sql.Stmt
	owner   Preparer
	cached  bool
	inUse   bool
	evicted bool
}

// Stmt returns the statement prepared on p. The statement is prepared
// again when it was prepared on another connection or transaction.
func (c *Command) Stmt(ctx context.Context, p Preparer) (*sql.Stmt, error) {
	if c.stmt != nil && c.owner == p {
		return c.stmt, nil
	}
	c.closeStmt()
	stmt, err := p.PrepareContext(ctx, c.Text)
	if err != nil {
		return nil, err
	}
	c.stmt, c.owner = stmt, p
	return stmt, nil
}

// Values returns the parameter values in order.
func (c *Command) Values() []any {
	vs := make([]any, len(c.Params))
	for i, p := range c.Params {
		vs[i] = p.Value
	}
	return vs
}

func (c *Command) closeStmt() {
	if c.stmt != nil {
		// Statements of finished transactions are already closed.
		_ = c.stmt.Close()
		c.stmt, c.owner = nil, nil
	}
}

// StmtCache caches prepared commands by statement text. It holds at most
// its capacity of commands and evicts the oldest first.
type StmtCache struct {
	log *slog.Logger

	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string]*Command

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewStmtCache returns a cache holding up to capacity commands.
func NewStmtCache(capacity int, log *slog.Logger) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCacheSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &StmtCache{log: log, capacity: capacity, entries: make(map[string]*Command, capacity)}
}

// Checkout returns the command for text with its parameter values set to
// params. A cached command is reused when no other caller holds it; a
// command in use yields a fresh uncached one. The command must be
// returned with Return.
func (s *StmtCache) Checkout(text string, params []Param) *Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.entries[text]; ok {
		if !c.inUse && len(c.Params) == len(params) {
			s.hits.Add(1)
			for i := range params {
				c.Params[i].Value = params[i].Value
			}
			c.inUse = true
			return c
		}
		s.misses.Add(1)
		return &Command{Text: text, Params: params, inUse: true}
	}
	s.misses.Add(1)
	if len(s.order) >= s.capacity {
		s.evict()
	}
	c := &Command{Text: text, Params: params, cached: true, inUse: true}
	s.entries[text] = c
	s.order = append(s.order, text)
	return c
}

// evict drops the oldest command. It must be called with mu held.
func (s *StmtCache) evict() {
	text := s.order[0]
	s.order = s.order[1:]
	c := s.entries[text]
	delete(s.entries, text)
	s.evictions.Add(1)
	if c.inUse {
		c.evicted = true
		return
	}
	c.closeStmt()
	s.log.Debug("statement evicted", "sql", text)
}

// Return gives a checked-out command back to the cache. Uncached and
// evicted commands close their statement.
func (s *StmtCache) Return(c *Command) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.inUse = false
	if !c.cached || c.evicted {
		c.closeStmt()
	}
}

// Clear closes every cached statement.
func (s *StmtCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, text := range s.order {
		c := s.entries[text]
		if c.inUse {
			c.evicted = true
			continue
		}
		c.closeStmt()
	}
	s.order = nil
	s.entries = make(map[string]*Command, s.capacity)
}

// Len returns the number of cached commands.
func (s *StmtCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Hits returns the number of checkouts served by a cached command.
func (s *StmtCache) Hits() int64 { return s.hits.Load() }

// Misses returns the number of checkouts that built a new command.
func (s *StmtCache) Misses() int64 { return s.misses.Load() }

// Evictions returns the number of evicted commands.
func (s *StmtCache) Evictions() int64 { return s.evictions.Load() }
