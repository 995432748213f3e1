package store

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// IndexInfo describes a verified secondary index.
type IndexInfo struct {
	Name   string
	Entity string
	Field  string
	// MaxLength is the maximum character length of the indexed column,
	// -1 when unbounded or not a character column. Longer seek values are
	// truncated to it.
	MaxLength int
}

// indexCache holds the indexes verified by this process. Entries are
// never refreshed; indexes dropped behind the store's back stay cached.
type indexCache struct {
	mu    sync.Mutex
	m     map[string]IndexInfo
	group singleflight.Group
}

func newIndexCache() *indexCache {
	return &indexCache{m: make(map[string]IndexInfo)}
}

func (c *indexCache) get(name string) (IndexInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.m[name]
	return info, ok
}

func (c *indexCache) put(info IndexInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[info.Name] = info
}

// forget drops the entries of an entity.
func (c *indexCache) forget(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, info := range c.m {
		if strings.EqualFold(info.Entity, entity) {
			delete(c.m, name)
		}
	}
}

func (c *indexCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// EnsureIndex verifies that the secondary index of a field exists and
// creates it otherwise. Concurrent calls for the same index share one
// verification; later calls are served from the cache.
func (s *Store) EnsureIndex(ctx context.Context, entity, fieldName string, order field.SearchOrder) (IndexInfo, error) {
	e, err := s.entity(ctx, entity)
	if err != nil {
		return IndexInfo{}, err
	}
	f, ok := e.Field(fieldName)
	if !ok {
		return IndexInfo{}, strata.NewConfigError(strata.ErrInvalidField, e.Name, fieldName, "unknown index field")
	}
	if order == field.NotSearchable {
		order = field.Ascending
	}
	name := dialect.IndexName(e.Name, f.Name, order)
	if info, ok := s.indexes.get(name); ok {
		return info, nil
	}
	v, err, _ := s.indexes.group.Do(name, func() (any, error) {
		if info, ok := s.indexes.get(name); ok {
			return info, nil
		}
		info, err := s.verifyIndex(ctx, e, f, name, order)
		if err != nil {
			return nil, err
		}
		s.indexes.put(info)
		e.AddIndex(name)
		return info, nil
	})
	if err != nil {
		return IndexInfo{}, err
	}
	return v.(IndexInfo), nil
}

func (s *Store) verifyIndex(ctx context.Context, e *schema.Entity, f *field.Descriptor, name string, order field.SearchOrder) (IndexInfo, error) {
	ss, err := s.session(ctx, dsql.Maintenance)
	if err != nil {
		return IndexInfo{}, err
	}
	defer s.done(ss)
	exists, err := s.dialect.IndexExists(ctx, ss.q, e.Name, name)
	if err != nil {
		return IndexInfo{}, err
	}
	if !exists {
		col := s.dialect.Quote(f.Name)
		if order == field.Descending {
			col += " DESC"
		}
		stmt := "CREATE INDEX " + s.dialect.Quote(name) + " ON " + s.dialect.Quote(e.Name) + " (" + col + ")"
		if _, err := ss.q.ExecContext(ctx, stmt); err != nil {
			return IndexInfo{}, err
		}
		s.log.DebugContext(ctx, "index created", "entity", e.Name, "index", name)
	}
	info := IndexInfo{Name: name, Entity: e.Name, Field: f.Name, MaxLength: -1}
	if f.Type == field.TypeString {
		if info.MaxLength, err = s.dialect.FieldLength(ctx, ss.q, e.Name, f.Name); err != nil {
			return IndexInfo{}, err
		}
	}
	return info, nil
}

// primaryKeyIndex returns the name of the index backing the primary key,
// resolving and caching it on first use.
func (s *Store) primaryKeyIndex(ctx context.Context, e *schema.Entity) (string, error) {
	if name, ok := e.PrimaryKeyIndex(); ok {
		return name, nil
	}
	ss, err := s.session(ctx, dsql.Maintenance)
	if err != nil {
		return "", err
	}
	defer s.done(ss)
	_, name, err := s.dialect.PrimaryKey(ctx, ss.q, e.Name)
	if err != nil {
		return "", err
	}
	e.SetPrimaryKeyIndex(name)
	return name, nil
}
