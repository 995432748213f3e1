package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/syssam/strata"
	dsql "github.com/syssam/strata/dialect/sql"
)

type txState struct {
	mu   sync.Mutex
	tx   *sql.Tx
	conn *dsql.Conn
}

// Begin starts a transaction. Transactions do not nest. Until Commit or
// Rollback, the connection behavior is pinned to Persistent and every
// operation of the store runs in the transaction.
func (s *Store) Begin(ctx context.Context, level dsql.IsolationLevel) error {
	s.tx.mu.Lock()
	defer s.tx.mu.Unlock()
	if s.tx.tx != nil {
		return strata.ErrTxStarted
	}
	s.mgr.Pin()
	c, err := s.mgr.Acquire(ctx, dsql.Data)
	if err != nil {
		s.mgr.Unpin()
		return err
	}
	tx, err := c.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		s.mgr.Release(c)
		s.mgr.Unpin()
		return err
	}
	s.log.DebugContext(ctx, "transaction started", "isolation", level)
	s.tx.tx, s.tx.conn = tx, c
	return nil
}

// Commit commits the open transaction and restores the connection
// behavior.
func (s *Store) Commit() error {
	return s.endTx((*sql.Tx).Commit, "committed")
}

// Rollback aborts the open transaction and restores the connection
// behavior.
func (s *Store) Rollback() error {
	return s.endTx(func(tx *sql.Tx) error {
		// A transaction whose context was canceled is already rolled back.
		if err := tx.Rollback(); !errors.Is(err, sql.ErrTxDone) {
			return err
		}
		return nil
	}, "rolled back")
}

func (s *Store) endTx(end func(*sql.Tx) error, outcome string) error {
	s.tx.mu.Lock()
	defer s.tx.mu.Unlock()
	if s.tx.tx == nil {
		return strata.ErrNoTx
	}
	err := end(s.tx.tx)
	s.mgr.Release(s.tx.conn)
	s.mgr.Unpin()
	s.tx.tx, s.tx.conn = nil, nil
	s.log.Debug("transaction "+outcome, "error", err)
	return err
}

// InTx reports if a transaction is open.
func (s *Store) InTx() bool {
	return s.currentTx() != nil
}

func (s *Store) currentTx() *sql.Tx {
	s.tx.mu.Lock()
	defer s.tx.mu.Unlock()
	return s.tx.tx
}

// WithTx runs fn in a transaction. It commits when fn returns nil and
// rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, level dsql.IsolationLevel, fn func(ctx context.Context) error) (err error) {
	if err := s.Begin(ctx, level); err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = s.Rollback()
			panic(v)
		}
	}()
	if err := fn(ctx); err != nil {
		return strata.NewAggregateError(err, s.Rollback())
	}
	return s.Commit()
}
