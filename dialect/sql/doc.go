// Package sql holds the database plumbing shared by every dialect: the
// connection manager, the prepared statement cache, statement statistics
// and driver-independent constraint error classification.
//
// # Connections
//
// A Manager hands out connections for a Purpose according to its Behavior:
//
//	m := sql.NewManager(db, sql.WithBehavior(sql.Pooled), sql.WithPoolSize(4))
//	c, err := m.Acquire(ctx, sql.Data)
//	if err != nil {
//		return err
//	}
//	defer m.Release(c)
//
// Held connections are pinged before reuse and reopened once when the ping
// fails. Pin forces the Persistent behavior while a transaction is open.
//
// # Statements
//
// A StmtCache keeps the prepared form of recently used statement texts:
//
//	cmd := cache.Checkout(text, params)
//	defer cache.Return(cmd)
//	stmt, err := cmd.Stmt(ctx, c)
//
// # Statistics
//
// A Recorder wraps an ExecQuerier to count statements and report slow ones:
//
//	rec := sql.NewRecorder(sql.WithSlowQueryLog(logger))
//	q := rec.Wrap(c)
//	fmt.Println(rec.QueryStats().Stats())
package sql
