package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing queries.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of queries exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of query errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// Recorder collects statement statistics and reports slow statements.
type Recorder struct {
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the Recorder.
type StatsOption func(*Recorder)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(r *Recorder) {
		r.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(r *Recorder) {
		r.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to l, or to the default logger
// when l is nil.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		l.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewRecorder returns a Recorder.
//
//	rec := sql.NewRecorder(
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	q := rec.Wrap(conn)
func NewRecorder(opts ...StatsOption) *Recorder {
	r := &Recorder{
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (r *Recorder) QueryStats() *QueryStats {
	return r.stats
}

// SlowThreshold returns the current slow statement threshold.
func (r *Recorder) SlowThreshold() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (r *Recorder) SetSlowThreshold(threshold time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slowThreshold = threshold
}

// Record records one statement that started at start.
func (r *Recorder) Record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		r.stats.TotalQueries.Add(1)
	} else {
		r.stats.TotalExecs.Add(1)
	}
	r.stats.TotalDuration.Add(int64(duration))

	if err != nil {
		r.stats.Errors.Add(1)
	}

	r.mu.RLock()
	threshold := r.slowThreshold
	hook := r.slowHook
	r.mu.RUnlock()

	if duration > threshold {
		r.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

// Wrap returns an ExecQuerier recording every statement run through q.
func (r *Recorder) Wrap(q ExecQuerier) ExecQuerier {
	return &statsQuerier{ExecQuerier: q, rec: r}
}

type statsQuerier struct {
	ExecQuerier
	rec *Recorder
}

func (q *statsQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := q.ExecQuerier.ExecContext(ctx, query, args...)
	q.rec.Record(ctx, query, args, start, err, false)
	return res, err
}

func (q *statsQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := q.ExecQuerier.QueryContext(ctx, query, args...)
	q.rec.Record(ctx, query, args, start, err, true)
	return rows, err
}

// Debug returns an ExecQuerier logging every statement at debug level.
func Debug(q ExecQuerier, l *slog.Logger) ExecQuerier {
	if l == nil {
		l = slog.Default()
	}
	return &debugQuerier{ExecQuerier: q, log: l}
}

type debugQuerier struct {
	ExecQuerier
	log *slog.Logger
}

func (q *debugQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q.log.DebugContext(ctx, "exec", "sql", query, "args", args)
	return q.ExecQuerier.ExecContext(ctx, query, args...)
}

func (q *debugQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q.log.DebugContext(ctx, "query", "sql", query, "args", args)
	return q.ExecQuerier.QueryContext(ctx, query, args...)
}
