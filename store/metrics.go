package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// collector exports the statistics of a Store. Values are read at scrape
// time from the store's own counters.
type collector struct {
	s *Store

	openConns   *prometheus.Desc
	stmtHits    *prometheus.Desc
	stmtMisses  *prometheus.Desc
	stmtEvicted *prometheus.Desc
	stmtEntries *prometheus.Desc
	indexes     *prometheus.Desc
	queries     *prometheus.Desc
	execs       *prometheus.Desc
	errors      *prometheus.Desc
	slow        *prometheus.Desc
	duration    *prometheus.Desc
}

// Collector returns a Prometheus collector of the store statistics,
// labeled with the dialect name.
//
//	prometheus.MustRegister(s.Collector())
func (s *Store) Collector() prometheus.Collector {
	labels := prometheus.Labels{"dialect": s.dialect.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("strata_"+name, help, nil, labels)
	}
	return &collector{
		s:           s,
		openConns:   desc("open_connections", "Number of connections held open by the store"),
		stmtHits:    desc("stmt_cache_hits_total", "Statement cache checkouts served by a cached statement"),
		stmtMisses:  desc("stmt_cache_misses_total", "Statement cache checkouts that built a new statement"),
		stmtEvicted: desc("stmt_cache_evictions_total", "Statements evicted from the statement cache"),
		stmtEntries: desc("stmt_cache_entries", "Statements currently cached"),
		indexes:     desc("indexes_cached", "Secondary indexes verified by the store"),
		queries:     desc("queries_total", "Queries executed"),
		execs:       desc("execs_total", "Statements executed"),
		errors:      desc("errors_total", "Statements that failed"),
		slow:        desc("slow_queries_total", "Statements exceeding the slow threshold"),
		duration:    desc("query_duration_seconds_total", "Time spent executing statements"),
	}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.openConns, c.stmtHits, c.stmtMisses, c.stmtEvicted, c.stmtEntries,
		c.indexes, c.queries, c.execs, c.errors, c.slow, c.duration,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge(c.openConns, float64(c.s.OpenConnections()))
	gauge(c.indexes, float64(c.s.indexes.len()))
	var hits, misses, evictions, entries float64
	if st := c.s.stmts; st != nil {
		hits, misses = float64(st.Hits()), float64(st.Misses())
		evictions, entries = float64(st.Evictions()), float64(st.Len())
	}
	counter(c.stmtHits, hits)
	counter(c.stmtMisses, misses)
	counter(c.stmtEvicted, evictions)
	gauge(c.stmtEntries, entries)
	stats := c.s.Stats()
	counter(c.queries, float64(stats.TotalQueries))
	counter(c.execs, float64(stats.TotalExecs))
	counter(c.errors, float64(stats.Errors))
	counter(c.slow, float64(stats.SlowQueries))
	counter(c.duration, stats.TotalDuration.Seconds())
}
