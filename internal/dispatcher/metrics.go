// Package dispatcher routes parsed statements to per-table BTree handles,
// serializing writers and readers per table per spec §5, and reports
// Prometheus metrics for each statement.
package dispatcher

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus collectors for statement
// execution.
type Metrics struct {
	StatementsTotal   *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec
	LockWaitSeconds   *prometheus.HistogramVec
	TablesTotal       prometheus.Gauge
}

var shared struct {
	once    sync.Once
	metrics *Metrics
}

// NewMetrics registers the dispatcher's collectors with the default
// registry on its first call and returns those same collectors on every call.
func NewMetrics() *Metrics {
	shared.once.Do(func() { shared.metrics = newMetrics() })
	return shared.metrics
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "katadb_statements_total",
			Help: "Total number of SQL statements executed, by kind and status",
		},
		[]string{"kind", "status"},
	)

	m.StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "katadb_statement_duration_seconds",
			Help:    "Duration of SQL statement execution in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind", "table"},
	)

	m.LockWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "katadb_table_lock_wait_seconds",
			Help:    "Time spent waiting to acquire a table's reader/writer lock",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"table", "mode"},
	)

	m.TablesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "katadb_tables_total",
			Help: "Number of tables currently registered",
		},
	)

	return m
}
