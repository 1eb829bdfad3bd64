package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/record"
)

// Key constants are exported for documentation; callers normally use the
// Collectors methods rather than the names.
const (
	QueriesTotalKey         = "objrecord_queries_total"
	QueryDurationSecondsKey = "objrecord_query_duration_seconds"
	QueryRowsTotalKey       = "objrecord_query_rows_total"
	RecordChangesTotalKey   = "objrecord_record_changes_total"
)

// Outcome label values.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Collectors holds the Prometheus collectors for adapter operations and
// record changes. It is a database.QueryTracer and a record.Observer.
type Collectors struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDurationSeconds *prometheus.HistogramVec
	QueryRowsTotal       prometheus.Counter
	RecordChangesTotal   *prometheus.CounterVec
}

var (
	_ database.QueryTracer = (*Collectors)(nil)
	_ record.Observer      = (*Collectors)(nil)
)

// New returns unregistered collectors.
func New() *Collectors {
	return &Collectors{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: QueriesTotalKey,
			Help: "Cumulative number of adapter operations, by operation, statement verb and outcome.",
		}, []string{"op", "verb", "status"}),
		QueryDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    QueryDurationSecondsKey,
			Help:    "Latency of adapter operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9),
		}, []string{"op", "verb"}),
		QueryRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: QueryRowsTotalKey,
			Help: "Cumulative number of result rows returned by queries.",
		}),
		RecordChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RecordChangesTotalKey,
			Help: "Cumulative number of saved and destroyed records, by table and kind.",
		}, []string{"table", "kind"}),
	}
}

// Collectors returns every collector for registration.
func (c *Collectors) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.QueriesTotal,
		c.QueryDurationSeconds,
		c.QueryRowsTotal,
		c.RecordChangesTotal,
	}
}

// Register registers every collector with reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, col := range c.Collectors() {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// ObserveQuery records one adapter operation.
func (c *Collectors) ObserveQuery(ev database.QueryEvent) {
	verb := ev.Verb
	if verb == "" {
		verb = "NONE"
	}
	status := Ok
	if ev.Err != nil {
		status = Fail
	}
	c.QueriesTotal.WithLabelValues(ev.Op, verb, status).Inc()
	c.QueryDurationSeconds.WithLabelValues(ev.Op, verb).Observe(ev.Duration.Seconds())
	if ev.Rows > 0 {
		c.QueryRowsTotal.Add(float64(ev.Rows))
	}
}

// RecordChanged counts one record change. It never fails.
func (c *Collectors) RecordChanged(_ context.Context, change record.Change) error {
	c.RecordChangesTotal.WithLabelValues(change.Table, string(change.Kind)).Inc()
	return nil
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
