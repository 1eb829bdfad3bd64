package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/record"
)

// Measurement names written by this package.
const (
	MeasurementQueries = "sql_queries"
	MeasurementChanges = "record_changes"
)

var (
	_ database.QueryTracer = (*Client)(nil)
	_ record.Observer      = (*Client)(nil)
)

// ObserveQuery records one adapter operation.
//
// Tags are low-cardinality (operation, statement verb, outcome); the SQL
// text itself is never written.
//
// Example line:
//
//	sql_queries,op=query,status=ok,verb=SELECT duration_ms=0.42,rows=3i
func (c *Client) ObserveQuery(ev database.QueryEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(queryPoint(ev, time.Now()))
}

// RecordChanged records one successful Save or Destroy. It never fails;
// changes observed while disconnected are dropped.
func (c *Client) RecordChanged(_ context.Context, change record.Change) error {
	if !c.IsConnected() {
		return nil
	}
	c.writeAPI.WritePoint(changePoint(change, time.Now()))
	return nil
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func queryPoint(ev database.QueryEvent, ts time.Time) *write.Point {
	verb := ev.Verb
	if verb == "" {
		verb = "NONE"
	}
	status := "ok"
	if ev.Err != nil {
		status = "error"
	}
	return write.NewPoint(
		MeasurementQueries,
		map[string]string{
			"op":     ev.Op,
			"verb":   verb,
			"status": status,
		},
		map[string]interface{}{
			"duration_ms": float64(ev.Duration) / float64(time.Millisecond),
			"rows":        ev.Rows,
		},
		ts,
	)
}

func changePoint(change record.Change, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementChanges,
		map[string]string{
			"table": change.Table,
			"kind":  string(change.Kind),
		},
		map[string]interface{}{
			"primary_key": change.PrimaryKey,
		},
		ts,
	)
}
