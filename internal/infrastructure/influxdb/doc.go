// Package influxdb writes objrecord telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Purpose
//
// Two measurements are written:
//   - sql_queries: one point per adapter operation (Client is a database.QueryTracer)
//   - record_changes: one point per saved or destroyed record (Client is a record.Observer)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	adapter.SetTracer(client)
//	repo := record.NewRepository(adapter, newWidget, record.WithObserver(client))
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes never block and never return errors; batch failures are delivered
// to the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
