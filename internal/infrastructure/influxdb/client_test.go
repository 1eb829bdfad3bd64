package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/objrecord/internal/infrastructure/config"
	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/record"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "objrecord-dev-token",
		Org:           "objrecord",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB, skipping when it is not running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	client, err := Connect(testConfig())
	if err != nil {
		if os.Getenv("RUN_INTEGRATION") != "" {
			t.Fatalf("Connect() error = %v", err)
		}
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func lineOf(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

// =============================================================================
// Point Tests
// =============================================================================

func TestQueryPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	tests := []struct {
		name string
		ev   database.QueryEvent
		want []string
	}{
		{
			name: "successful select",
			ev:   database.QueryEvent{Op: "query", Verb: "SELECT", Duration: 1500 * time.Microsecond, Rows: 3},
			want: []string{"sql_queries,", "op=query", "status=ok", "verb=SELECT", "duration_ms=1.5", "rows=3i"},
		},
		{
			name: "failed insert",
			ev:   database.QueryEvent{Op: "query", Verb: "INSERT", Err: errors.New("constraint")},
			want: []string{"status=error", "verb=INSERT", "rows=0i"},
		},
		{
			name: "transaction control without verb",
			ev:   database.QueryEvent{Op: "begin"},
			want: []string{"op=begin", "verb=NONE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineOf(queryPoint(tt.ev, ts))
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q missing %q", line, w)
				}
			}
			if !strings.HasSuffix(strings.TrimSpace(line), " 1700000000000000000") {
				t.Errorf("line %q has wrong timestamp", line)
			}
		})
	}
}

func TestQueryPoint_OmitsSQL(t *testing.T) {
	ev := database.QueryEvent{Op: "query", Verb: "SELECT", SQL: "SELECT secret FROM vault"}
	if line := lineOf(queryPoint(ev, time.Now())); strings.Contains(line, "vault") {
		t.Errorf("SQL text leaked into point: %q", line)
	}
}

func TestChangePoint(t *testing.T) {
	change := record.Change{Table: "widgets", PrimaryKey: 7, Kind: record.ChangeUpdated}
	line := lineOf(changePoint(change, time.Now()))

	for _, w := range []string{"record_changes,", "kind=updated", "table=widgets", "primary_key=7i"} {
		if !strings.Contains(line, w) {
			t.Errorf("line %q missing %q", line, w)
		}
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name      string
		batch     int
		flush     int
		wantBatch int
		wantFlush int
	}{
		{"configured", 50, 2, 50, 2},
		{"zero uses defaults", 0, 0, defaultBatchSize, defaultFlushInterval},
		{"negative uses defaults", -5, -1, defaultBatchSize, defaultFlushInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize, cfg.FlushInterval = tt.batch, tt.flush
			b, f := batchSettings(cfg)
			if b != tt.wantBatch || f != tt.wantFlush {
				t.Errorf("batchSettings() = %d, %d; want %d, %d", b, f, tt.wantBatch, tt.wantFlush)
			}
		})
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNilClient(t *testing.T) {
	var client *Client

	if client.IsConnected() {
		t.Error("IsConnected() = true for nil client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	client.Flush()
	client.ObserveQuery(database.QueryEvent{Op: "query"})
	if err := client.RecordChanged(context.Background(), record.Change{}); err != nil {
		t.Errorf("RecordChanged() error = %v", err)
	}
}

func TestConnectAndWrite(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	var (
		writeErr error
		mu       sync.Mutex
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.ObserveQuery(database.QueryEvent{Op: "query", Verb: "SELECT", Duration: time.Millisecond, Rows: 1})
	if err := client.RecordChanged(ctx, record.Change{Table: "widgets", PrimaryKey: 1, Kind: record.ChangeCreated}); err != nil {
		t.Errorf("RecordChanged() error = %v", err)
	}
	client.WritePoint("custom", map[string]string{"source": "test"}, map[string]interface{}{"value": 1.0})
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t)

	client.ObserveQuery(database.QueryEvent{Op: "query", Verb: "SELECT"})
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	// Writes after Close are dropped, not panics.
	client.ObserveQuery(database.QueryEvent{Op: "query"})
	client.Flush()
}
