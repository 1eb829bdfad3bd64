package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
)

// openTestConn opens a raw in-memory driver connection.
func openTestConn(t *testing.T, driverName string) driver.Conn {
	t.Helper()

	drv, err := engineDriver(driverName)
	if err != nil {
		t.Fatalf("engineDriver(%q) error = %v", driverName, err)
	}
	conn, err := drv.Open(InMemoryPath)
	if err != nil {
		t.Fatalf("opening %s connection: %v", driverName, err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup
	return conn
}

func prepareTestStatement(t *testing.T, conn driver.Conn, sql string) *Statement {
	t.Helper()
	stmt, err := PrepareStatement(context.Background(), conn, sql)
	if err != nil {
		t.Fatalf("PrepareStatement(%q) error = %v", sql, err)
	}
	t.Cleanup(func() { stmt.Close() }) //nolint:errcheck // Test cleanup
	return stmt
}

func TestStatement_StepAndColumns(t *testing.T) {
	for _, drv := range drivers {
		t.Run(drv, func(t *testing.T) {
			ctx := context.Background()
			stmt := prepareTestStatement(t, openTestConn(t, drv),
				"SELECT 1 AS one, 'two' AS two UNION ALL SELECT 3, 'four'")

			cols, err := stmt.Columns(ctx)
			if err != nil {
				t.Fatalf("Columns() error = %v", err)
			}
			if len(cols) != 2 || cols[0] != "one" || cols[1] != "two" {
				t.Errorf("Columns() = %v, want [one two]", cols)
			}

			var rows []Row
			for {
				row, err := stmt.Step(ctx)
				if errors.Is(err, ErrDone) {
					break
				}
				if err != nil {
					t.Fatalf("Step() error = %v", err)
				}
				rows = append(rows, row)
			}
			if len(rows) != 2 {
				t.Fatalf("got %d rows, want 2", len(rows))
			}
			if !rows[1]["one"].Equal(Integer(3)) || !rows[1]["two"].Equal(Text("four")) {
				t.Errorf("second row = %v", rows[1])
			}

			// Exhausted statements stay exhausted until Reset.
			if _, err := stmt.Step(ctx); !errors.Is(err, ErrDone) {
				t.Errorf("Step() after done error = %v, want ErrDone", err)
			}
			if err := stmt.Reset(); err != nil {
				t.Fatalf("Reset() error = %v", err)
			}
			row, err := stmt.Step(ctx)
			if err != nil {
				t.Fatalf("Step() after Reset error = %v", err)
			}
			if !row["one"].Equal(Integer(1)) {
				t.Errorf("first row after Reset = %v", row)
			}
		})
	}
}

func TestStatement_Bind(t *testing.T) {
	for _, drv := range drivers {
		t.Run(drv, func(t *testing.T) {
			ctx := context.Background()
			stmt := prepareTestStatement(t, openTestConn(t, drv), "SELECT ? AS a, ? AS b")

			if got := stmt.BindParameterCount(); got != 2 {
				t.Fatalf("BindParameterCount() = %d, want 2", got)
			}

			for _, pos := range []int{0, 3} {
				err := stmt.BindValue(1, pos)
				var bindErr *BindError
				if !errors.As(err, &bindErr) || bindErr.Position != pos {
					t.Errorf("BindValue(_, %d) error = %v, want *BindError", pos, err)
				}
			}

			if err := stmt.Bind(1); !errors.Is(err, ErrBind) {
				t.Errorf("Bind() with one value error = %v, want ErrBind", err)
			}

			if err := stmt.Bind(int16(5), "x"); err != nil {
				t.Fatalf("Bind() error = %v", err)
			}
			row, err := stmt.Step(ctx)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if !row["a"].Equal(Integer(5)) || !row["b"].Equal(Text("x")) {
				t.Errorf("row = %v", row)
			}

			// Rebinding mid-iteration restarts with the new values.
			if err := stmt.BindValue(6.5, 1); err != nil {
				t.Fatalf("BindValue() error = %v", err)
			}
			row, err = stmt.Step(ctx)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if !row["a"].Equal(Real(6.5)) {
				t.Errorf("a = %v, want 6.5", row["a"])
			}

			if err := stmt.Reset(); err != nil {
				t.Fatalf("Reset() error = %v", err)
			}
			stmt.ClearBindings()
			row, err = stmt.Step(ctx)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if !row["a"].IsNull() || !row["b"].IsNull() {
				t.Errorf("row after ClearBindings = %v, want NULLs", row)
			}
		})
	}
}

func TestStatement_NamedParameters(t *testing.T) {
	for _, drv := range drivers {
		t.Run(drv, func(t *testing.T) {
			stmt := prepareTestStatement(t, openTestConn(t, drv), "SELECT :x AS a, :y AS b, :x AS c")

			if got := stmt.BindParameterCount(); got != 2 {
				t.Fatalf("BindParameterCount() = %d, want 2", got)
			}
			if err := stmt.Bind("first", "second"); err != nil {
				t.Fatalf("Bind() error = %v", err)
			}
			row, err := stmt.Step(context.Background())
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if !row["a"].Equal(Text("first")) || !row["b"].Equal(Text("second")) || !row["c"].Equal(Text("first")) {
				t.Errorf("row = %v", row)
			}
		})
	}
}

func TestStatement_Reprepare(t *testing.T) {
	ctx := context.Background()
	stmt := prepareTestStatement(t, openTestConn(t, DriverMattn), "SELECT 1 AS first")

	if _, err := stmt.Columns(ctx); err != nil {
		t.Fatalf("Columns() error = %v", err)
	}

	if err := stmt.Prepare(ctx, "SELECT 2 AS second, 3 AS third"); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if stmt.SQL() != "SELECT 2 AS second, 3 AS third" {
		t.Errorf("SQL() = %q", stmt.SQL())
	}
	cols, err := stmt.Columns(ctx)
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if len(cols) != 2 || cols[0] != "second" {
		t.Errorf("Columns() after Prepare = %v, want [second third]", cols)
	}

	err = stmt.Prepare(ctx, "NOT SQL")
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("Prepare() error = %v, want ErrCompile", err)
	}
	if _, err := stmt.Step(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Step() on unprepared statement error = %v, want ErrClosed", err)
	}
}

func TestStatement_Close(t *testing.T) {
	ctx := context.Background()
	stmt := prepareTestStatement(t, openTestConn(t, DriverMattn), "SELECT 1")

	if _, err := stmt.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	// Closing mid-iteration releases the open cursor too.
	if err := stmt.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := stmt.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := stmt.Step(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Step() after Close error = %v, want ErrClosed", err)
	}
	if err := stmt.Bind(); !errors.Is(err, ErrClosed) {
		t.Errorf("Bind() after Close error = %v, want ErrClosed", err)
	}
}

func TestStatement_StepError(t *testing.T) {
	for _, drv := range drivers {
		t.Run(drv, func(t *testing.T) {
			ctx := context.Background()
			conn := openTestConn(t, drv)

			setup := prepareTestStatement(t, conn, "CREATE TABLE uniq (v INTEGER UNIQUE)")
			if _, err := setup.Step(ctx); !errors.Is(err, ErrDone) {
				t.Fatalf("create table error = %v", err)
			}

			insert := prepareTestStatement(t, conn, "INSERT INTO uniq (v) VALUES (?)")
			for i := 0; i < 2; i++ {
				if err := insert.Bind(1); err != nil {
					t.Fatalf("Bind() error = %v", err)
				}
				_, err := insert.Step(ctx)
				if i == 0 {
					if !errors.Is(err, ErrDone) {
						t.Fatalf("first insert error = %v", err)
					}
					continue
				}
				var engineErr *EngineError
				if !errors.As(err, &engineErr) {
					t.Fatalf("second insert error = %v, want *EngineError", err)
				}
				if engineErr.Code != 19 {
					t.Errorf("EngineError.Code = %d, want 19 (constraint)", engineErr.Code)
				}
			}

			// The failed step leaves the statement exhausted, not broken.
			if _, err := insert.Step(ctx); !errors.Is(err, ErrDone) {
				t.Errorf("Step() after error = %v, want ErrDone", err)
			}
		})
	}
}

func TestStatement_RejectsMultipleStatements(t *testing.T) {
	for _, drv := range drivers {
		t.Run(drv, func(t *testing.T) {
			ctx := context.Background()
			conn := openTestConn(t, drv)

			setup := prepareTestStatement(t, conn, "CREATE TABLE t (v INTEGER)")
			if _, err := setup.Step(ctx); !errors.Is(err, ErrDone) {
				t.Fatalf("create table error = %v", err)
			}

			_, err := PrepareStatement(ctx, conn, "SELECT 1; DROP TABLE t")
			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("PrepareStatement() error = %v, want *CompileError", err)
			}

			// The table survives: nothing after the first statement ran.
			check := prepareTestStatement(t, conn, "SELECT COUNT(*) AS n FROM t;")
			if _, err := check.Step(ctx); err != nil {
				t.Errorf("table t is gone: %v", err)
			}
		})
	}
}

func TestSQLiteAdapter_RejectsMultipleStatements(t *testing.T) {
	for _, drv := range drivers {
		t.Run(drv, func(t *testing.T) {
			ctx := context.Background()
			db := openTestDB(t, drv)
			createWidgets(t, db)
			insertWidget(t, db, "bolt")

			if err := db.Begin(ctx); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			if _, err := db.Query(ctx, "SELECT 1; COMMIT; DELETE FROM widgets"); !errors.Is(err, ErrCompile) {
				t.Errorf("Query() error = %v, want ErrCompile", err)
			}
			if err := db.Rollback(ctx); err != nil {
				t.Fatalf("Rollback() error = %v", err)
			}
			if got := widgetNames(t, db); len(got) != 1 {
				t.Errorf("widgets = %v, want [bolt]", got)
			}
		})
	}
}

// badRows yields one row holding a value no SQLite driver produces.
type badRows struct{ closed bool }

func (r *badRows) Columns() []string { return []string{"v"} }
func (r *badRows) Close() error      { r.closed = true; return nil }
func (r *badRows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}
	dest[0] = struct{}{}
	return nil
}

func TestStatement_DecodeErrorEndsStep(t *testing.T) {
	ctx := context.Background()
	stmt := prepareTestStatement(t, openTestConn(t, DriverMattn), "SELECT 1 AS v")
	if _, err := stmt.Columns(ctx); err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if err := stmt.closeRows(); err != nil {
		t.Fatalf("closeRows() error = %v", err)
	}
	rows := &badRows{}
	stmt.rows = rows
	stmt.dest = make([]driver.Value, 1)

	_, err := stmt.Step(ctx)
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("Step() error = %v, want ErrEngine", err)
	}
	if !rows.closed || stmt.rows != nil {
		t.Error("cursor left open after a decode error")
	}
	if _, err := stmt.Step(ctx); !errors.Is(err, ErrDone) {
		t.Errorf("Step() after decode error = %v, want ErrDone", err)
	}
}
