// Package database provides the SQLite storage layer for objrecord.
//
// This package manages:
//   - One driver connection per adapter (mattn/go-sqlite3 or modernc.org/sqlite)
//   - Prepared statements with typed positional binding and row stepping
//   - A bounded LRU cache of prepared statements keyed by SQL text
//   - Single-level transactions with an explicit in-transaction flag
//   - Schema introspection through pragma_table_info
//
// Values are carried as a tagged union (Value) over SQLite's five storage
// classes: NULL, INTEGER, REAL, TEXT and BLOB. Rows are decoded from the
// storage class of each cell, not from the declared column type.
//
// Security Considerations:
//   - All values are bound as parameters, never interpolated into SQL
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Concurrency:
//
// An SQLiteAdapter owns a single connection and is not goroutine-safe.
// Wrap it with Synchronized when it is shared, as the API server does.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:               "./data/objrecord.db",
//	    WALMode:            true,
//	    BusyTimeout:        5,
//	    ForeignKeys:        true,
//	    StatementCacheSize: 64,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	rows, err := db.Query(ctx, "SELECT * FROM widgets WHERE name = ?", "bolt")
package database
