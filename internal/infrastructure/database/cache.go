package database

import (
	"context"
	"database/sql/driver"

	lru "github.com/hashicorp/golang-lru"
)

// statementCache holds prepared statements keyed by SQL text.
// Evicted statements are finalised.
type statementCache struct {
	cache *lru.Cache
}

func newStatementCache(size int) (*statementCache, error) {
	var cache, err = lru.NewWithEvict(size, func(key, value interface{}) {
		_ = value.(*Statement).Close() //nolint:errcheck // Nothing to report to on eviction
	})
	if err != nil {
		return nil, err
	}
	return &statementCache{cache: cache}, nil
}

// acquire returns a ready statement for sql and a release function that
// must be called once the caller is done with it. Cached statements are
// reset and cleared on release rather than finalised.
func (c *statementCache) acquire(ctx context.Context, conn driver.Conn, sql string) (*Statement, func(), error) {
	if v, ok := c.cache.Get(sql); ok {
		stmt := v.(*Statement)
		return stmt, func() { releaseCached(stmt) }, nil
	}
	stmt, err := PrepareStatement(ctx, conn, sql)
	if err != nil {
		return nil, nil, err
	}
	c.cache.Add(sql, stmt)
	return stmt, func() { releaseCached(stmt) }, nil
}

func releaseCached(stmt *Statement) {
	_ = stmt.Reset() //nolint:errcheck // Errors already surfaced by Step
	stmt.ClearBindings()
}

func (c *statementCache) len() int {
	return c.cache.Len()
}

// purge finalises every cached statement.
func (c *statementCache) purge() {
	c.cache.Purge()
}
