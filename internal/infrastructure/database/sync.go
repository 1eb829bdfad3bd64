package database

import (
	"context"
	"sync"
)

// SynchronizedAdapter serialises every call to an inner Adapter with a
// mutex. Each call is atomic on its own; use Transaction to hold the lock
// across a group of calls.
type SynchronizedAdapter struct {
	mu    sync.Mutex
	inner Adapter
}

var _ Transactor = (*SynchronizedAdapter)(nil)

// Synchronized wraps a for use from several goroutines.
func Synchronized(a Adapter) *SynchronizedAdapter {
	return &SynchronizedAdapter{inner: a}
}

// Unwrap returns the wrapped adapter.
func (s *SynchronizedAdapter) Unwrap() Adapter {
	return s.inner
}

func (s *SynchronizedAdapter) Query(ctx context.Context, sql string, params ...any) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Query(ctx, sql, params...)
}

func (s *SynchronizedAdapter) ColumnsForTable(ctx context.Context, table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ColumnsForTable(ctx, table)
}

func (s *SynchronizedAdapter) TableInfo(ctx context.Context, table string) ([]Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.TableInfo(ctx, table)
}

func (s *SynchronizedAdapter) LastInsertID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.LastInsertID(ctx)
}

func (s *SynchronizedAdapter) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Begin(ctx)
}

func (s *SynchronizedAdapter) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Commit(ctx)
}

func (s *SynchronizedAdapter) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Rollback(ctx)
}

func (s *SynchronizedAdapter) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.InTransaction()
}

func (s *SynchronizedAdapter) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.HealthCheck(ctx)
}

func (s *SynchronizedAdapter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

// Transaction holds the lock for the whole of fn, which receives the
// unwrapped adapter. fn must not use s itself or it will deadlock.
func (s *SynchronizedAdapter) Transaction(ctx context.Context, fn func(Adapter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RunInTransaction(ctx, s.inner, fn)
}

// Exclusive runs fn with the lock held, passing the unwrapped adapter, so
// a dependent sequence of calls is not interleaved with other goroutines.
// Unlike Transaction it opens no transaction.
func (s *SynchronizedAdapter) Exclusive(fn func(Adapter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.inner)
}

// Exclusive runs fn against a. Adapters that serialise callers (see
// SynchronizedAdapter) hold their lock for the whole of fn; any other
// adapter is passed through unchanged.
func Exclusive(a Adapter, fn func(Adapter) error) error {
	if x, ok := a.(interface {
		Exclusive(func(Adapter) error) error
	}); ok {
		return x.Exclusive(fn)
	}
	return fn(a)
}
