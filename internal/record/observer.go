package record

import (
	"context"
	"errors"
)

// ChangeKind names what happened to a record.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDestroyed ChangeKind = "destroyed"
)

// Change describes one successful Save or Destroy.
type Change struct {
	Table      string
	PrimaryKey int64
	Kind       ChangeKind
	Attributes Attributes
}

// Observer is notified after every successful Save or Destroy.
// Errors are logged by the repository and never returned to the caller
// of Save or Destroy.
//
// Notification happens when the statement succeeds, not when it becomes
// durable: a change made inside a transaction is reported even if the
// caller later rolls that transaction back. Callers that need
// commit-only events attach observers to a repository used outside
// explicit transactions, as the API server does.
type Observer interface {
	RecordChanged(ctx context.Context, change Change) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, change Change) error

// RecordChanged calls f(ctx, change).
func (f ObserverFunc) RecordChanged(ctx context.Context, change Change) error {
	return f(ctx, change)
}

type multiObserver []Observer

func (m multiObserver) RecordChanged(ctx context.Context, change Change) error {
	var errs []error
	for _, o := range m {
		if err := o.RecordChanged(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Observers combines several observers into one. Every observer is called
// even when an earlier one fails; the failures are joined. Nil entries are
// skipped.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

// Logger is the logging surface the repository needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
