package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/objrecord/internal/infrastructure/mqtt"
	"github.com/nerrad567/objrecord/internal/record"
)

// ChannelPrefix prefixes websocket channel names; the table name follows.
const ChannelPrefix = "record."

// Publisher sends a payload to an MQTT topic. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster delivers a payload to websocket clients subscribed to a
// channel. *api.Hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Event is the wire form of one record change.
type Event struct {
	ID         string            `json:"id"`
	Table      string            `json:"table"`
	PrimaryKey int64             `json:"primary_key"`
	Kind       record.ChangeKind `json:"kind"`
	Attributes record.Attributes `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Feed fans record changes out to MQTT and websocket clients.
// It implements record.Observer; install it with record.WithObserver.
// Either sink may be absent.
type Feed struct {
	publisher   Publisher
	topics      mqtt.Topics
	qos         byte
	broadcaster Broadcaster

	now   func() time.Time
	newID func() string
}

var _ record.Observer = (*Feed)(nil)

// Option configures a Feed.
type Option func(*Feed)

// WithPublisher publishes every event to topics.Record(table, kind).
func WithPublisher(p Publisher, topics mqtt.Topics, qos byte) Option {
	return func(f *Feed) {
		f.publisher = p
		f.topics = topics
		f.qos = qos
	}
}

// WithBroadcaster broadcasts every event on Channel(table).
func WithBroadcaster(b Broadcaster) Option {
	return func(f *Feed) { f.broadcaster = b }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// New creates a feed.
func New(opts ...Option) *Feed {
	f := &Feed{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Channel returns the websocket channel carrying changes to table.
func Channel(table string) string {
	return ChannelPrefix + table
}

// NewEvent builds the event for change, stamped with a fresh id.
func (f *Feed) NewEvent(change record.Change) Event {
	attrs := change.Attributes
	if attrs == nil {
		attrs = record.Attributes{}
	}
	return Event{
		ID:         f.newID(),
		Table:      change.Table,
		PrimaryKey: change.PrimaryKey,
		Kind:       change.Kind,
		Attributes: attrs,
		Timestamp:  f.now().UTC(),
	}
}

// RecordChanged publishes change to every configured sink. A failing sink
// does not stop the others; failures are joined.
func (f *Feed) RecordChanged(ctx context.Context, change record.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := f.NewEvent(change)

	var errs []error
	if f.publisher != nil {
		if err := f.publish(ev); err != nil {
			errs = append(errs, err)
		}
	}
	if f.broadcaster != nil {
		f.broadcaster.Broadcast(Channel(ev.Table), ev)
	}
	return errors.Join(errs...)
}

func (f *Feed) publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s change event: %w", ev.Table, err)
	}
	topic := f.topics.Record(ev.Table, string(ev.Kind))
	if err := f.publisher.Publish(topic, payload, f.qos, false); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
