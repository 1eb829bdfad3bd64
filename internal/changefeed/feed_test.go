package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/infrastructure/mqtt"
	"github.com/nerrad567/objrecord/internal/record"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakePublisher records publishes and optionally fails them.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, payload, qos, retained})
	return nil
}

type broadcast struct {
	channel string
	payload any
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []broadcast
}

func (b *fakeBroadcaster) Broadcast(channel string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, broadcast{channel, payload})
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func widgetChange(kind record.ChangeKind) record.Change {
	return record.Change{
		Table:      "widgets",
		PrimaryKey: 1,
		Kind:       kind,
		Attributes: record.Attributes{"id": database.Integer(1), "name": database.Text("bolt")},
	}
}

func TestFeed_PublishesToMQTT(t *testing.T) {
	pub := &fakePublisher{}
	feed := New(WithPublisher(pub, mqtt.NewTopics("objrecord"), 1), WithClock(func() time.Time { return fixedTime }))

	if err := feed.RecordChanged(context.Background(), widgetChange(record.ChangeCreated)); err != nil {
		t.Fatalf("RecordChanged() error = %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.topic != "objrecord/records/widgets/created" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos = %d, retained = %v; want 1, false", msg.qos, msg.retained)
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if _, err := uuid.Parse(payload["id"].(string)); err != nil {
		t.Errorf("id %v is not a UUID: %v", payload["id"], err)
	}
	if payload["table"] != "widgets" || payload["kind"] != "created" || payload["primary_key"] != float64(1) {
		t.Errorf("payload = %v", payload)
	}
	attrs, _ := payload["attributes"].(map[string]any)
	if attrs["name"] != "bolt" || attrs["id"] != float64(1) {
		t.Errorf("attributes = %v", payload["attributes"])
	}
	if payload["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %v", payload["timestamp"])
	}
}

func TestFeed_Broadcasts(t *testing.T) {
	hub := &fakeBroadcaster{}
	feed := New(WithBroadcaster(hub))

	for _, kind := range []record.ChangeKind{record.ChangeUpdated, record.ChangeDestroyed} {
		if err := feed.RecordChanged(context.Background(), widgetChange(kind)); err != nil {
			t.Fatalf("RecordChanged() error = %v", err)
		}
	}

	if len(hub.msgs) != 2 {
		t.Fatalf("broadcast %d messages, want 2", len(hub.msgs))
	}
	for i, want := range []record.ChangeKind{record.ChangeUpdated, record.ChangeDestroyed} {
		if hub.msgs[i].channel != "record.widgets" {
			t.Errorf("channel = %q, want record.widgets", hub.msgs[i].channel)
		}
		ev, ok := hub.msgs[i].payload.(Event)
		if !ok || ev.Kind != want {
			t.Errorf("payload %d = %#v", i, hub.msgs[i].payload)
		}
	}

	first := hub.msgs[0].payload.(Event)
	second := hub.msgs[1].payload.(Event)
	if first.ID == second.ID {
		t.Error("events share an id")
	}
}

func TestFeed_PublishFailureStillBroadcasts(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	hub := &fakeBroadcaster{}
	feed := New(WithPublisher(pub, mqtt.NewTopics(""), 0), WithBroadcaster(hub))

	err := feed.RecordChanged(context.Background(), widgetChange(record.ChangeCreated))
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("RecordChanged() error = %v, want ErrNotConnected", err)
	}
	if len(hub.msgs) != 1 {
		t.Errorf("broadcast %d messages, want 1", len(hub.msgs))
	}
}

func TestFeed_NoSinks(t *testing.T) {
	if err := New().RecordChanged(context.Background(), widgetChange(record.ChangeCreated)); err != nil {
		t.Errorf("RecordChanged() error = %v", err)
	}
}

func TestFeed_CancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	feed := New(WithPublisher(pub, mqtt.NewTopics(""), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := feed.RecordChanged(ctx, widgetChange(record.ChangeCreated)); !errors.Is(err, context.Canceled) {
		t.Errorf("RecordChanged() error = %v, want context.Canceled", err)
	}
	if len(pub.msgs) != 0 {
		t.Error("published after cancellation")
	}
}

func TestNewEvent_NilAttributes(t *testing.T) {
	ev := New().NewEvent(record.Change{Table: "widgets", Kind: record.ChangeDestroyed})
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := decoded["attributes"].(map[string]any); !ok {
		t.Errorf("attributes = %v, want empty object", decoded["attributes"])
	}
}

// TestFeed_WithRepository wires the feed into a repository end to end.
func TestFeed_WithRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer db.Close()
	if err := db.ExecScript(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("ExecScript() error = %v", err)
	}

	pub := &fakePublisher{}
	feed := New(WithPublisher(pub, mqtt.NewTopics("objrecord"), 1))
	repo := record.NewRepository(db, func() *widget { return &widget{} }, record.WithObserver(feed))

	w := repo.Build(record.Attributes{"name": database.Text("bolt")})
	if err := repo.Save(ctx, w); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Destroy(ctx, w); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	want := []string{"objrecord/records/widgets/created", "objrecord/records/widgets/destroyed"}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(pub.msgs), len(want))
	}
	for i, topic := range want {
		if pub.msgs[i].topic != topic {
			t.Errorf("message %d topic = %q, want %q", i, pub.msgs[i].topic, topic)
		}
	}
}

type widget struct {
	record.Record
}
