package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yungbote/lms-progress/internal/clients/redis"
	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
)

func TestLocalBusForwards(t *testing.T) {
	b := NewLocalBus(testutil.Logger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []Event
	if err := b.StartForwarder(ctx, func(ev Event) { got = append(got, ev) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, Event{Name: "progress_migration_complete", Props: map[string]any{"errors": 0}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].Name != "progress_migration_complete" || got[0].At.IsZero() {
		t.Fatalf("forwarded: %+v", got)
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := redis.NewClient(ctx, addr)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	b, err := NewRedisBus(testutil.Logger(t), rdb, "lms-progress:test-events")
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	got := make(chan Event, 1)
	if err := b.StartForwarder(ctx, func(ev Event) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, Event{Name: "ping"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case ev := <-got:
		if ev.Name != "ping" {
			t.Fatalf("event: %+v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event")
	}
}

func TestEventCodec(t *testing.T) {
	if _, err := encodeEvent(Event{}); err == nil {
		t.Fatalf("expected error for unnamed event")
	}
	raw, err := encodeEvent(Event{Name: "progress_migration_failed", Props: map[string]any{"reason": "x"}})
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}
	ev, err := decodeEvent(string(raw))
	if err != nil || ev.Name != "progress_migration_failed" || ev.At.IsZero() || ev.Props["reason"] != "x" {
		t.Fatalf("decodeEvent: %+v %v", ev, err)
	}
	for _, bad := range []string{"not json", `{"props":{}}`} {
		if _, err := decodeEvent(bad); err == nil {
			t.Fatalf("decodeEvent(%q) should fail", bad)
		}
	}
}
