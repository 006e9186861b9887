package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

const defaultChannel = "lms-progress:events"

// redisBus fans migration events out to every process subscribed to channel,
// so a CLI run is visible in the server's log and vice versa.
type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus does not take ownership of rdb; Close leaves it open.
func NewRedisBus(log *logger.Logger, rdb *goredis.Client, channel string) (Bus, error) {
	if rdb == nil {
		return nil, errors.New("redis bus: nil client")
	}
	if channel == "" {
		channel = defaultChannel
	}
	return &redisBus{log: log.With("component", "RedisEventBus", "channel", channel), rdb: rdb, channel: channel}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis bus publish %s: %w", ev.Name, err)
	}
	return nil
}

// StartForwarder subscribes synchronously, then delivers in the background
// until ctx ends or the subscription closes.
func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	if onEvent == nil {
		return errors.New("redis bus: nil onEvent")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis bus subscribe: %w", err)
	}
	go b.forward(ctx, sub, onEvent)
	return nil
}

func (b *redisBus) forward(ctx context.Context, sub *goredis.PubSub, onEvent func(ev Event)) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		var msg *goredis.Message
		var ok bool
		select {
		case <-ctx.Done():
			return
		case msg, ok = <-msgs:
		}
		if !ok {
			return
		}
		ev, err := decodeEvent(msg.Payload)
		if err != nil {
			b.log.Warn("Dropping malformed event", "error", err)
			continue
		}
		onEvent(ev)
	}
}

func (b *redisBus) Close() error { return nil }

func encodeEvent(ev Event) ([]byte, error) {
	if ev.Name == "" {
		return nil, errors.New("event name required")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return json.Marshal(ev)
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Name == "" {
		return Event{}, errors.New("event without name")
	}
	return ev, nil
}
