package bus

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// localBus logs every event and fans it out to in-process forwarders. Used
// when redis is not configured.
type localBus struct {
	log  *logger.Logger
	mu   sync.RWMutex
	subs map[int]func(Event)
	next int
}

func NewLocalBus(log *logger.Logger) Bus {
	return &localBus{
		log:  log.With("service", "LocalEventBus"),
		subs: map[int]func(Event){},
	}
}

func (b *localBus) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.log.Info("Event", "name", ev.Name, "props", ev.Props)

	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *localBus) Close() error { return nil }
