// Package events fans booking change events out to in-process subscribers
// and external sinks.
package events

import (
	"context"
	"sync"

	"gigBack/internal/models"
)

// Logger is the logging surface the bus needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Bus delivers every published event to all current subscribers. A
// subscriber that is not keeping up loses events instead of blocking writers.
type Bus struct {
	log Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan models.Event
}

func NewBus(log Logger) *Bus {
	return &Bus{log: log, subs: make(map[int]chan models.Event)}
}

// Publish never blocks.
func (b *Bus) Publish(ctx context.Context, ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Errorf("event subscriber %d is full, dropping %s for %s", id, ev.Type, ev.EngagementID)
		}
	}
}

// Subscribe returns a buffered event channel and a function that detaches it.
func (b *Bus) Subscribe(buffer int) (<-chan models.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Sink receives events outside the process.
type Sink interface {
	Send(ctx context.Context, ev models.Event) error
}

// Forward drains a subscription into sink until ctx is done or the
// subscription is closed. Sink errors are logged and the event is skipped.
func Forward(ctx context.Context, events <-chan models.Event, sink Sink, log Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sink.Send(ctx, ev); err != nil {
				log.Errorf("forward %s for %s: %v", ev.Type, ev.EngagementID, err)
			}
		}
	}
}
