package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventHandler reacts to a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans complaint events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// inMemoryDispatcher delivers synchronously on the publisher's goroutine.
// Subscriber lists are replaced, never mutated, so Publish reads them
// without copying.
type inMemoryDispatcher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
}

// NewInMemoryDispatcher creates an empty dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{subscribers: make(map[EventType][]EventHandler)}
}

// Publish stamps the event and calls every subscriber for its type. A failing
// subscriber does not stop the rest; all failures are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	subs := d.subscribers[event.Type]
	d.mu.RUnlock()

	var errs []error
	for i, handle := range subs {
		if err := handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s subscriber %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe adds a handler for eventType.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current := d.subscribers[eventType]
	next := make([]EventHandler, len(current), len(current)+1)
	copy(next, current)
	d.subscribers[eventType] = append(next, handler)
}
