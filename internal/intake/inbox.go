package intake

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// ErrInboxClosed is returned by Submit after Close.
var ErrInboxClosed = errors.New("inbox closed")

// HandlerFunc processes one message.
type HandlerFunc func(ctx context.Context, sender, text string)

type message struct {
	sender string
	text   string
}

// Inbox fans messages out to a fixed set of workers. A sender always maps to
// the same worker, so its messages are handled one at a time in arrival
// order while different senders proceed in parallel.
type Inbox struct {
	shards  []chan message
	handler HandlerFunc
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewInbox builds an inbox with n workers each buffering up to buffer messages.
func NewInbox(n, buffer int, handler HandlerFunc) *Inbox {
	if n <= 0 {
		n = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	shards := make([]chan message, n)
	for i := range shards {
		shards[i] = make(chan message, buffer)
	}
	return &Inbox{shards: shards, handler: handler}
}

// Start launches the workers. They stop after Close once their queues drain.
func (b *Inbox) Start(ctx context.Context) {
	for _, ch := range b.shards {
		b.wg.Add(1)
		go func(ch <-chan message) {
			defer b.wg.Done()
			for m := range ch {
				b.handler(ctx, m.sender, m.text)
			}
		}(ch)
	}
}

// Submit queues a message, blocking while the sender's worker is full.
func (b *Inbox) Submit(ctx context.Context, sender, text string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrInboxClosed
	}
	select {
	case b.shards[b.shardFor(sender)] <- message{sender: sender, text: text}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for queued ones to finish.
func (b *Inbox) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, ch := range b.shards {
			close(ch)
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Inbox) shardFor(sender string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sender))
	return int(h.Sum32() % uint32(len(b.shards)))
}
