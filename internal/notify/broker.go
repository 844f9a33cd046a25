// Package notify fans progress entries out to live subscribers.
// Delivery is best-effort: the durable progress log is the source of truth,
// subscribers only get a live view.
package notify

import (
	"sync"

	"github.com/example/conveyor/internal/ports/secondary"
)

type subscriber struct {
	id       int64
	ticketID string
	ch       chan *secondary.ProgressRecord
}

// Broker is an in-memory progress notifier.
type Broker struct {
	mu          sync.RWMutex
	closed      bool
	nextID      int64
	bufferSize  int
	subscribers map[int64]subscriber
}

// NewBroker creates a broker with the given per-subscriber buffer size.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broker{
		bufferSize:  bufferSize,
		subscribers: make(map[int64]subscriber),
	}
}

// Subscribe registers a listener for a ticket's progress entries. An empty
// ticketID receives entries for every ticket. The returned stop function
// must be called to release the subscription.
func (b *Broker) Subscribe(ticketID string) (<-chan *secondary.ProgressRecord, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *secondary.ProgressRecord, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	sub := subscriber{
		id:       b.nextID,
		ticketID: ticketID,
		ch:       ch,
	}
	b.subscribers[sub.id] = sub
	return ch, func() {
		b.unsubscribe(sub.id)
	}
}

// Publish delivers an entry to matching subscribers without blocking.
// Sends stay under the read lock: channels are only closed under the write
// lock, so a send can never hit a closed channel. tryPublish never blocks,
// so the lock is held only briefly.
func (b *Broker) Publish(entry *secondary.ProgressRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		if sub.ticketID != "" && sub.ticketID != entry.TicketID {
			continue
		}
		tryPublish(sub.ch, entry)
	}
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

func (b *Broker) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(sub.ch)
}

func tryPublish(ch chan *secondary.ProgressRecord, entry *secondary.ProgressRecord) bool {
	select {
	case ch <- entry:
		return true
	default:
		// Drop one stale entry and retry once to avoid blocking fanout.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- entry:
			return true
		default:
			return false
		}
	}
}

// Ensure Broker implements the interface
var _ secondary.ProgressNotifier = (*Broker)(nil)
