// Package events fans view updates and signal transitions out to stream subscribers.
package events

import (
	"sync"
	"time"
)

const defaultBuffer = 64

// Kind names the view an update carries.
type Kind string

const (
	KindPortfolio Kind = "portfolio"
	KindOrders    Kind = "orders"
	KindPositions Kind = "positions"
	KindSignals   Kind = "signals"
	KindCycle     Kind = "cycle"
)

// ViewUpdate is published whenever a view cell is replaced.
type ViewUpdate struct {
	Kind      Kind      `json:"kind"`
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"ts"`
	Data      any       `json:"data"`
}

// Broadcaster fans out values to all subscribers via buffered channels.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Publish sends v to all subscribers, dropping it for readers that are behind.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives values until Unsubscribe is called.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
