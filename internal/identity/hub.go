package identity

import (
	"context"
	"sync"
)

// Hub is the in-process identity event bus. Publish delivers synchronously,
// in subscription order, on the publisher's goroutine.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn for every future event.
func (h *Hub) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs = append(h.subs, subscriber{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

// Publish hands ev to every current subscriber. Subscribers may publish or
// unsubscribe from inside their callback.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.Lock()
	subs := make([]subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
	return nil
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}

var (
	_ Source    = (*Hub)(nil)
	_ Publisher = (*Hub)(nil)
)
