// Package events carries change notifications between the parts of the
// server.  Every committed mutation publishes an Event; subscribers push
// it to websocket clients, drop cached responses or forward it to other
// instances over the broker.
package events

import (
	"sort"
	"sync"
	"time"
)

// Action is the kind of row change an event reports.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Wildcard subscribes to every topic.
const Wildcard = "*"

// Event describes one committed change.  Topic is the entity kind
// ("orders", "meals", ...); Origin identifies the server instance that
// made the change so broker consumers can skip their own events.
type Event struct {
	Topic    string    `json:"topic"`
	Action   Action    `json:"action"`
	TenantID uint64    `json:"tenant_id"`
	ID       uint64    `json:"id"`
	Origin   string    `json:"origin"`
	At       time.Time `json:"at"`
}

// Handler receives published events.  Handlers run on the publisher's
// goroutine and must not block.
type Handler func(Event)

// Bus is an in-process observer registry.  The zero value is not usable;
// call NewBus.
type Bus struct {
	origin string

	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]Handler
}

// NewBus returns a bus stamping locally published events with origin.
func NewBus(origin string) *Bus {
	return &Bus{origin: origin, subs: make(map[string]map[uint64]Handler)}
}

// Origin is the id stamped on locally published events.
func (b *Bus) Origin() string { return b.origin }

// Subscribe registers h for topic (or Wildcard) and returns a function
// that removes the subscription.  Calling it more than once is safe.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers e synchronously to the subscribers of e.Topic and to
// wildcard subscribers, in subscription order.  Empty Origin and zero At
// are filled in.
func (b *Bus) Publish(e Event) {
	if e.Origin == "" {
		e.Origin = b.origin
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	for _, h := range b.handlers(e.Topic) {
		h(e)
	}
}

// handlers snapshots the handlers for topic so they run without the lock
// held; a handler may subscribe or unsubscribe.
func (b *Bus) handlers(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	type entry struct {
		id uint64
		h  Handler
	}
	var entries []entry
	for id, h := range b.subs[topic] {
		entries = append(entries, entry{id, h})
	}
	if topic != Wildcard {
		for id, h := range b.subs[Wildcard] {
			entries = append(entries, entry{id, h})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]Handler, len(entries))
	for i, e := range entries {
		out[i] = e.h
	}
	return out
}
