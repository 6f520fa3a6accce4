package config

import (
	"log/slog"
	"sync"
)

// Event is delivered to subscribers of a topic
type Event struct {
	Topic string
	// Keys lists the config keys that changed; empty means "anything may have changed".
	Keys []string
	// Source is "local" for writes made through the Store and "external" for file edits.
	Source string
}

// Handler receives broker events
type Handler func(Event)

// Broker is a small synchronous publish/subscribe hub for invalidation events.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Broker) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}
}

// Publish calls every handler of ev.Topic in the publisher's goroutine.
// Handlers run outside the broker lock, so they may publish or unsubscribe.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, h := range b.subs[ev.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	slog.Debug("Publishing config event", "topic", ev.Topic, "keys", ev.Keys, "subscribers", len(handlers))

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribers returns the number of handlers registered for topic
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
