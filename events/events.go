// Package events fans registry changes out to interested listeners, such as
// the shell's websocket connections.
package events

import (
	"sync"
	"time"
)

const (
	TopicInstalled   = "module installed"
	TopicUpdated     = "module updated"
	TopicRemoved     = "module removed"
	TopicDiscovered  = "module discovered"
	TopicDeactivated = "module deactivated"
)

// Event is a single registry change.
type Event struct {
	Topic string    `json:"event"`
	Slug  string    `json:"slug"`
	Data  any       `json:"data,omitempty"`
	At    time.Time `json:"at"`
}

// Bus is a process wide publish/subscribe hub. Slow subscribers miss events
// rather than blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to every subscriber without blocking.
func (b *Bus) Publish(topic, slug string, data any) {
	e := Event{Topic: topic, Slug: slug, Data: data, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel receiving future events and a function that
// removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
