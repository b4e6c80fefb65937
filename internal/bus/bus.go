package bus

import (
	"encoding/json"
	"sync"
)

// Event is a single progress notification published for a job. Payload
// holds the variant body for the event type and serializes under a
// "payload" key next to the type tag.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Encode renders the event as its wire JSON form.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Subscription is a live feed of events for one topic. Events land on C;
// callers must call Cancel when done to release the feed.
type Subscription struct {
	C      chan Event
	topic  string
	broker *Broker
	once   sync.Once
}

// Cancel detaches the subscription from its broker and closes C. Safe to
// call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s.topic, s)
		close(s.C)
	})
}

// Broker fans events out to per-topic subscribers. Publishing with no
// subscribers is a no-op and events are never replayed; a listener only
// sees what happens after it subscribes.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a listener for a topic. Each subscriber gets an
// independently buffered channel; a slow consumer drops events rather
// than stalling the publisher.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, 64),
		topic:  topic,
		broker: b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Publish delivers an event to every current subscriber of the topic.
func (b *Broker) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		select {
		case sub.C <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscriptions for a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}
