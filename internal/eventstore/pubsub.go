package eventstore

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/choir-run/choir/pkg/models"
)

// subscriberBuffer bounds how far a slow subscriber can lag before it is
// treated as dead and dropped. Delivery is best-effort (spec §4.1): a full
// channel means the subscriber isn't draining, so we drop it rather than
// block the publisher.
const subscriberBuffer = 256

// Subscription is a live topic subscriber's mailbox.
type Subscription struct {
	ID    string
	Topic string
	Ch    <-chan *models.Event

	send chan *models.Event
}

// pubsub is the subscriber registry shared by every Store implementation.
// Only the owning Store mutates subs, matching the single-actor-owns-its-map
// discipline used throughout choir.
type pubsub struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	counter atomic.Uint64
}

func newPubsub() *pubsub {
	return &pubsub{subs: make(map[string]*Subscription)}
}

// Subscribe registers a live subscriber for topic (see Store.Subscribe).
func (p *pubsub) Subscribe(topic string) *Subscription {
	id := "sub-" + strconv.FormatUint(p.counter.Add(1), 10)
	ch := make(chan *models.Event, subscriberBuffer)
	sub := &Subscription{ID: id, Topic: topic, Ch: ch, send: ch}

	p.mu.Lock()
	p.subs[id] = sub
	p.mu.Unlock()

	return sub
}

// Unsubscribe removes sub and closes its mailbox (see Store.Unsubscribe).
func (p *pubsub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	if existing, ok := p.subs[sub.ID]; ok {
		delete(p.subs, sub.ID)
		close(existing.send)
	}
	p.mu.Unlock()
}

// deliver fans ev out to every subscriber whose topic pattern matches
// ev.EventType, in the order publish was called (per spec §4.1 ordering
// guarantee between publishers). A subscriber whose mailbox is full is
// treated as dead and silently dropped.
func (p *pubsub) deliver(ev *models.Event) {
	p.mu.Lock()
	dead := make([]string, 0)
	matched := make([]*Subscription, 0, len(p.subs))
	for id, sub := range p.subs {
		if TopicMatches(sub.Topic, ev.EventType) {
			matched = append(matched, sub)
		}
		_ = id
	}
	p.mu.Unlock()

	for _, sub := range matched {
		select {
		case sub.send <- ev.Clone():
		default:
			dead = append(dead, sub.ID)
		}
	}

	if len(dead) > 0 {
		p.mu.Lock()
		for _, id := range dead {
			if existing, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(existing.send)
			}
		}
		p.mu.Unlock()
	}
}
