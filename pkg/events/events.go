package events

import (
	"sync"
	"time"

	"github.com/cuemby/swarmcore/pkg/types"
)

// Subscriber is a channel that receives events
type Subscriber chan *types.Event

// subscription pairs a subscriber channel with the event types it wants.
// A nil/empty filter means catch-all.
type subscription struct {
	ch     Subscriber
	filter map[types.EventType]bool
}

// Broker is the single all-events channel the coordinator multiplexes every
// component's events onto: the message bus, topology manager, consensus
// engine, agent pool, and federation hub all publish here.
type Broker struct {
	subscribers map[Subscriber]subscription
	mu          sync.RWMutex
	eventCh     chan *types.Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]subscription),
		eventCh:     make(chan *types.Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a catch-all subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	return b.subscribe(nil)
}

// SubscribeFilter creates a subscription that only receives events whose
// Type is one of eventTypes.
func (b *Broker) SubscribeFilter(eventTypes ...types.EventType) Subscriber {
	filter := make(map[types.EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = true
	}
	return b.subscribe(filter)
}

func (b *Broker) subscribe(filter map[types.EventType]bool) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = subscription{ch: sub, filter: filter}
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *types.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		// Event buffer full: drop rather than block the publisher.
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.filter) > 0 && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
