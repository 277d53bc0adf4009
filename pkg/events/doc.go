/*
Package events provides an in-memory event broker for swarmcore's pub/sub messaging.

The events package implements a lightweight event bus for broadcasting swarm
events to interested subscribers. It supports catch-all and type-filtered
subscriptions with asynchronous event delivery, enabling loose coupling
between the coordinator, topology manager, consensus engine, agent pool, and
federation hub.

# Architecture

swarmcore's event system provides non-blocking pub/sub messaging with
buffered channels:

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Catch-all or filtered subscriptions      │          │
	│  │  - Non-blocking publish                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 256)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types (types.EventType)     │          │
	│  │                                              │          │
	│  │  swarm.*        agent.*        task.*        │          │
	│  │  topology.*     consensus.*    message.*     │          │
	│  │  federation.*   parallel.execution.completed │          │
	│  │  hierarchy.spawned                           │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  Tests and callers: observe state changes   │          │
	│  │  Reconciler-style loops: react to changes   │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

types.Event:
  - ID: Unique event identifier
  - Type: Event type (agent.joined, task.failed, etc.)
  - Source: Component that published the event
  - Timestamp: When event occurred
  - Data: Event-specific payload
  - CorrelationID: Links related events (e.g. a task's full lifecycle)

Subscriber:
  - Channel that receives *types.Event
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe() or broker.SubscribeFilter(types...)
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to main event channel (non-blocking)
 3. Broadcast loop receives event
 4. Event sent to matching subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe() or broker.SubscribeFilter(...)
 2. New buffered channel created, optionally with a type filter
 3. Channel registered in subscriber map
 4. Subscriber channel returned
 5. Subscriber receives events via channel
 6. Subscriber processes events in its own goroutine

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map
 3. Channel closed
 4. Subscriber stops receiving events

# Usage

Creating and Starting Broker:

	import "github.com/cuemby/swarmcore/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to All Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s from %s\n", event.Type, event.Source)
		}
	}()

Subscribing to Specific Event Types:

	sub := broker.SubscribeFilter(types.EventTaskCompleted, types.EventTaskFailed)
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case types.EventTaskCompleted:
				handleTaskCompleted(event)
			case types.EventTaskFailed:
				handleTaskFailed(event)
			}
		}
	}()

Publishing Events:

	broker.Publish(&types.Event{
		ID:     "evt-123",
		Type:   types.EventAgentJoined,
		Source: "pool",
		Data:   agent,
	})

# Design Patterns

Non-Blocking Publish:
  - Publish sends to buffered channel
  - Returns immediately (no waiting)
  - Events may be dropped if buffer full
  - Trade-off: throughput over guaranteed delivery

Fan-Out Pattern:
  - Single event broadcast to all matching subscribers
  - Each subscriber gets its own channel
  - Independent processing rates
  - Full buffers skip to prevent blocking

Fire-and-Forget:
  - No acknowledgment from subscribers
  - No retry on delivery failure
  - Suitable for monitoring and reactive loops, not the message bus's
    guaranteed-delivery path (see pkg/bus for that)

Graceful Shutdown:
  - broker.Stop() signals the broadcast loop
  - Subscriber channels remain open until explicitly unsubscribed

# Limitations

  - In-memory only, no persistence or replay
  - Best-effort delivery, not guaranteed (use pkg/bus for ack/retry)
  - No ordering guarantees across subscribers

# See Also

  - pkg/bus for guaranteed, acknowledged inter-agent messaging
  - pkg/coordinator for the aggregate root that publishes most events
  - pkg/metrics, whose Collector polls coordinator state rather than
    subscribing to events
*/
package events
