// Package bus implements the swarm's message bus: priority-laned, FIFO
// per (from, to) pair, with ack/retry and TTL expiry. Unlike pkg/events
// (best-effort, fire-and-forget), the bus guarantees delivery attempts up
// to retryAttempts and surfaces exhaustion as a first-class error event.
package bus
