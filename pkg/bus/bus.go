package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/state"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned by Send when the bus's total queue depth has
// reached maxQueueSize.
var ErrQueueFull = fmt.Errorf("bus: queue full")

// Handler processes one delivered message. Exactly one handler may be
// registered per agent.
type Handler func(*types.Message)

func priorityIndex(p types.MessagePriority) int {
	switch p {
	case types.MsgUrgent:
		return 0
	case types.MsgHigh:
		return 1
	case types.MsgNormal:
		return 2
	default:
		return 3
	}
}

const numLanes = 4

type pendingAck struct {
	msg      types.Message
	lane     int
	attempts int
	deadline time.Time
}

// Stats is the snapshot returned by Bus.Stats.
type Stats struct {
	ThroughputPerSec float64
	AvgLatencyMs     float64
	QueueDepth       int
	AckRate          float64
	ErrorRate        float64
}

// Bus is the in-process, priority-laned message bus described for
// inter-agent communication. It never blocks its caller beyond the enqueue.
// Per (from, to) pair, messages of equal priority deliver in FIFO order;
// higher-priority lanes preempt lower ones.
type Bus struct {
	cfg    config.MessageBus
	broker *events.Broker
	store  state.Store
	log    zerolog.Logger

	mu       sync.Mutex
	started  bool
	lanes    [numLanes][]types.Message
	queued   int
	acks     map[string]*pendingAck
	handlers map[string]Handler

	limiters   map[string]*rate.Limiter // per-sender admission smoothing
	limitersMu sync.Mutex

	throughput ewma.MovingAverage // messages delivered per second
	latency    ewma.MovingAverage // delivery latency in ms
	ackSuccess ewma.MovingAverage // 1.0 acked, 0.0 not, smoothed
	errorRate  ewma.MovingAverage // 1.0 error, 0.0 clean, smoothed

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBus constructs a Bus from its configuration. broker receives
// message.sent, message.expired and message.queue_full events.
func NewBus(cfg config.MessageBus, broker *events.Broker) *Bus {
	return NewBusWithStore(cfg, broker, nil)
}

// NewBusWithStore constructs a Bus whose queued messages are flushed to
// store when persistence is enabled, and replayed on Start as still
// in-flight with their original TTL.
func NewBusWithStore(cfg config.MessageBus, broker *events.Broker, store state.Store) *Bus {
	return &Bus{
		cfg:        cfg,
		broker:     broker,
		store:      store,
		log:        log.WithComponent("bus"),
		acks:       make(map[string]*pendingAck),
		handlers:   make(map[string]Handler),
		limiters:   make(map[string]*rate.Limiter),
		throughput: ewma.NewMovingAverage(19), // age≈19 ⇒ α≈0.1
		latency:    ewma.NewMovingAverage(19),
		ackSuccess: ewma.NewMovingAverage(19),
		errorRate:  ewma.NewMovingAverage(19),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the strict-priority dispatch loop and the ack-timeout sweep,
// first replaying any persisted in-flight messages. Starting a started bus
// is a no-op.
func (b *Bus) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	b.restore()
	interval := time.Duration(b.cfg.ProcessingIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	go b.run(interval)
}

func (b *Bus) persistenceEnabled() bool {
	return b.store != nil && b.cfg.EnablePersistence
}

// restore re-enqueues the messages a previous run flushed, in their
// original order. Their original timestamps come along, so anything past
// its TTL drops on the next dispatch tick instead of being delivered late.
func (b *Bus) restore() {
	if !b.persistenceEnabled() {
		return
	}
	var msgs []types.Message
	if err := b.store.Load(&msgs); err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			b.log.Warn().Err(err).Msg("failed to restore persisted messages")
		}
		return
	}
	b.mu.Lock()
	for _, msg := range msgs {
		lane := priorityIndex(msg.Priority)
		b.lanes[lane] = append(b.lanes[lane], msg)
		b.queued++
	}
	b.mu.Unlock()
}

// flush snapshots the queued messages to the store, in lane-then-FIFO
// order.
func (b *Bus) flush() {
	if !b.persistenceEnabled() {
		return
	}
	b.mu.Lock()
	msgs := make([]types.Message, 0, b.queued)
	for lane := 0; lane < numLanes; lane++ {
		msgs = append(msgs, b.lanes[lane]...)
	}
	b.mu.Unlock()

	if err := b.store.Save(msgs); err != nil {
		b.log.Warn().Err(err).Msg("failed to flush messages to store")
	}
}

// Stop halts the dispatch loop. Pending acks are discarded. Stopping a bus
// that never started is a no-op.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
}

func (b *Bus) run(interval time.Duration) {
	defer close(b.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.dispatchTick()
			b.sweepExpiredAcks()
		case <-b.stopCh:
			return
		}
	}
}

// Subscribe registers the sole handler for agentID, replacing any existing
// one.
func (b *Bus) Subscribe(agentID string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[agentID] = h
}

// Unsubscribe removes agentID's handler.
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, agentID)
	delete(b.limiters, agentID)
}

// Send enqueues a directed message and returns its assigned id synchronously.
// Delivery happens asynchronously on the dispatch loop.
func (b *Bus) Send(msg types.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if !b.admit(msg.From) {
		// Sender-side smoothing ahead of the hard cap: treat as transient
		// backpressure rather than a hard failure.
		time.Sleep(time.Millisecond)
	}

	b.mu.Lock()
	if b.queued >= b.cfg.MaxQueueSize {
		b.mu.Unlock()
		metrics.BusQueueFullTotal.Inc()
		if b.broker != nil {
			b.broker.Publish(&types.Event{Type: types.EventMessageQueueFull, Source: "bus", Data: msg})
		}
		return "", ErrQueueFull
	}
	lane := priorityIndex(msg.Priority)
	b.lanes[lane] = append(b.lanes[lane], msg)
	b.queued++
	laneDepth := len(b.lanes[lane])
	b.mu.Unlock()

	metrics.BusQueueDepth.WithLabelValues(string(msg.Priority)).Set(float64(laneDepth))
	b.flush()
	return msg.ID, nil
}

// Broadcast fans out msg to every subscribed recipient other than From.
// Recipients with no handler are silently skipped, not an error.
func (b *Bus) Broadcast(msg types.Message) {
	b.mu.Lock()
	recipients := make([]string, 0, len(b.handlers))
	for agentID := range b.handlers {
		if agentID != msg.From {
			recipients = append(recipients, agentID)
		}
	}
	b.mu.Unlock()

	for _, to := range recipients {
		m := msg
		m.ID = uuid.NewString()
		m.To = to
		m.RequiresAck = false
		_, _ = b.Send(m)
	}
}

// Acknowledge marks msg as processed, cancelling any pending retries.
func (b *Bus) Acknowledge(ack types.Ack) {
	b.mu.Lock()
	pending, ok := b.acks[ack.MessageID]
	if ok {
		delete(b.acks, ack.MessageID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	b.ackSuccess.Add(1)
	b.latency.Add(float64(time.Since(pending.msg.Timestamp).Milliseconds()))
	if b.broker != nil {
		b.broker.Publish(&types.Event{Type: types.EventMessageReceived, Source: "bus", Data: ack})
	}
}

// Stats returns throughput, latency, queue depth, ack rate and error rate.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	depth := b.queued
	b.mu.Unlock()

	return Stats{
		ThroughputPerSec: b.throughput.Value(),
		AvgLatencyMs:     b.latency.Value(),
		QueueDepth:       depth,
		AckRate:          b.ackSuccess.Value(),
		ErrorRate:        b.errorRate.Value(),
	}
}

// admit applies a per-sender token bucket ahead of the hard queue cap,
// smoothing bursts from a single chatty agent before they ever reach
// QueueFull. A limiter is created for each sender on first use; messages
// with an empty From are always admitted.
func (b *Bus) admit(from string) bool {
	if from == "" {
		return true
	}
	b.limitersMu.Lock()
	limiter, ok := b.limiters[from]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1000), 200)
		b.limiters[from] = limiter
	}
	b.limitersMu.Unlock()
	return limiter.Allow()
}

func (b *Bus) dispatchTick() {
	delivered := 0
	for lane := 0; lane < numLanes; lane++ {
		b.mu.Lock()
		msgs := b.lanes[lane]
		b.lanes[lane] = nil
		b.queued -= len(msgs)
		b.mu.Unlock()

		for _, msg := range msgs {
			if b.expired(msg) {
				b.errorRate.Add(1)
				metrics.BusMessagesTotal.WithLabelValues("expired").Inc()
				if b.broker != nil {
					b.broker.Publish(&types.Event{Type: types.EventMessageExpired, Source: "bus", Data: msg})
				}
				continue
			}
			b.deliver(msg, lane, 1)
			delivered++
		}
	}
	if delivered > 0 {
		b.errorRate.Add(0)
		b.flush()
	}
	b.throughput.Add(float64(delivered) / b.tickSeconds())
}

func (b *Bus) tickSeconds() float64 {
	interval := time.Duration(b.cfg.ProcessingIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return interval.Seconds()
}

func (b *Bus) expired(msg types.Message) bool {
	if msg.TTLMs <= 0 {
		return false
	}
	return time.Since(msg.Timestamp) > time.Duration(msg.TTLMs)*time.Millisecond
}

func (b *Bus) deliver(msg types.Message, lane, attempt int) {
	b.mu.Lock()
	handler, ok := b.handlers[msg.To]
	b.mu.Unlock()

	if !ok {
		// No subscriber for a directed send is an error, unlike broadcast.
		b.errorRate.Add(1)
		metrics.BusMessagesTotal.WithLabelValues("dropped").Inc()
		b.log.Debug().Str("to", msg.To).Msg("no handler subscribed for message recipient")
		return
	}

	// Register the pending ack before the handler runs, so an ack sent from
	// inside the handler finds it and cancels the retry.
	if msg.RequiresAck {
		b.mu.Lock()
		b.acks[msg.ID] = &pendingAck{
			msg:      msg,
			lane:     lane,
			attempts: attempt,
			deadline: time.Now().Add(time.Duration(b.cfg.AckTimeoutMs) * time.Millisecond),
		}
		b.mu.Unlock()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				b.errorRate.Add(1)
				b.log.Warn().Interface("panic", r).Str("message_id", msg.ID).Msg("message handler panicked")
			}
		}()
		handler(&msg)
	}()

	metrics.BusMessagesTotal.WithLabelValues("delivered").Inc()
	if b.broker != nil {
		b.broker.Publish(&types.Event{Type: types.EventMessageSent, Source: "bus", Data: msg})
	}

	if !msg.RequiresAck {
		b.latency.Add(float64(time.Since(msg.Timestamp).Milliseconds()))
	}
}

func (b *Bus) sweepExpiredAcks() {
	now := time.Now()
	var redeliver []*pendingAck
	var drop []types.Message

	b.mu.Lock()
	for id, pending := range b.acks {
		if now.Before(pending.deadline) {
			continue
		}
		delete(b.acks, id)
		if pending.attempts < b.cfg.RetryAttempts {
			redeliver = append(redeliver, pending)
		} else {
			drop = append(drop, pending.msg)
		}
	}
	b.mu.Unlock()

	for _, pending := range redeliver {
		msg := pending.msg
		msg.DeliveryAttempt = pending.attempts
		b.deliver(msg, pending.lane, pending.attempts+1)
	}
	for _, msg := range drop {
		b.errorRate.Add(1)
		metrics.BusMessagesTotal.WithLabelValues("retry_exhausted").Inc()
		if b.broker != nil {
			b.broker.Publish(&types.Event{Type: types.EventMessageExpired, Source: "bus", Data: msg})
		}
	}
}
