package pool

import (
	"sync"
	"time"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/rs/zerolog"
)

// Factory creates a new, idle agent of the pool's type when acquire needs to
// grow the pool or replace an unhealthy member.
type Factory func() *types.Agent

// State is the snapshot returned by GetState.
type State struct {
	Size      int
	Available int
	Busy      int
	MinSize   int
	MaxSize   int
}

// Pool manages a homogeneous set of agents of one type: acquire/release for
// task assignment, auto-scale by utilisation, and health-replace.
type Pool struct {
	cfg     config.Pool
	factory Factory
	broker  *events.Broker
	log     zerolog.Logger

	mu        sync.Mutex
	available map[string]*types.Agent
	busy      map[string]*types.Agent
	lru       []string // available ids, oldest-released first

	lastScale time.Time
}

// New constructs an empty Pool. Call Add (or rely on acquire's
// grow-on-demand) to populate it.
func New(cfg config.Pool, factory Factory, broker *events.Broker) *Pool {
	return &Pool{
		cfg:       cfg,
		factory:   factory,
		broker:    broker,
		log:       log.WithComponent("pool"),
		available: make(map[string]*types.Agent),
		busy:      make(map[string]*types.Agent),
	}
}

// Add admits an existing agent into the available set.
func (p *Pool) Add(agent *types.Agent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(agent)
}

func (p *Pool) addLocked(agent *types.Agent) {
	agent.Status = types.AgentIdle
	p.available[agent.ID.ID] = agent
	p.lru = append(p.lru, agent.ID.ID)
}

// Remove evicts agentID from whichever set holds it. Unknown ids are a
// no-op.
func (p *Pool) Remove(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.available, agentID)
	delete(p.busy, agentID)
	p.removeFromLRU(agentID)
}

func (p *Pool) removeFromLRU(agentID string) {
	for i, id := range p.lru {
		if id == agentID {
			p.lru = append(p.lru[:i], p.lru[i+1:]...)
			return
		}
	}
}

// Acquire returns an available agent, creating one if the pool has room, or
// reports none if the pool is already at MaxSize. Auto-scale is
// re-evaluated after every acquire.
func (p *Pool) Acquire() (*types.Agent, bool) {
	p.mu.Lock()

	var agent *types.Agent
	if len(p.lru) > 0 {
		id := p.lru[0]
		p.lru = p.lru[1:]
		agent = p.available[id]
		delete(p.available, id)
	} else if p.sizeLocked() < p.cfg.MaxSize && p.factory != nil {
		agent = p.factory()
	}

	if agent == nil {
		p.mu.Unlock()
		p.publish(types.EventPoolExhausted, nil)
		return nil, false
	}

	agent.Status = types.AgentBusy
	p.busy[agent.ID.ID] = agent
	p.mu.Unlock()

	p.autoScale()
	return agent, true
}

// Release returns agentID to the available set. Double-release and release
// of an unknown id are no-ops. Auto-scale is re-evaluated after every
// release.
func (p *Pool) Release(agentID string) {
	p.mu.Lock()
	agent, ok := p.busy[agentID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.busy, agentID)
	p.addLocked(agent)
	p.mu.Unlock()

	p.autoScale()
}

// Scale clamps size by delta agents (positive grows, negative shrinks),
// bounded to [MinSize, MaxSize].
func (p *Pool) Scale(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if delta > 0 {
		for i := 0; i < delta; i++ {
			if p.sizeLocked() >= p.cfg.MaxSize || p.factory == nil {
				break
			}
			p.addLocked(p.factory())
		}
	} else if delta < 0 {
		for i := 0; i < -delta; i++ {
			if p.sizeLocked() <= p.cfg.MinSize {
				break
			}
			if !p.evictOneLRULocked() {
				break
			}
		}
	}
}

func (p *Pool) evictOneLRULocked() bool {
	if len(p.lru) == 0 {
		return false
	}
	id := p.lru[0]
	p.lru = p.lru[1:]
	delete(p.available, id)
	return true
}

func (p *Pool) sizeLocked() int {
	return len(p.available) + len(p.busy)
}

// GetState returns a snapshot of the pool's size and occupancy.
func (p *Pool) GetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Size:      p.sizeLocked(),
		Available: len(p.available),
		Busy:      len(p.busy),
		MinSize:   p.cfg.MinSize,
		MaxSize:   p.cfg.MaxSize,
	}
}

// Utilization returns busy/size, or 0 when the pool is empty.
func (p *Pool) Utilization() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	size := p.sizeLocked()
	if size == 0 {
		return 0
	}
	return float64(len(p.busy)) / float64(size)
}

// autoScale applies the scale-up/scale-down thresholds, separated by the
// configured cooldown.
func (p *Pool) autoScale() {
	p.mu.Lock()
	if time.Since(p.lastScale) < time.Duration(p.cfg.CooldownMs)*time.Millisecond {
		p.mu.Unlock()
		return
	}
	size := p.sizeLocked()
	if size == 0 {
		p.mu.Unlock()
		return
	}
	util := float64(len(p.busy)) / float64(size)

	scaledUp, scaledDown := false, false
	if util >= p.cfg.ScaleUpThreshold && size < p.cfg.MaxSize && p.factory != nil {
		p.addLocked(p.factory())
		scaledUp = true
	} else if util <= p.cfg.ScaleDownThreshold && size > p.cfg.MinSize {
		scaledDown = p.evictOneLRULocked()
	}
	if scaledUp || scaledDown {
		p.lastScale = time.Now()
	}
	p.mu.Unlock()

	if scaledUp || scaledDown {
		p.publish(types.EventPoolScaled, State{Size: p.GetState().Size})
	}
}

// HealthCheck degrades and, past zero health, replaces agents that have
// missed 3x the heartbeat interval. Returns the ids removed so the caller
// (coordinator) can re-queue any task they held.
func (p *Pool) HealthCheck(heartbeatInterval time.Duration) []string {
	threshold := 3 * heartbeatInterval
	now := time.Now()

	p.mu.Lock()
	var stale []*types.Agent
	for _, a := range p.available {
		if now.Sub(a.LastHeartbeat) > threshold {
			stale = append(stale, a)
		}
	}
	for _, a := range p.busy {
		if now.Sub(a.LastHeartbeat) > threshold {
			stale = append(stale, a)
		}
	}
	p.mu.Unlock()

	var removed []string
	for _, a := range stale {
		a.Health -= 0.2
		a.Status = types.AgentError
		if a.Health > 0 {
			continue
		}
		wasBusy := false
		p.mu.Lock()
		if _, ok := p.busy[a.ID.ID]; ok {
			wasBusy = true
			delete(p.busy, a.ID.ID)
		} else {
			delete(p.available, a.ID.ID)
			p.removeFromLRU(a.ID.ID)
		}
		needsReplacement := p.sizeLocked() < p.cfg.MinSize || wasBusy
		p.mu.Unlock()

		removed = append(removed, a.ID.ID)
		p.publish(types.EventAgentReplaced, a.ID.ID)

		if needsReplacement && p.factory != nil {
			p.Add(p.factory())
		}
	}
	return removed
}

func (p *Pool) publish(t types.EventType, data any) {
	if p.broker == nil {
		return
	}
	p.broker.Publish(&types.Event{Type: t, Source: "pool", Data: data})
}
