package coordinator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cuemby/swarmcore/pkg/bus"
	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/consensus"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/state"
	"github.com/cuemby/swarmcore/pkg/topology"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// selfID is the bus endpoint the coordinator subscribes under to receive
// task_complete/task_fail reports.
const selfID = "__coordinator__"

const latencyWindow = 1000 // coordination-latency ring buffer size

// waiter signals a task's terminal state to WaitForTask/ExecuteParallel.
type waiter chan struct{}

// Coordinator is the aggregate root: agents, tasks, topology, metrics, and
// lifecycle. It is safe for concurrent use.
type Coordinator struct {
	cfg     config.Swarm
	swarmID types.SwarmID
	log     zerolog.Logger

	Broker *events.Broker
	Bus    *bus.Bus
	Topo   *topology.Manager
	Engine *consensus.Engine

	mu            sync.RWMutex
	status        types.SwarmStatusState
	startedAt     time.Time
	agents        map[string]*types.Agent
	tasks         map[string]*types.Task
	agentInstance uint64
	taskSequence  uint64
	waiters       map[string]waiter

	domains        map[types.Domain]*domainState
	hierarchySpawn bool
	agentDomain    map[string]types.Domain

	avgTaskDuration ewma.MovingAverage
	coordLatency    []types.Timestamped

	stopCh chan struct{}
	paused bool

	collector *metrics.Collector
}

// New constructs a Coordinator and wires its sub-components from cfg. It
// does not start background loops; call Initialize for that.
func New(cfg *config.Swarm) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Coordinator{
		cfg: *cfg,
		swarmID: types.SwarmID{
			ID:        uuid.NewString(),
			Namespace: cfg.Namespace,
			Version:   "1",
			CreatedAt: time.Now(),
		},
		log:             log.WithComponent("coordinator"),
		Broker:          events.NewBroker(),
		status:          types.SwarmInitializing,
		agents:          make(map[string]*types.Agent),
		tasks:           make(map[string]*types.Task),
		waiters:         make(map[string]waiter),
		agentDomain:     make(map[string]types.Domain),
		avgTaskDuration: ewma.NewMovingAverage(19), // age≈19 ⇒ α≈0.1
		stopCh:          make(chan struct{}),
	}
	c.Bus = newBus(cfg.MessageBus, c.Broker)
	c.Topo = topology.NewManager(cfg.Topology, c, c.Broker)
	c.Engine = consensus.NewEngine(cfg.Consensus, c.Broker)
	c.domains = newDomains(cfg.Pool, c.Broker)
	c.collector = metrics.NewCollector(c)
	return c
}

// newBus wires the configured persistence backend: a file store when a path
// is named, an in-memory store otherwise. With persistence disabled the
// store is never touched.
func newBus(cfg config.MessageBus, broker *events.Broker) *bus.Bus {
	var store state.Store = state.NewMemoryStore()
	if cfg.PersistencePath != "" {
		store = state.NewFileStore(cfg.PersistencePath)
	}
	return bus.NewBusWithStore(cfg, broker, store)
}

// Initialize starts the coordinator's background loops and sub-components.
// Valid only from initializing or stopped; any other state is an illegal
// transition surfaced to the caller.
func (c *Coordinator) Initialize() error {
	c.mu.Lock()
	if c.status != types.SwarmInitializing && c.status != types.SwarmStopped {
		c.mu.Unlock()
		return fmt.Errorf("%w: from status %q", ErrReinitialize, c.status)
	}
	if c.cfg.Consensus.Algorithm == "paxos" {
		c.mu.Unlock()
		return fmt.Errorf("%w: consensus algorithm \"paxos\" is reserved and not implemented", ErrConfigurationError)
	}
	if err := c.cfg.Validate(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	if c.status == types.SwarmStopped {
		// A stopped coordinator's sub-components have had their loops torn
		// down; rebuild them so a restart gets live channels.
		c.Broker = events.NewBroker()
		c.Bus = newBus(c.cfg.MessageBus, c.Broker)
		c.Topo = topology.NewManager(c.cfg.Topology, c, c.Broker)
		c.Engine = consensus.NewEngine(c.cfg.Consensus, c.Broker)
		c.domains = newDomains(c.cfg.Pool, c.Broker)
		c.collector = metrics.NewCollector(c)
	}
	c.status = types.SwarmRunning
	c.startedAt = time.Now()
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.Broker.Start()
	c.Bus.Start()
	c.Bus.Subscribe(selfID, c.handleInbound)
	c.collector.Start()

	metrics.RegisterComponent("coordinator", true, "running")
	metrics.RegisterComponent("bus", true, "dispatching")
	metrics.RegisterComponent("topology", true, "ready")

	go c.healthCheckLoop()

	c.publish(types.EventSwarmInitialized, c.swarmID)
	c.publish(types.EventSwarmStarted, c.swarmID)
	return nil
}

// Shutdown stops every sub-component and clears coordinator state.
// Idempotent from the stopped state.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	if c.status == types.SwarmStopped {
		c.mu.Unlock()
		return nil
	}
	close(c.stopCh)
	c.status = types.SwarmStopped
	c.agents = make(map[string]*types.Agent)
	c.tasks = make(map[string]*types.Task)
	c.agentDomain = make(map[string]types.Domain)
	c.hierarchySpawn = false
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = make(map[string]waiter)
	c.mu.Unlock()

	c.collector.Stop()
	c.Bus.Stop()
	c.Broker.Stop()
	metrics.UpdateComponent("coordinator", false, "stopped")
	metrics.UpdateComponent("bus", false, "stopped")
	metrics.UpdateComponent("topology", false, "stopped")
	c.publish(types.EventSwarmStopped, c.swarmID)
	return nil
}

// Pause suspends the coordinator's heartbeat/health-check loop. The metrics
// collector keeps sampling while paused. In-flight bus acks are still
// honoured since the bus dispatch loop is untouched. Illegal transitions are
// silent.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != types.SwarmRunning {
		return
	}
	c.status = types.SwarmPausedState
	c.paused = true
	c.publishLocked(types.EventSwarmPaused, c.swarmID)
}

// Resume restarts the coordinator's background loops. Illegal transitions
// are silent.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	if c.status != types.SwarmPausedState {
		c.mu.Unlock()
		return
	}
	c.status = types.SwarmRunning
	c.paused = false
	c.mu.Unlock()
	c.publish(types.EventSwarmResumed, c.swarmID)
}

// GetStatus returns the coordinator's current lifecycle state.
func (c *Coordinator) GetStatus() types.SwarmStatusState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// --- Agent registration ---

// RegisterAgent admits a new agent, allocating its AgentID and expanding
// topology and consensus membership. Returns ErrCapacityExceeded at
// MaxAgents.
func (c *Coordinator) RegisterAgent(def types.AgentDefinition) (types.AgentID, error) {
	c.mu.Lock()
	if len(c.agents) >= c.cfg.MaxAgents {
		c.mu.Unlock()
		return types.AgentID{}, ErrCapacityExceeded
	}
	c.agentInstance++
	id := types.AgentID{
		ID:       uuid.NewString(),
		SwarmID:  c.swarmID.ID,
		Type:     def.Type,
		Instance: c.agentInstance,
	}
	agent := &types.Agent{
		ID:            id,
		Name:          def.Name,
		Type:          def.Type,
		Status:        types.AgentIdle,
		Capabilities:  def.Capabilities,
		Health:        1.0,
		LastHeartbeat: time.Now(),
		Connections:   make(map[string]struct{}),
	}
	c.agents[id.ID] = agent
	c.mu.Unlock()

	c.Topo.AddNode(id.ID, types.RoleWorker)
	c.Engine.AddNode(id.ID)
	c.Bus.Subscribe(id.ID, c.agentStub(id.ID))

	c.publish(types.EventAgentJoined, agent)
	return id, nil
}

// agentStub is the handler installed on behalf of an externally-out-of-scope
// worker process: it acknowledges its task_assign and transitions the task
// to running, simulating the agent starting work. Real completion/failure
// arrives later via ReportTaskComplete/ReportTaskFail.
func (c *Coordinator) agentStub(agentID string) bus.Handler {
	return func(msg *types.Message) {
		if msg.RequiresAck {
			c.Bus.Acknowledge(types.Ack{MessageID: msg.ID, From: agentID, Received: true, ProcessedAt: time.Now()})
		}
		if msg.Type != types.MsgTypeTask {
			return
		}
		task, ok := msg.Payload.(types.Task)
		if !ok {
			return
		}
		c.startTask(task.ID.ID, agentID)
	}
}

// UnregisterAgent cancels the agent's current task (if any) and removes it
// from every sub-component. Unknown ids are a no-op.
func (c *Coordinator) UnregisterAgent(agentID string) {
	c.mu.Lock()
	agent, ok := c.agents[agentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	currentTask := agent.CurrentTask
	delete(c.agents, agentID)
	domain, hasDomain := c.agentDomain[agentID]
	delete(c.agentDomain, agentID)
	c.mu.Unlock()

	if currentTask != nil {
		c.CancelTask(currentTask.ID)
	}
	if hasDomain {
		c.domains[domain].pool.Remove(agentID)
	}
	c.Topo.RemoveNode(agentID)
	c.Engine.RemoveNode(agentID)
	c.Bus.Unsubscribe(agentID)
	c.publish(types.EventAgentLeft, agentID)
}

// GetAgent returns a copy of agentID's current state, or false if unknown.
func (c *Coordinator) GetAgent(agentID string) (*types.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[agentID]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// AgentFilter narrows ListAgents by type and/or status. A zero-valued field
// is unconstrained.
type AgentFilter struct {
	Type   types.AgentType
	Status types.AgentStatus
}

// ListAgents returns every agent matching filter.
func (c *Coordinator) ListAgents(filter AgentFilter) []*types.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Agent, 0, len(c.agents))
	for _, a := range c.agents {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Instance < out[j].ID.Instance })
	return out
}

// GetAllAgents returns every registered agent.
func (c *Coordinator) GetAllAgents() []*types.Agent {
	return c.ListAgents(AgentFilter{})
}

// AgentScore implements topology.ScoreProvider: it supplies the
// health/reliability/workload inputs the leader-election composite score
// needs, without letting the topology manager reach into agent state
// directly.
func (c *Coordinator) AgentScore(agentID string) (health, reliability, workload float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, found := c.agents[agentID]
	if !found {
		return 0, 0, 0, false
	}
	return a.Health, a.Capabilities.Reliability, a.Workload, true
}

// TopologyNodeCount implements metrics.StateProvider.
func (c *Coordinator) TopologyNodeCount() int {
	return len(c.Topo.GetState().Nodes)
}

// ListTasks implements metrics.StateProvider.
func (c *Coordinator) ListTasks() []*types.Task {
	return c.GetAllTasks()
}

// Heartbeat records activity from agentID: refreshes its LastHeartbeat and
// lets health recover toward 1.0.
func (c *Coordinator) Heartbeat(agentID string) {
	c.mu.Lock()
	a, ok := c.agents[agentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	a.LastHeartbeat = time.Now()
	a.Health += 0.05
	if a.Health > 1 {
		a.Health = 1
	}
	if a.Status == types.AgentError && a.Health > 0.2 {
		a.Status = types.AgentIdle
	}
	c.mu.Unlock()
	c.publish(types.EventAgentHeartbeat, agentID)
}

func (c *Coordinator) healthCheckLoop() {
	interval := time.Duration(c.cfg.HealthCheckIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !c.isPaused() {
				c.runHealthCheck()
				c.sweepTimedOutTasks()
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) runHealthCheck() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	threshold := 3 * time.Duration(c.cfg.HeartbeatIntervalMs) * time.Millisecond
	now := time.Now()

	type degraded struct {
		agent *types.Agent
	}
	var toDegrade []degraded

	c.mu.Lock()
	for _, a := range c.agents {
		if a.Status == types.AgentTerminated || a.Status == types.AgentOffline {
			continue
		}
		if now.Sub(a.LastHeartbeat) > threshold {
			toDegrade = append(toDegrade, degraded{agent: a})
		}
	}
	c.mu.Unlock()

	for _, d := range toDegrade {
		c.mu.Lock()
		a := d.agent
		a.Health -= 0.2
		if a.Health < 0 {
			a.Health = 0
		}
		a.Status = types.AgentError
		recover := c.cfg.AutoRecovery && a.Health <= 0.2
		var requeue *types.Task
		if recover && a.CurrentTask != nil {
			requeue = c.tasks[a.CurrentTask.ID]
			a.CurrentTask = nil
			a.Status = types.AgentIdle
		}
		c.mu.Unlock()

		c.publish(types.EventAgentHealthDegraded, a.ID)
		if requeue != nil {
			c.mu.Lock()
			requeue.Status = types.TaskQueued
			requeue.AssignedTo = nil
			domain := requeue.Domain
			c.mu.Unlock()
			c.publish(types.EventTaskQueued, requeue.ID)
			if domain != "" {
				c.assignTaskToDomain(requeue.ID.ID, domain)
			} else {
				c.tryAssign(requeue.ID.ID)
			}
		}
	}
}

// sweepTimedOutTasks expires assigned/running tasks whose deadline has
// passed. Expiry is a first-class terminal state, not an error: the task
// lands in timeout and the agent is freed for the next queued item.
func (c *Coordinator) sweepTimedOutTasks() {
	now := time.Now()

	c.mu.Lock()
	var expired []*types.Task
	for _, t := range c.tasks {
		if t.Status != types.TaskAssigned && t.Status != types.TaskRunning {
			continue
		}
		if t.TimeoutMs <= 0 {
			continue
		}
		start := t.StartedAt
		if start.IsZero() {
			start = t.CreatedAt
		}
		if now.Sub(start) > time.Duration(t.TimeoutMs)*time.Millisecond {
			expired = append(expired, t)
		}
	}
	for _, t := range expired {
		t.Status = types.TaskTimeout
		t.CompletedAt = now
	}
	c.mu.Unlock()

	for _, t := range expired {
		if t.AssignedTo != nil {
			c.releaseAgent(t.AssignedTo.ID)
		}
		c.publish(types.EventTaskTimeout, t)
		metrics.TasksFailedTotal.Inc()
		c.signalDone(t.ID.ID)
	}
}

func (c *Coordinator) isPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// recordLatency appends a coordination-latency sample to the 1000-entry
// ring buffer used by GetPerformanceReport.
func (c *Coordinator) recordLatency(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coordLatency = append(c.coordLatency, types.Timestamped{At: time.Now(), Value: ms})
	if len(c.coordLatency) > latencyWindow {
		c.coordLatency = c.coordLatency[len(c.coordLatency)-latencyWindow:]
	}
	metrics.CoordinationLatency.Observe(ms / 1000)
}

// BroadcastMessage fans payload out to every subscribed agent at priority.
// Best-effort: it never fails the caller.
func (c *Coordinator) BroadcastMessage(payload any, priority types.MessagePriority) {
	c.Bus.Broadcast(types.Message{
		From:     selfID,
		Type:     types.MsgTypeBroadcast,
		Payload:  payload,
		Priority: priority,
	})
}

func (c *Coordinator) publish(t types.EventType, data any) {
	c.Broker.Publish(&types.Event{Type: t, Source: "coordinator", Data: data})
}

func (c *Coordinator) publishLocked(t types.EventType, data any) {
	// Caller already holds c.mu; Broker.Publish only touches its own
	// internal channel, so this is safe to call while locked.
	c.Broker.Publish(&types.Event{Type: t, Source: "coordinator", Data: data})
}
