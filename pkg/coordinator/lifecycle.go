package coordinator

import (
	"github.com/cuemby/swarmcore/pkg/bus"
	"github.com/cuemby/swarmcore/pkg/types"
)

// State is the full coordinator snapshot returned by GetState: lifecycle
// status, every agent and task, the topology graph and the bus's live
// statistics, all copied so callers can inspect them without holding any
// coordinator lock.
type State struct {
	SwarmID  types.SwarmID
	Status   types.SwarmStatusState
	Agents   []*types.Agent
	Tasks    []*types.Task
	Topology types.TopologyState
	Bus      bus.Stats
}

// GetState returns a snapshot of the coordinator and its sub-components.
func (c *Coordinator) GetState() State {
	c.mu.RLock()
	status := c.status
	swarmID := c.swarmID
	c.mu.RUnlock()

	return State{
		SwarmID:  swarmID,
		Status:   status,
		Agents:   c.GetAllAgents(),
		Tasks:    c.GetAllTasks(),
		Topology: c.Topo.GetState(),
		Bus:      c.Bus.Stats(),
	}
}

// SpawnOptions parameterizes SpawnAgent. Domain is optional; when set the
// new agent is bound to that domain's pool and queue.
type SpawnOptions struct {
	Name         string
	Type         types.AgentType
	Capabilities types.Capabilities
	Domain       types.Domain
}

// SpawnAgent registers a new agent and, when a domain is given, binds it to
// that domain's pool. It is RegisterAgent plus domain placement.
func (c *Coordinator) SpawnAgent(opts SpawnOptions) (types.AgentID, error) {
	id, err := c.RegisterAgent(types.AgentDefinition{
		Name:         opts.Name,
		Type:         opts.Type,
		Capabilities: opts.Capabilities,
	})
	if err != nil {
		return types.AgentID{}, err
	}
	if opts.Domain != "" {
		c.assignAgentToDomain(id.ID, opts.Domain)
	}
	return id, nil
}

// TerminateOptions parameterizes TerminateAgent. Force cancels the agent's
// current task immediately; otherwise a busy agent finishes its task first
// and is removed on release.
type TerminateOptions struct {
	Force bool
}

// TerminateAgent removes agentID from the swarm. A busy agent is drained
// first unless opts.Force, in which case its current task is cancelled.
// Unknown ids are a no-op.
func (c *Coordinator) TerminateAgent(agentID string, opts TerminateOptions) {
	c.mu.Lock()
	a, ok := c.agents[agentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	busyNow := a.Status == types.AgentBusy
	if busyNow && !opts.Force {
		// Drain: the release path finalizes removal once the current task
		// settles.
		a.Status = types.AgentTerminating
		c.mu.Unlock()
		c.publish(types.EventAgentStatusChanged, a.ID)
		return
	}
	a.Status = types.AgentTerminating
	c.mu.Unlock()

	c.finalizeTermination(agentID)
}

// finalizeTermination performs the actual removal of a terminating agent:
// cancel its task if one is still attached, then unregister it everywhere.
func (c *Coordinator) finalizeTermination(agentID string) {
	c.mu.Lock()
	a, ok := c.agents[agentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	a.Status = types.AgentTerminated
	c.mu.Unlock()

	c.UnregisterAgent(agentID)
}
