package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/pool"
	"github.com/cuemby/swarmcore/pkg/types"
)

// domainState is one domain's dedicated agent pool plus the FIFO queue of
// task ids waiting for that pool to free an agent.
type domainState struct {
	pool *pool.Pool

	mu    sync.Mutex
	queue []string
}

// hierarchyTier describes one layer of the fixed 15-agent hierarchy.
type hierarchyTier struct {
	domain types.Domain
	size   int
	typ    types.AgentType
}

// hierarchyLayout is the fixed queen{1}/security{3}/core{5}/integration{3}/
// support{3} topology every swarm spawns via SpawnFullHierarchy.
var hierarchyLayout = []hierarchyTier{
	{types.DomainQueen, 1, types.AgentQueen},
	{types.DomainSecurity, 3, types.AgentReviewer},
	{types.DomainCore, 5, types.AgentWorker},
	{types.DomainIntegration, 3, types.AgentSpecialist},
	{types.DomainSupport, 3, types.AgentMonitor},
}

// newDomains constructs one pool per hierarchy tier, sized to that tier's
// fixed slot count. Pools never grow past their tier size: they hold no
// factory, since membership comes from SpawnFullHierarchy, not acquire-time
// creation.
func newDomains(cfg config.Pool, broker *events.Broker) map[types.Domain]*domainState {
	domains := make(map[types.Domain]*domainState, len(hierarchyLayout))
	for _, tier := range hierarchyLayout {
		dcfg := cfg
		dcfg.MinSize = tier.size
		dcfg.MaxSize = tier.size
		domains[tier.domain] = &domainState{
			pool: pool.New(dcfg, nil, broker),
		}
	}
	return domains
}

func defaultDomainCapabilities(domain types.Domain) types.Capabilities {
	switch domain {
	case types.DomainQueen:
		return types.Capabilities{Coordination: true, Reliability: 1, Speed: 0.8, Quality: 1}
	case types.DomainSecurity:
		return types.Capabilities{Review: true, Analysis: true, Reliability: 0.9, Speed: 0.7, Quality: 1}
	case types.DomainCore:
		return types.Capabilities{Code: true, Test: true, Reliability: 0.85, Speed: 1, Quality: 0.85}
	case types.DomainIntegration:
		return types.Capabilities{Code: true, Coordination: true, Reliability: 0.85, Speed: 0.9, Quality: 0.85}
	default: // DomainSupport
		return types.Capabilities{Documentation: true, Research: true, Reliability: 0.8, Speed: 0.8, Quality: 0.8}
	}
}

// SpawnFullHierarchy registers the fixed 15-agent hierarchy and assigns each
// agent to its domain's pool. Fails only if the hierarchy is already
// populated.
func (c *Coordinator) SpawnFullHierarchy() error {
	c.mu.Lock()
	if c.hierarchySpawn {
		c.mu.Unlock()
		return ErrHierarchyPopulated
	}
	c.hierarchySpawn = true
	c.mu.Unlock()

	for _, tier := range hierarchyLayout {
		for i := 0; i < tier.size; i++ {
			id, err := c.RegisterAgent(types.AgentDefinition{
				Name:         fmt.Sprintf("%s-%d", tier.domain, i+1),
				Type:         tier.typ,
				Capabilities: defaultDomainCapabilities(tier.domain),
			})
			if err != nil {
				return err
			}
			c.assignAgentToDomain(id.ID, tier.domain)
		}
	}
	c.publish(types.EventHierarchySpawned, hierarchyLayout)
	return nil
}

func (c *Coordinator) assignAgentToDomain(agentID string, domain types.Domain) {
	c.mu.Lock()
	agent, ok := c.agents[agentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.agentDomain[agentID] = domain
	c.mu.Unlock()

	c.domains[domain].pool.Add(agent)
	c.publish(types.EventAgentDomainAssigned, map[string]any{"agentId": agentID, "domain": domain})
}

// AssignTaskToDomain submits def routed directly to domain's pool, bypassing
// the general scheduler.
func (c *Coordinator) AssignTaskToDomain(def types.TaskDefinition, domain types.Domain) (types.TaskID, error) {
	def.Domain = domain
	return c.SubmitTask(def)
}

// assignTaskToDomain is the domain-routed counterpart of tryAssign: acquire
// an agent from the domain's pool, or queue taskID if the pool is exhausted.
func (c *Coordinator) assignTaskToDomain(taskID string, domain types.Domain) {
	start := time.Now()

	ds, ok := c.domains[domain]
	if !ok {
		c.tryAssign(taskID)
		return
	}

	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok || (task.Status != types.TaskCreated && task.Status != types.TaskQueued) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	agent, got := ds.pool.Acquire()
	if !got {
		ds.mu.Lock()
		ds.queue = append(ds.queue, taskID)
		ds.mu.Unlock()

		c.mu.Lock()
		task.Status = types.TaskQueued
		c.mu.Unlock()
		c.publish(types.EventTaskQueued, task)
		return
	}

	c.mu.Lock()
	c.assignLocked(task, agent)
	c.mu.Unlock()

	c.sendAssignment(task, agent)
	metrics.TaskAssignDuration.Observe(time.Since(start).Seconds())
	c.recordLatency(float64(time.Since(start).Milliseconds()))
}

// releaseToDomain returns agentID to domain's pool and, if tasks are
// waiting, immediately hands the freed agent to the next queued one.
func (c *Coordinator) releaseToDomain(agentID string, domain types.Domain) {
	ds, ok := c.domains[domain]
	if !ok {
		return
	}
	ds.pool.Release(agentID)

	ds.mu.Lock()
	var next string
	if len(ds.queue) > 0 {
		next = ds.queue[0]
		ds.queue = ds.queue[1:]
	}
	ds.mu.Unlock()

	if next != "" {
		c.assignTaskToDomain(next, domain)
	}
}

// DomainTask pairs a task definition with the domain ExecuteParallel should
// route it to.
type DomainTask struct {
	Task   types.TaskDefinition
	Domain types.Domain
}

// ExecuteParallel submits the pairs one after another, then waits for all of
// them to settle concurrently, returning results in the same order pairs
// were given.
func (c *Coordinator) ExecuteParallel(pairs []DomainTask) []types.ParallelExecutionResult {
	results := make([]types.ParallelExecutionResult, len(pairs))
	ids := make([]types.TaskID, len(pairs))

	for i, p := range pairs {
		id, err := c.AssignTaskToDomain(p.Task, p.Domain)
		if err != nil {
			results[i] = types.ParallelExecutionResult{Success: false, Error: err.Error()}
			continue
		}
		ids[i] = id
	}

	var wg sync.WaitGroup
	for i := range pairs {
		if results[i].Error != "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			timeout := time.Duration(pairs[i].Task.TimeoutMs) * time.Millisecond
			if timeout <= 0 {
				timeout = time.Duration(c.cfg.TaskTimeoutMs) * time.Millisecond
			}
			task, err := c.WaitForTask(ids[i].ID, timeout)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				results[i] = types.ParallelExecutionResult{TaskID: ids[i], Success: false, Error: err.Error(), DurationMs: elapsed}
				return
			}
			results[i] = types.ParallelExecutionResult{
				TaskID:     task.ID,
				Success:    task.Status == types.TaskCompleted,
				Output:     task.Output,
				DurationMs: elapsed,
			}
			if task.Status == types.TaskFailed {
				results[i].Error = "task failed"
			} else if !task.Status.Terminal() {
				results[i].Error = "timed out waiting for task to settle"
			}
		}(i)
	}
	wg.Wait()

	c.publish(types.EventParallelExecutionCompleted, results)
	return results
}
