package coordinator

import (
	"sort"
	"time"

	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/google/uuid"
)

// taskReport is the payload ReportTaskComplete/ReportTaskFail send over the
// bus to the coordinator's own endpoint, standing in for the out-of-scope
// worker process's completion message.
type taskReport struct {
	TaskID string
	Failed bool
	Output any
	Error  string
}

// SubmitTask allocates a TaskID and schedules or queues def. Returns
// ErrCapacityExceeded at MaxTasks.
func (c *Coordinator) SubmitTask(def types.TaskDefinition) (types.TaskID, error) {
	c.mu.Lock()
	if len(c.tasks) >= c.cfg.MaxTasks {
		c.mu.Unlock()
		return types.TaskID{}, ErrCapacityExceeded
	}
	c.taskSequence++
	priority := def.Priority
	if priority == "" {
		priority = types.PriorityNormal
	}
	timeout := def.TimeoutMs
	if timeout <= 0 {
		timeout = c.cfg.TaskTimeoutMs
	}
	id := types.TaskID{
		ID:       uuid.NewString(),
		SwarmID:  c.swarmID.ID,
		Sequence: c.taskSequence,
		Priority: priority,
	}
	task := &types.Task{
		ID:           id,
		Type:         def.Type,
		Name:         def.Name,
		Description:  def.Description,
		Priority:     priority,
		Status:       types.TaskCreated,
		Domain:       def.Domain,
		Dependencies: def.Dependencies,
		Input:        def.Input,
		CreatedAt:    time.Now(),
		TimeoutMs:    timeout,
		MaxRetries:   def.MaxRetries,
		Metadata:     def.Metadata,
	}
	c.tasks[id.ID] = task
	c.waiters[id.ID] = make(waiter)
	c.mu.Unlock()

	c.publish(types.EventTaskCreated, task)
	metrics.TasksTotal.WithLabelValues(string(types.TaskCreated)).Inc()

	if def.Domain != "" {
		c.assignTaskToDomain(id.ID, def.Domain)
	} else {
		c.tryAssign(id.ID)
	}
	return id, nil
}

// GetTask returns a copy of taskID's current state, or false if unknown.
func (c *Coordinator) GetTask(taskID string) (*types.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// GetAllTasks returns every submitted task.
func (c *Coordinator) GetAllTasks() []*types.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Sequence < out[j].ID.Sequence })
	return out
}

// typeMatch reports whether agent's capabilities align with task type.
func typeMatch(taskType types.TaskType, caps types.Capabilities) float64 {
	matches := false
	switch taskType {
	case types.TaskCoding:
		matches = caps.Code
	case types.TaskTesting:
		matches = caps.Test
	case types.TaskReview:
		matches = caps.Review
	case types.TaskDocumentation:
		matches = caps.Documentation
	case types.TaskResearch:
		matches = caps.Research
	case types.TaskAnalysis:
		matches = caps.Analysis
	case types.TaskCoordination, types.TaskConsensus:
		matches = caps.Coordination
	}
	if matches {
		return 1
	}
	return 0
}

func successRate(a *types.Agent) float64 {
	total := a.Metrics.TasksCompleted + a.Metrics.TasksFailed
	if total == 0 {
		return 1
	}
	return float64(a.Metrics.TasksCompleted) / float64(total)
}

// score ranks a candidate for a task: a type-match bonus and the agent's
// success rate push it up, current workload and slow history pull it down,
// and the whole thing is scaled by health.
func score(taskType types.TaskType, a *types.Agent) float64 {
	s := 100 +
		50*typeMatch(taskType, a.Capabilities) +
		10*successRate(a) -
		20*a.Workload -
		5*(a.Metrics.AvgExecutionMs/60000)
	return s * a.Health
}

// selectCandidate picks the highest-scoring idle agent from candidates,
// breaking ties by lowest AgentID.Instance.
func selectCandidate(taskType types.TaskType, candidates []*types.Agent) *types.Agent {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestScore := score(taskType, best)
	for _, a := range candidates[1:] {
		s := score(taskType, a)
		if s > bestScore || (s == bestScore && a.ID.Instance < best.ID.Instance) {
			best = a
			bestScore = s
		}
	}
	return best
}

// busPriorityFor maps a task priority to the bus lane used for its control
// messages: critical→urgent, high→high, normal→normal, low/background→low.
func busPriorityFor(p types.TaskPriority) types.MessagePriority {
	switch p {
	case types.PriorityCritical:
		return types.MsgUrgent
	case types.PriorityHigh:
		return types.MsgHigh
	case types.PriorityNormal:
		return types.MsgNormal
	default:
		return types.MsgLow
	}
}

// tryAssign runs the general (non-domain) scheduling algorithm for taskID:
// materialise idle agents, score them, assign the winner, or queue if none
// are available.
func (c *Coordinator) tryAssign(taskID string) {
	start := time.Now()

	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok || (task.Status != types.TaskCreated && task.Status != types.TaskQueued) {
		c.mu.Unlock()
		return
	}
	var candidates []*types.Agent
	for _, a := range c.agents {
		if a.Status == types.AgentIdle {
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID.Instance < candidates[j].ID.Instance })

	if len(candidates) == 0 {
		task.Status = types.TaskQueued
		c.mu.Unlock()
		c.publish(types.EventTaskQueued, task)
		return
	}

	winner := selectCandidate(task.Type, candidates)
	c.assignLocked(task, winner)
	c.mu.Unlock()

	c.sendAssignment(task, winner)
	metrics.TaskAssignDuration.Observe(time.Since(start).Seconds())
	c.recordLatency(float64(time.Since(start).Milliseconds()))
}

// assignLocked performs the created/queued→assigned and idle→busy
// transition. Caller holds c.mu.
func (c *Coordinator) assignLocked(task *types.Task, agent *types.Agent) {
	task.Status = types.TaskAssigned
	task.AssignedTo = &agent.ID
	agent.Status = types.AgentBusy
	agent.CurrentTask = &task.ID
}

func (c *Coordinator) sendAssignment(task *types.Task, agent *types.Agent) {
	_, _ = c.Bus.Send(types.Message{
		Type:        types.MsgTypeTask,
		From:        selfID,
		To:          agent.ID.ID,
		Payload:     *task,
		Priority:    busPriorityFor(task.Priority),
		RequiresAck: true,
		TTLMs:       task.TimeoutMs,
	})
	c.publish(types.EventTaskAssigned, task)
	metrics.TasksTotal.WithLabelValues(string(types.TaskAssigned)).Inc()
	scoped := log.Scoped(task.ID.SwarmID, agent.ID.ID, task.ID.ID)
	scoped.Debug().Msg("task assigned")
}

// startTask transitions an assigned task to running once the assignee's
// bus handler has acknowledged the assignment.
func (c *Coordinator) startTask(taskID, agentID string) {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok || task.Status != types.TaskAssigned || task.AssignedTo == nil || task.AssignedTo.ID != agentID {
		c.mu.Unlock()
		return
	}
	task.Status = types.TaskRunning
	task.StartedAt = time.Now()
	c.mu.Unlock()
	c.publish(types.EventTaskStarted, task)
}

// handleInbound is the coordinator's own bus handler: it processes
// task_complete/task_fail reports in the order the bus delivers them,
// mutating state before emitting the corresponding event.
func (c *Coordinator) handleInbound(msg *types.Message) {
	report, ok := msg.Payload.(taskReport)
	if !ok {
		return
	}
	if report.Failed {
		c.failTask(report.TaskID, msg.From, report.Error)
	} else {
		c.completeTask(report.TaskID, msg.From, report.Output)
	}
}

// ReportTaskComplete is how an agent (out of scope as a process, but driven
// directly by tests and callers here) reports successful completion. It is
// delivered through the bus so completions settle in delivery order.
func (c *Coordinator) ReportTaskComplete(taskID types.TaskID, agentID string, output any) error {
	_, err := c.Bus.Send(types.Message{
		Type:     types.MsgTypeResult,
		From:     agentID,
		To:       selfID,
		Priority: types.MsgNormal,
		Payload:  taskReport{TaskID: taskID.ID, Output: output},
	})
	return err
}

// ReportTaskFail is how an agent reports a failed task attempt.
func (c *Coordinator) ReportTaskFail(taskID types.TaskID, agentID string, errMsg string) error {
	_, err := c.Bus.Send(types.Message{
		Type:     types.MsgTypeResult,
		From:     agentID,
		To:       selfID,
		Priority: types.MsgHigh,
		Payload:  taskReport{TaskID: taskID.ID, Failed: true, Error: errMsg},
	})
	return err
}

func (c *Coordinator) completeTask(taskID, agentID string, output any) {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok || task.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	task.Status = types.TaskCompleted
	task.Output = output
	task.CompletedAt = time.Now()
	if !task.StartedAt.IsZero() {
		c.avgTaskDuration.Add(float64(task.CompletedAt.Sub(task.StartedAt).Milliseconds()))
	}
	if a, found := c.agents[agentID]; found {
		a.Metrics.TasksCompleted++
		a.Metrics.LastActivity = time.Now()
	}
	c.mu.Unlock()

	c.releaseAgent(agentID)
	c.publish(types.EventTaskCompleted, task)
	metrics.TasksCompletedTotal.Inc()
	c.signalDone(taskID)
}

func (c *Coordinator) failTask(taskID, agentID string, errMsg string) {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok || task.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	if a, found := c.agents[agentID]; found {
		a.Metrics.TasksFailed++
	}

	if task.Retries < task.MaxRetries {
		task.Retries++
		task.Status = types.TaskQueued
		task.AssignedTo = nil
		domain := task.Domain
		c.mu.Unlock()

		c.releaseAgent(agentID)
		c.publish(types.EventTaskQueued, task)
		scoped := log.Scoped(task.ID.SwarmID, agentID, taskID)
		scoped.Debug().
			Int("retries", task.Retries).Str("error", errMsg).Msg("task requeued after failure")
		if domain != "" {
			c.assignTaskToDomain(taskID, domain)
		} else {
			c.tryAssign(taskID)
		}
		return
	}

	task.Status = types.TaskFailed
	task.CompletedAt = time.Now()
	c.mu.Unlock()

	c.releaseAgent(agentID)
	c.publish(types.EventTaskFailed, task)
	metrics.TasksFailedTotal.Inc()
	c.signalDone(taskID)
}

// releaseAgent resets agentID to idle and, if it belongs to a domain,
// returns it to that domain's pool and advances the domain's FIFO queue.
// Agents mid-terminate are finalized instead of being returned to service.
// For domain-less agents, the oldest queued general task is dispatched onto
// the freed agent so completions advance the queue without caller action.
func (c *Coordinator) releaseAgent(agentID string) {
	c.mu.Lock()
	a, ok := c.agents[agentID]
	terminating := ok && a.Status == types.AgentTerminating
	if ok && !terminating {
		a.Status = types.AgentIdle
		a.CurrentTask = nil
	}
	domain, hasDomain := c.agentDomain[agentID]
	c.mu.Unlock()

	if !ok {
		return
	}
	if terminating {
		c.finalizeTermination(agentID)
		return
	}
	if hasDomain {
		c.releaseToDomain(agentID, domain)
		return
	}
	c.dispatchQueued()
}

// dispatchQueued hands the freed capacity to the oldest queued task that is
// not bound to a domain queue.
func (c *Coordinator) dispatchQueued() {
	c.mu.RLock()
	var next *types.Task
	for _, t := range c.tasks {
		if t.Status != types.TaskQueued || t.Domain != "" {
			continue
		}
		if next == nil || t.ID.Sequence < next.ID.Sequence {
			next = t
		}
	}
	c.mu.RUnlock()

	if next != nil {
		c.tryAssign(next.ID.ID)
	}
}

// CancelTask transitions taskID to cancelled, notifying its assignee (best
// effort) and releasing the agent immediately. Unknown ids are a no-op.
func (c *Coordinator) CancelTask(taskID string) {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok || task.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	assignee := task.AssignedTo
	task.Status = types.TaskCancelled
	task.CompletedAt = time.Now()
	c.mu.Unlock()

	if assignee != nil {
		_, _ = c.Bus.Send(types.Message{
			Type:        types.MsgTypeControl,
			From:        selfID,
			To:          assignee.ID,
			Payload:     "cancel:" + taskID,
			Priority:    types.MsgUrgent,
			RequiresAck: true,
		})
		c.releaseAgent(assignee.ID)
	}
	c.publish(types.EventTaskCancelled, task)
	c.signalDone(taskID)
}

// WaitForTask blocks until taskID reaches a terminal state or timeout
// elapses, returning its final snapshot.
func (c *Coordinator) WaitForTask(taskID string, timeout time.Duration) (*types.Task, error) {
	c.mu.RLock()
	w, ok := c.waiters[taskID]
	c.mu.RUnlock()
	if !ok {
		if t, found := c.GetTask(taskID); found {
			return t, nil
		}
		return nil, ErrUnknownTask
	}

	select {
	case <-w:
	case <-time.After(timeout):
	}
	t, found := c.GetTask(taskID)
	if !found {
		return nil, ErrUnknownTask
	}
	return t, nil
}

func (c *Coordinator) signalDone(taskID string) {
	c.mu.Lock()
	w, ok := c.waiters[taskID]
	if ok {
		delete(c.waiters, taskID)
	}
	c.mu.Unlock()
	if ok {
		close(w)
	}
}
