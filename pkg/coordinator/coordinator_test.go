package coordinator

import (
	"testing"
	"time"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSwarmConfig() *config.Swarm {
	cfg := config.Default()
	cfg.MaxAgents = 20
	cfg.MaxTasks = 100
	cfg.MessageBus.ProcessingIntervalMs = 5
	cfg.MessageBus.AckTimeoutMs = 200
	cfg.HealthCheckIntervalMs = 50
	cfg.HeartbeatIntervalMs = 20
	cfg.Consensus.TimeoutMs = 300
	cfg.Consensus.MaxRounds = 5
	return cfg
}

func newRunning(t *testing.T) *Coordinator {
	t.Helper()
	c := New(testSwarmConfig())
	require.NoError(t, c.Initialize())
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

func TestInitializeRejectsPaxos(t *testing.T) {
	cfg := testSwarmConfig()
	cfg.Consensus.Algorithm = "paxos"
	c := New(cfg)
	err := c.Initialize()
	assert.ErrorIs(t, err, ErrConfigurationError)
}

func TestInitializeIsNotReentrant(t *testing.T) {
	c := newRunning(t)
	err := c.Initialize()
	assert.ErrorIs(t, err, ErrReinitialize)
}

func TestRegisterAgentEnforcesCapacity(t *testing.T) {
	cfg := testSwarmConfig()
	cfg.MaxAgents = 1
	c := New(cfg)
	require.NoError(t, c.Initialize())
	defer c.Shutdown()

	_, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)

	_, err = c.RegisterAgent(types.AgentDefinition{Name: "a2", Type: types.AgentCoder})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

// TestSingleTaskHappyPath walks a task through created -> assigned -> running
// -> completed, driven by the agent stub and an explicit completion report.
func TestSingleTaskHappyPath(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{
		Name:         "coder-1",
		Type:         types.AgentCoder,
		Capabilities: types.Capabilities{Code: true, Reliability: 1},
	})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding, Name: "build-thing"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.ReportTaskComplete(taskID, agentID.ID, "done"))

	task, err := c.WaitForTask(taskID.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, task.Status)
	assert.Equal(t, "done", task.Output)

	agent, ok := c.GetAgent(agentID.ID)
	require.True(t, ok)
	assert.Equal(t, types.AgentIdle, agent.Status)
	assert.EqualValues(t, 1, agent.Metrics.TasksCompleted)
}

// TestTaskRetriesThenSucceeds exercises the retry path: a failure with
// retries remaining re-queues and re-assigns the task instead of failing it.
func TestTaskRetriesThenSucceeds(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{
		Name: "coder-1",
		Type: types.AgentCoder,
	})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding, MaxRetries: 1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.ReportTaskFail(taskID, agentID.ID, "boom"))

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning && task.Retries == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.ReportTaskComplete(taskID, agentID.ID, "done-on-retry"))

	task, err := c.WaitForTask(taskID.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, task.Status)
}

// TestTaskFailsAfterRetriesExhausted confirms a task that exhausts
// MaxRetries lands in failed, not queued.
func TestTaskFailsAfterRetriesExhausted(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "coder-1", Type: types.AgentCoder})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding, MaxRetries: 0})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.ReportTaskFail(taskID, agentID.ID, "boom"))

	task, err := c.WaitForTask(taskID.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, task.Status)
}

// TestSubmitTaskQueuesWhenNoAgentsIdle confirms a task with no idle agents
// available lands in queued rather than assigned.
func TestSubmitTaskQueuesWhenNoAgentsIdle(t *testing.T) {
	c := newRunning(t)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)

	task, ok := c.GetTask(taskID.ID)
	require.True(t, ok)
	assert.Equal(t, types.TaskQueued, task.Status)
}

// TestSubmitTaskEnforcesCapacity confirms MaxTasks is honoured.
func TestSubmitTaskEnforcesCapacity(t *testing.T) {
	cfg := testSwarmConfig()
	cfg.MaxTasks = 1
	c := New(cfg)
	require.NoError(t, c.Initialize())
	defer c.Shutdown()

	_, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)

	_, err = c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

// TestConsensusAccepted drives a proposal to acceptance with unanimous
// approval across a small membership.
func TestConsensusAccepted(t *testing.T) {
	c := newRunning(t)

	a1, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)
	a2, err := c.RegisterAgent(types.AgentDefinition{Name: "a2", Type: types.AgentCoder})
	require.NoError(t, err)

	proposal, err := c.Engine.Propose("switch-to-hybrid", selfID)
	require.NoError(t, err)

	require.NoError(t, c.CastVote(proposal.ID, types.Vote{VoterID: a1.ID, Approve: true}))
	require.NoError(t, c.CastVote(proposal.ID, types.Vote{VoterID: a2.ID, Approve: true}))
	require.NoError(t, c.CastVote(proposal.ID, types.Vote{VoterID: selfID, Approve: true}))

	result, err := c.Engine.AwaitConsensus(proposal.ID)
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, "switch-to-hybrid", result.FinalValue)
}

// TestConsensusTimesOutWithoutQuorum confirms an under-voted proposal expires
// rather than hanging forever.
func TestConsensusTimesOutWithoutQuorum(t *testing.T) {
	cfg := testSwarmConfig()
	cfg.Consensus.TimeoutMs = 30
	c := New(cfg)
	require.NoError(t, c.Initialize())
	defer c.Shutdown()

	_, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)
	_, err = c.RegisterAgent(types.AgentDefinition{Name: "a2", Type: types.AgentCoder})
	require.NoError(t, err)

	result, err := c.ProposeConsensus("never-voted")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, types.ProposalExpired, statusOf(c, result.ProposalID))
}

func statusOf(c *Coordinator, proposalID string) types.ProposalStatus {
	p, ok := c.Engine.GetProposal(proposalID)
	if !ok {
		return ""
	}
	return p.Status
}

// TestSpawnFullHierarchyIsSingleShot confirms the fixed 15-agent hierarchy
// can only be spawned once.
func TestSpawnFullHierarchyIsSingleShot(t *testing.T) {
	c := newRunning(t)

	require.NoError(t, c.SpawnFullHierarchy())
	assert.Len(t, c.GetAllAgents(), 15)

	err := c.SpawnFullHierarchy()
	assert.ErrorIs(t, err, ErrHierarchyPopulated)
}

// TestExecuteParallelDispatchesAcrossDomains submits work to two domains at
// once and confirms both settle, in submission order.
func TestExecuteParallelDispatchesAcrossDomains(t *testing.T) {
	c := newRunning(t)
	require.NoError(t, c.SpawnFullHierarchy())

	pairs := []DomainTask{
		{Task: types.TaskDefinition{Type: types.TaskReview, Name: "audit"}, Domain: types.DomainSecurity},
		{Task: types.TaskDefinition{Type: types.TaskCoding, Name: "implement"}, Domain: types.DomainCore},
	}

	done := make(chan []types.ParallelExecutionResult, 1)
	go func() { done <- c.ExecuteParallel(pairs) }()

	require.Eventually(t, func() bool {
		return len(c.ListAgents(AgentFilter{Status: types.AgentBusy})) == 2
	}, time.Second, 5*time.Millisecond)

	for _, a := range c.ListAgents(AgentFilter{Status: types.AgentBusy}) {
		require.NoError(t, c.ReportTaskComplete(*a.CurrentTask, a.ID.ID, "ok"))
	}

	select {
	case results := <-done:
		require.Len(t, results, 2)
		assert.True(t, results[0].Success)
		assert.True(t, results[1].Success)
	case <-time.After(2 * time.Second):
		t.Fatal("ExecuteParallel did not return")
	}
}

func TestGetMetricsReflectsRegisteredAgents(t *testing.T) {
	c := newRunning(t)
	_, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)

	m := c.GetMetrics()
	assert.Equal(t, 1, m.ActiveAgents)
	assert.GreaterOrEqual(t, m.UptimeMs, int64(0))
}

func TestPauseResumeTransitions(t *testing.T) {
	c := newRunning(t)
	c.Pause()
	assert.Equal(t, types.SwarmPausedState, c.GetStatus())

	c.Resume()
	assert.Equal(t, types.SwarmRunning, c.GetStatus())
}

func TestUnregisterAgentCancelsCurrentTask(t *testing.T) {
	c := newRunning(t)
	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	c.UnregisterAgent(agentID.ID)

	task, ok := c.GetTask(taskID.ID)
	require.True(t, ok)
	assert.Equal(t, types.TaskCancelled, task.Status)

	_, ok = c.GetAgent(agentID.ID)
	assert.False(t, ok)
}

// TestQueuedTaskAssignedWhenAgentFrees confirms a queued task is dispatched
// onto the freed agent without further caller action.
func TestQueuedTaskAssignedWhenAgentFrees(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "only", Type: types.AgentCoder})
	require.NoError(t, err)

	t1, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding, Name: "first"})
	require.NoError(t, err)
	t2, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding, Name: "second"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(t1.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	task2, ok := c.GetTask(t2.ID)
	require.True(t, ok)
	assert.Equal(t, types.TaskQueued, task2.Status)

	require.NoError(t, c.ReportTaskComplete(t1, agentID.ID, "ok"))

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(t2.ID)
		return ok && (task.Status == types.TaskAssigned || task.Status == types.TaskRunning)
	}, time.Second, 5*time.Millisecond)
}

// TestTaskTimesOutWhenNeverCompleted confirms expiry is a first-class
// terminal state and the assignee is freed.
func TestTaskTimesOutWhenNeverCompleted(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "slow", Type: types.AgentCoder})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding, TimeoutMs: 20})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskTimeout
	}, 2*time.Second, 10*time.Millisecond)

	agent, ok := c.GetAgent(agentID.ID)
	require.True(t, ok)
	assert.Equal(t, types.AgentIdle, agent.Status)
	assert.Nil(t, agent.CurrentTask)
}

func TestGetStateSnapshot(t *testing.T) {
	c := newRunning(t)
	_, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)
	_, err = c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)

	st := c.GetState()
	assert.Equal(t, types.SwarmRunning, st.Status)
	assert.Len(t, st.Agents, 1)
	assert.Len(t, st.Tasks, 1)
	assert.Len(t, st.Topology.Nodes, 1)
}

func TestSpawnAgentBindsDomain(t *testing.T) {
	c := newRunning(t)

	id, err := c.SpawnAgent(SpawnOptions{
		Name:   "sec-1",
		Type:   types.AgentReviewer,
		Domain: types.DomainSecurity,
	})
	require.NoError(t, err)

	taskID, err := c.AssignTaskToDomain(types.TaskDefinition{Type: types.TaskReview}, types.DomainSecurity)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.AssignedTo != nil && task.AssignedTo.ID == id.ID
	}, time.Second, 5*time.Millisecond)
}

func TestTerminateAgentForceCancelsTask(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	c.TerminateAgent(agentID.ID, TerminateOptions{Force: true})

	_, ok := c.GetAgent(agentID.ID)
	assert.False(t, ok)

	task, ok := c.GetTask(taskID.ID)
	require.True(t, ok)
	assert.Equal(t, types.TaskCancelled, task.Status)
}

func TestTerminateAgentGracefulDrainsFirst(t *testing.T) {
	c := newRunning(t)

	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "a1", Type: types.AgentCoder})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)

	c.TerminateAgent(agentID.ID, TerminateOptions{})

	// Still draining: the agent survives until its task settles.
	agent, ok := c.GetAgent(agentID.ID)
	require.True(t, ok)
	assert.Equal(t, types.AgentTerminating, agent.Status)

	require.NoError(t, c.ReportTaskComplete(taskID, agentID.ID, "done"))

	require.Eventually(t, func() bool {
		_, ok := c.GetAgent(agentID.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)

	task, ok := c.GetTask(taskID.ID)
	require.True(t, ok)
	assert.Equal(t, types.TaskCompleted, task.Status)
}

// TestShutdownThenReinitialize confirms shutdown is idempotent and a stopped
// coordinator can be brought back with fresh sub-components.
func TestShutdownThenReinitialize(t *testing.T) {
	c := New(testSwarmConfig())
	require.NoError(t, c.Initialize())
	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())

	require.NoError(t, c.Initialize())
	defer c.Shutdown()
	assert.Equal(t, types.SwarmRunning, c.GetStatus())

	agentID, err := c.RegisterAgent(types.AgentDefinition{Name: "back", Type: types.AgentCoder})
	require.NoError(t, err)

	taskID, err := c.SubmitTask(types.TaskDefinition{Type: types.TaskCoding})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, ok := c.GetTask(taskID.ID)
		return ok && task.Status == types.TaskRunning
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, c.ReportTaskComplete(taskID, agentID.ID, "ok"))

	task, err := c.WaitForTask(taskID.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, task.Status)
}
