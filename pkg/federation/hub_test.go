package federation

import (
	"testing"
	"time"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Federation {
	cfg := config.Default().Federation
	cfg.DefaultTTLMs = 200
	cfg.CommunicationTimeoutMs = 100
	cfg.ConsensusQuorum = 0.66
	cfg.EnableConsensus = true
	cfg.MaxEphemeralAgents = 5
	cfg.AutoCleanup = false
	return cfg
}

func TestRegisterSwarmAssignsID(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	id, err := h.RegisterSwarm(SwarmDefinition{Name: "swarm-a", MaxAgents: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	reg, ok := h.GetSwarm(id)
	require.True(t, ok)
	assert.Equal(t, types.SwarmActive, reg.Status)
}

func TestSpawnEphemeralAgentSelectsBestSwarm(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	full, err := h.RegisterSwarm(SwarmDefinition{Name: "full", MaxAgents: 1, Capabilities: []string{"coding"}})
	require.NoError(t, err)
	_, err = h.SpawnEphemeralAgent(SpawnOptions{SwarmID: full, Type: types.AgentCoder, Task: "fill-it-up"})
	require.NoError(t, err)

	roomy, err := h.RegisterSwarm(SwarmDefinition{Name: "roomy", MaxAgents: 5, Capabilities: []string{"coding"}})
	require.NoError(t, err)

	agent, err := h.SpawnEphemeralAgent(SpawnOptions{Type: types.AgentCoder, Task: "build", Capabilities: []string{"coding"}})
	require.NoError(t, err)
	assert.Equal(t, roomy, agent.SwarmID)
	assert.Equal(t, types.EphemeralSpawning, agent.Status)
}

func TestSpawnEphemeralAgentNoEligibleSwarm(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	_, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 1, Capabilities: []string{"security"}})
	require.NoError(t, err)

	_, err = h.SpawnEphemeralAgent(SpawnOptions{Capabilities: []string{"coding"}})
	assert.ErrorIs(t, err, ErrNoEligibleSwarm)
}

func TestEphemeralAgentActivatesAfterSpawning(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	agent, err := h.SpawnEphemeralAgent(SpawnOptions{SwarmID: swarmID, Type: types.AgentWorker, TTL: time.Second})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, ok := h.GetAgent(agent.ID)
		return ok && a.Status == types.EphemeralActive
	}, time.Second, 5*time.Millisecond)
}

func TestCompleteAgentReachesTerminated(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	agent, err := h.SpawnEphemeralAgent(SpawnOptions{SwarmID: swarmID, Type: types.AgentWorker, TTL: time.Second})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, _ := h.GetAgent(agent.ID)
		return a.Status == types.EphemeralActive
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.CompleteAgent(agent.ID, "result-payload"))

	require.Eventually(t, func() bool {
		a, _ := h.GetAgent(agent.ID)
		return a.Status == types.EphemeralTerminated
	}, time.Second, 5*time.Millisecond)

	a, _ := h.GetAgent(agent.ID)
	assert.Equal(t, "result-payload", a.Result)

	reg, _ := h.GetSwarm(swarmID)
	assert.Equal(t, 0, reg.CurrentAgents)
}

func TestTerminateAgentOnTTLExpiry(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	agent, err := h.SpawnEphemeralAgent(SpawnOptions{SwarmID: swarmID, Type: types.AgentWorker, TTL: 30 * time.Millisecond})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, _ := h.GetAgent(agent.ID)
		return a.Status == types.EphemeralTerminated
	}, time.Second, 5*time.Millisecond)

	a, _ := h.GetAgent(agent.ID)
	assert.Equal(t, "ttl expired", a.Error)
}

func TestUnregisterSwarmTerminatesHostedAgents(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	agent, err := h.SpawnEphemeralAgent(SpawnOptions{SwarmID: swarmID, Type: types.AgentWorker, TTL: time.Minute})
	require.NoError(t, err)

	h.UnregisterSwarm(swarmID)

	_, ok := h.GetSwarm(swarmID)
	assert.False(t, ok)

	a, ok := h.GetAgent(agent.ID)
	require.True(t, ok)
	assert.Equal(t, types.EphemeralTerminated, a.Status)
}

func TestSendMessageDeliversToSubscribedSwarm(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	received := make(chan any, 1)
	h.Subscribe(swarmID, func(from string, payload any) { received <- payload })

	require.NoError(t, h.SendMessage("other-swarm", swarmID, "hello"))

	select {
	case p := <-received:
		assert.Equal(t, "hello", p)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSendMessageUnknownRecipient(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	err := h.SendMessage("a", "ghost", "hi")
	assert.ErrorIs(t, err, ErrUnknownSwarm)
}

func TestFederationConsensusAccepted(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	s1, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)
	s2, err := h.RegisterSwarm(SwarmDefinition{Name: "s2", MaxAgents: 3})
	require.NoError(t, err)
	s3, err := h.RegisterSwarm(SwarmDefinition{Name: "s3", MaxAgents: 3})
	require.NoError(t, err)

	proposal, err := h.Propose("rebalance-now", s1)
	require.NoError(t, err)

	require.NoError(t, h.Vote(proposal.ID, types.Vote{VoterID: s1, Approve: true}))
	require.NoError(t, h.Vote(proposal.ID, types.Vote{VoterID: s2, Approve: true}))
	require.NoError(t, h.Vote(proposal.ID, types.Vote{VoterID: s3, Approve: true}))

	result, err := h.AwaitConsensus(proposal.ID)
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, "rebalance-now", result.FinalValue)
}

func TestFederationConsensusExpiresWithoutQuorum(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	s1, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)
	_, err = h.RegisterSwarm(SwarmDefinition{Name: "s2", MaxAgents: 3})
	require.NoError(t, err)

	proposal, err := h.Propose("never-voted", s1)
	require.NoError(t, err)

	result, err := h.AwaitConsensus(proposal.ID)
	require.NoError(t, err)
	assert.False(t, result.Approved)

	p, ok := h.GetProposal(proposal.ID)
	require.True(t, ok)
	assert.Equal(t, types.ProposalExpired, p.Status)
}

func TestStaleSwarmDegradesThenGoesInactive(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	id, err := h.RegisterSwarm(SwarmDefinition{Name: "flaky", MaxAgents: 3})
	require.NoError(t, err)

	h.mu.Lock()
	h.swarms[id].LastHeartbeat = time.Now().Add(-time.Minute)
	h.mu.Unlock()

	h.sweepStaleSwarms(time.Second)
	reg, _ := h.GetSwarm(id)
	assert.Equal(t, types.SwarmDegraded, reg.Status)

	h.sweepStaleSwarms(time.Second)
	reg, _ = h.GetSwarm(id)
	assert.Equal(t, types.SwarmInactive, reg.Status)
}

func TestHeartbeatRestoresDegradedSwarm(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	id, err := h.RegisterSwarm(SwarmDefinition{Name: "flaky", MaxAgents: 3})
	require.NoError(t, err)

	h.mu.Lock()
	h.swarms[id].LastHeartbeat = time.Now().Add(-time.Minute)
	h.mu.Unlock()
	h.sweepStaleSwarms(time.Second)

	agents := 2
	h.Heartbeat(id, &agents)

	reg, _ := h.GetSwarm(id)
	assert.Equal(t, types.SwarmActive, reg.Status)
	assert.Equal(t, 2, reg.CurrentAgents)
}

func TestSpawnWaitForCompletionReturnsTerminalAgent(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	agent, err := h.SpawnEphemeralAgent(SpawnOptions{
		SwarmID:           swarmID,
		Type:              types.AgentWorker,
		TTL:               60 * time.Millisecond,
		WaitForCompletion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, types.EphemeralTerminated, agent.Status)
	assert.Equal(t, "ttl expired", agent.Error)
}

func TestAwaitAgentReturnsAfterCompletion(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	swarmID, err := h.RegisterSwarm(SwarmDefinition{Name: "s1", MaxAgents: 3})
	require.NoError(t, err)

	spawned, err := h.SpawnEphemeralAgent(SpawnOptions{SwarmID: swarmID, Type: types.AgentWorker, TTL: time.Second})
	require.NoError(t, err)

	go func() {
		time.Sleep(80 * time.Millisecond)
		_ = h.CompleteAgent(spawned.ID, "answer")
	}()

	final, err := h.AwaitAgent(spawned.ID, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.EphemeralTerminated, final.Status)
	assert.Equal(t, "answer", final.Result)
}

func TestAwaitAgentUnknownID(t *testing.T) {
	h := New(testConfig(), events.NewBroker())
	_, err := h.AwaitAgent("ghost", time.Millisecond)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}
