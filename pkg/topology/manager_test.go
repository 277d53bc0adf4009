package topology

import (
	"testing"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	scores map[string][3]float64
}

func (f *fakeScorer) AgentScore(id string) (health, reliability, workload float64, ok bool) {
	s, exists := f.scores[id]
	if !exists {
		return 0, 0, 0, false
	}
	return s[0], s[1], s[2], true
}

func meshConfig() config.Topology {
	cfg := config.Default().Topology
	cfg.Type = string(types.TopologyMesh)
	return cfg
}

func TestAddNodeMeshWiresAllPeers(t *testing.T) {
	m := NewManager(meshConfig(), nil, events.NewBroker())

	m.AddNode("a", types.RoleWorker)
	m.AddNode("b", types.RoleWorker)
	m.AddNode("c", types.RoleWorker)

	assert.ElementsMatch(t, []string{"b", "c"}, m.GetNeighbors("a"))
	assert.ElementsMatch(t, []string{"a", "c"}, m.GetNeighbors("b"))

	// Mesh flattens whatever role the caller passed: every member is a peer.
	state := m.GetState()
	for id, node := range state.Nodes {
		assert.Equalf(t, types.RolePeer, node.Role, "node %s should be a peer in mesh", id)
	}
}

func TestAddNodeHierarchicalFirstNodeIsQueen(t *testing.T) {
	cfg := meshConfig()
	cfg.Type = string(types.TopologyHierarchical)
	m := NewManager(cfg, nil, events.NewBroker())

	m.AddNode("queen", types.RoleWorker)
	m.AddNode("worker-1", types.RoleWorker)
	m.AddNode("worker-2", types.RoleWorker)

	state := m.GetState()
	assert.Equal(t, types.RoleQueen, state.Nodes["queen"].Role)
	assert.ElementsMatch(t, []string{"queen"}, m.GetNeighbors("worker-1"))
	assert.ElementsMatch(t, []string{"queen"}, m.GetNeighbors("worker-2"))
}

func TestAddNodeCentralizedCreatesHub(t *testing.T) {
	cfg := meshConfig()
	cfg.Type = string(types.TopologyCentralized)
	m := NewManager(cfg, nil, events.NewBroker())

	m.AddNode("a", types.RoleWorker)
	m.AddNode("b", types.RoleWorker)

	assert.Contains(t, m.GetNeighbors("a"), coordinatorNodeID)
	assert.Contains(t, m.GetNeighbors("b"), coordinatorNodeID)
}

func TestRemoveNodeIsIdempotentForUnknown(t *testing.T) {
	m := NewManager(meshConfig(), nil, events.NewBroker())
	assert.NotPanics(t, func() { m.RemoveNode("ghost") })
}

func TestRemoveNodeReassignsLeader(t *testing.T) {
	m := NewManager(meshConfig(), &fakeScorer{scores: map[string][3]float64{
		"a": {1.0, 1.0, 0.0},
		"b": {0.9, 1.0, 0.0},
	}}, events.NewBroker())

	m.AddNode("a", types.RoleWorker)
	m.AddNode("b", types.RoleWorker)
	require.Equal(t, "a", m.GetLeader())

	m.RemoveNode("a")
	assert.Equal(t, "b", m.GetLeader())
}

func TestElectLeaderHighestCompositeScoreWins(t *testing.T) {
	scorer := &fakeScorer{scores: map[string][3]float64{
		"a": {0.5, 1.0, 0.1}, // 0.5*1.0-0.1 = 0.4
		"b": {1.0, 1.0, 0.2}, // 1.0*1.0-0.2 = 0.8
		"c": {0.9, 0.9, 0.0}, // 0.81
	}}
	m := NewManager(meshConfig(), scorer, events.NewBroker())
	m.AddNode("a", types.RoleWorker)
	m.AddNode("b", types.RoleWorker)
	m.AddNode("c", types.RoleWorker)

	leader := m.ElectLeader()
	assert.Equal(t, "c", leader)
}

func TestElectLeaderTiesBreakByLowestID(t *testing.T) {
	scorer := &fakeScorer{scores: map[string][3]float64{
		"b-agent": {1.0, 1.0, 0.0},
		"a-agent": {1.0, 1.0, 0.0},
	}}
	m := NewManager(meshConfig(), scorer, events.NewBroker())
	m.AddNode("b-agent", types.RoleWorker)
	m.AddNode("a-agent", types.RoleWorker)

	leader := m.ElectLeader()
	assert.Equal(t, "a-agent", leader)
}

func TestFindOptimalPathUsesWeights(t *testing.T) {
	m := NewManager(meshConfig(), nil, events.NewBroker())
	m.AddNode("a", types.RoleWorker)
	m.AddNode("b", types.RoleWorker)
	m.AddNode("c", types.RoleWorker)

	path, dist, err := m.FindOptimalPath("a", "c")
	require.NoError(t, err)
	assert.Equal(t, "a", path[0])
	assert.Equal(t, "c", path[len(path)-1])
	assert.Equal(t, 1.0, dist) // mesh: direct edge a-c exists
}

func TestFindOptimalPathUnknownNode(t *testing.T) {
	m := NewManager(meshConfig(), nil, events.NewBroker())
	m.AddNode("a", types.RoleWorker)

	_, _, err := m.FindOptimalPath("a", "ghost")
	assert.Error(t, err)
}

func TestRebalanceSkipsBusyNodes(t *testing.T) {
	cfg := meshConfig()
	cfg.Type = string(types.TopologyHybrid)
	cfg.MaxAgents = 4
	m := NewManager(cfg, nil, events.NewBroker())

	m.AddNode("a", types.RoleWorker)
	m.AddNode("b", types.RoleWorker)
	m.UpdateNode("b", types.AgentBusy, nil)

	m.Rebalance()

	state := m.GetState()
	for _, p := range state.Partitions {
		assert.NotContains(t, p.Replicas, "b")
	}
}
