package topology

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/rs/zerolog"
)

// coordinatorNodeID is the synthetic hub node installed for centralized
// topologies on first insert.
const coordinatorNodeID = "__coordinator__"

// ScoreProvider supplies the health/reliability/workload inputs the leader
// election composite score needs. The coordinator implements it; the
// topology manager never reaches into agent state directly.
type ScoreProvider interface {
	AgentScore(agentID string) (health, reliability, workload float64, ok bool)
}

// Manager owns the topology graph exclusively: nodes, edges, partitions and
// the current leader. Mutations are serialised by mu.
type Manager struct {
	cfg    config.Topology
	scorer ScoreProvider
	broker *events.Broker
	log    zerolog.Logger

	mu         sync.RWMutex
	nodes      map[string]*types.TopologyNode
	edges      map[string]map[string]types.TopologyEdge
	partitions map[string]*types.Partition
	leader     string
}

// NewManager constructs a Manager for the given topology configuration.
func NewManager(cfg config.Topology, scorer ScoreProvider, broker *events.Broker) *Manager {
	return &Manager{
		cfg:        cfg,
		scorer:     scorer,
		broker:     broker,
		log:        log.WithComponent("topology"),
		nodes:      make(map[string]*types.TopologyNode),
		edges:      make(map[string]map[string]types.TopologyEdge),
		partitions: make(map[string]*types.Partition),
	}
}

// AddNode registers agentID at role, wiring edges per the configured
// topology type. Adding an already-known id is idempotent.
func (m *Manager) AddNode(agentID string, role types.NodeRole) *types.TopologyNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.nodes[agentID]; ok {
		return existing
	}

	node := &types.TopologyNode{
		ID:     agentID,
		Role:   role,
		Status: types.AgentIdle,
	}
	m.nodes[agentID] = node
	m.edgesInit(agentID)

	switch m.cfg.Type {
	case string(types.TopologyMesh):
		m.wireMesh(agentID)
	case string(types.TopologyHierarchical):
		m.wireHierarchical(agentID)
	case string(types.TopologyCentralized):
		m.wireCentralized(agentID)
	case string(types.TopologyHybrid):
		m.wireHybrid(agentID)
	default:
		m.wireMesh(agentID)
	}

	if m.leader == "" {
		m.leader = agentID
	}

	metrics.TopologyNodesTotal.Set(float64(len(m.nodes)))
	m.publish(types.EventTopologyUpdated, node)
	return node
}

// RemoveNode removes agentID and its edges. Unknown ids are a no-op. If the
// removed node was the leader, a new one is elected.
func (m *Manager) RemoveNode(agentID string) {
	m.mu.Lock()
	node, ok := m.nodes[agentID]
	if !ok {
		m.mu.Unlock()
		return
	}

	drain := node.Status == types.AgentBusy
	delete(m.nodes, agentID)
	delete(m.edges, agentID)
	for _, peers := range m.edges {
		delete(peers, agentID)
	}
	for _, p := range m.partitions {
		p.Replicas = removeString(p.Replicas, agentID)
		if p.Leader == agentID {
			p.Leader = ""
		}
	}
	wasLeader := m.leader == agentID
	if wasLeader {
		m.leader = ""
	}
	m.mu.Unlock()

	metrics.TopologyNodesTotal.Set(float64(len(m.nodes)))
	if drain {
		m.log.Debug().Str("agent_id", agentID).Msg("node removed while busy; coordinator should drain its task")
	}
	if wasLeader {
		m.ElectLeader()
	}
	m.publish(types.EventTopologyUpdated, agentID)
}

// UpdateNode patches status and metadata for an existing node. Unknown ids
// are a no-op.
func (m *Manager) UpdateNode(agentID string, status types.AgentStatus, metadataPatch map[string]string) {
	m.mu.Lock()
	node, ok := m.nodes[agentID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if status != "" {
		node.Status = status
	}
	if metadataPatch != nil {
		if node.Metadata == nil {
			node.Metadata = make(map[string]string)
		}
		for k, v := range metadataPatch {
			node.Metadata[k] = v
		}
	}
	m.mu.Unlock()
}

// GetState returns a snapshot of the full topology graph.
func (m *Manager) GetState() types.TopologyState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodesCopy := make(map[string]*types.TopologyNode, len(m.nodes))
	for id, n := range m.nodes {
		cp := *n
		nodesCopy[id] = &cp
	}
	var edgesCopy []types.TopologyEdge
	for from, peers := range m.edges {
		for to, e := range peers {
			if from < to || !e.Bidirectional {
				edgesCopy = append(edgesCopy, e)
			}
		}
	}
	partitionsCopy := make(map[string]*types.Partition, len(m.partitions))
	for id, p := range m.partitions {
		cp := *p
		partitionsCopy[id] = &cp
	}

	return types.TopologyState{
		Type:       types.TopologyType(m.cfg.Type),
		Nodes:      nodesCopy,
		Edges:      edgesCopy,
		Partitions: partitionsCopy,
		Leader:     m.leader,
	}
}

// GetLeader returns the current leader id, or "" if none.
func (m *Manager) GetLeader() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leader
}

// ElectLeader deterministically picks the node with the highest composite
// score (health × reliability − workload), breaking ties by lowest id.
func (m *Manager) ElectLeader() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.electLeaderLocked()
}

func (m *Manager) electLeaderLocked() string {
	var ids []string
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ""
	bestScore := math.Inf(-1)
	for _, id := range ids {
		health, reliability, workload := 1.0, 1.0, 0.0
		if m.scorer != nil {
			if h, r, w, ok := m.scorer.AgentScore(id); ok {
				health, reliability, workload = h, r, w
			}
		}
		score := health*reliability - workload
		if score > bestScore {
			bestScore = score
			best = id
		}
	}
	m.leader = best
	if best != "" {
		m.publish(types.EventTopologyLeaderElected, best)
	}
	return best
}

// Rebalance rehomes partitions to equalise partition sizes and minimise
// leader load. Nodes whose status is busy/assigned are skipped unless
// already drained by the coordinator.
func (m *Manager) Rebalance() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.partitions) == 0 {
		return
	}

	var moveable []string
	for id, node := range m.nodes {
		if node.Status == types.AgentBusy {
			continue // must be drained first
		}
		moveable = append(moveable, id)
	}
	sort.Strings(moveable)

	partitionIDs := make([]string, 0, len(m.partitions))
	for id := range m.partitions {
		partitionIDs = append(partitionIDs, id)
	}
	sort.Strings(partitionIDs)
	if len(partitionIDs) == 0 {
		return
	}

	for _, p := range m.partitions {
		p.Replicas = nil
	}
	for i, id := range moveable {
		pid := partitionIDs[i%len(partitionIDs)]
		p := m.partitions[pid]
		p.Replicas = append(p.Replicas, id)
		if p.Leader == "" || !contains(p.Replicas, p.Leader) {
			p.Leader = id
		}
	}

	metrics.TopologyRebalancesTotal.Inc()
	m.publish(types.EventTopologyRebalanced, nil)
}

// GetNeighbors returns the ids directly connected to agentID.
func (m *Manager) GetNeighbors(agentID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peers := m.edges[agentID]
	out := make([]string, 0, len(peers))
	for id := range peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FindOptimalPath returns the lowest-weight path from from to to using edge
// weights (default 1, or latencyMs when present).
func (m *Manager) FindOptimalPath(from, to string) ([]string, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.nodes[from]; !ok {
		return nil, 0, fmt.Errorf("topology: unknown node %q", from)
	}
	if _, ok := m.nodes[to]; !ok {
		return nil, 0, fmt.Errorf("topology: unknown node %q", to)
	}
	if from == to {
		return []string{from}, 0, nil
	}

	return dijkstra(m.edges, from, to)
}

func (m *Manager) edgesInit(agentID string) {
	if m.edges[agentID] == nil {
		m.edges[agentID] = make(map[string]types.TopologyEdge)
	}
}

func (m *Manager) connect(a, b string, weight float64) {
	m.edgesInit(a)
	m.edgesInit(b)
	edge := types.TopologyEdge{From: a, To: b, Weight: weight, Bidirectional: true}
	m.edges[a][b] = edge
	m.edges[b][a] = types.TopologyEdge{From: b, To: a, Weight: weight, Bidirectional: true}
}

// wireMesh connects the joining node to every existing one. Mesh has no
// hierarchy: every member, including nodes admitted under another role, is
// a peer.
func (m *Manager) wireMesh(agentID string) {
	m.nodes[agentID].Role = types.RolePeer
	for id := range m.nodes {
		if id != agentID {
			m.nodes[id].Role = types.RolePeer
			m.connect(agentID, id, 1)
		}
	}
}

func (m *Manager) wireHierarchical(agentID string) {
	if m.leader == "" {
		m.nodes[agentID].Role = types.RoleQueen
		return
	}
	m.connect(agentID, m.leader, 1)
}

func (m *Manager) wireCentralized(agentID string) {
	if _, ok := m.nodes[coordinatorNodeID]; !ok && agentID != coordinatorNodeID {
		m.nodes[coordinatorNodeID] = &types.TopologyNode{
			ID:   coordinatorNodeID,
			Role: types.RoleCoordinator,
		}
		m.edgesInit(coordinatorNodeID)
	}
	if agentID != coordinatorNodeID {
		m.connect(agentID, coordinatorNodeID, 1)
	}
}

// wireHybrid unions mesh-within-partition with hierarchical-across-partition
// edges. Partition assignment is a simple hash of the agent id.
func (m *Manager) wireHybrid(agentID string) {
	partitionCount := partitionCountFor(m.cfg.MaxAgents)
	pid := fmt.Sprintf("p%d", hashString(agentID)%partitionCount)

	p, ok := m.partitions[pid]
	if !ok {
		p = &types.Partition{ID: pid}
		m.partitions[pid] = p
	}
	for _, peer := range p.Replicas {
		m.connect(agentID, peer, 1)
	}
	p.Replicas = append(p.Replicas, agentID)
	if p.Leader == "" {
		p.Leader = agentID
	}

	m.wireHierarchical(agentID)
}

func partitionCountFor(maxAgents int) int {
	if maxAgents <= 0 {
		return 1
	}
	n := int(math.Ceil(math.Sqrt(float64(maxAgents))))
	if n < 1 {
		n = 1
	}
	return n
}

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

func (m *Manager) publish(t types.EventType, data any) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&types.Event{Type: t, Source: "topology", Data: data})
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// --- Dijkstra shortest path ---

type pathItem struct {
	id   string
	dist float64
}

type pathHeap []pathItem

func (h pathHeap) Len() int            { return len(h) }
func (h pathHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h pathHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x interface{}) { *h = append(*h, x.(pathItem)) }
func (h *pathHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func dijkstra(edges map[string]map[string]types.TopologyEdge, from, to string) ([]string, float64, error) {
	dist := map[string]float64{from: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	h := &pathHeap{{id: from, dist: 0}}
	heap.Init(h)

	for h.Len() > 0 {
		cur := heap.Pop(h).(pathItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == to {
			break
		}

		for peer, edge := range edges[cur.id] {
			weight := edge.Weight
			if edge.LatencyMs != nil {
				weight = *edge.LatencyMs
			}
			if weight <= 0 {
				weight = 1
			}
			nd := dist[cur.id] + weight
			if d, ok := dist[peer]; !ok || nd < d {
				dist[peer] = nd
				prev[peer] = cur.id
				heap.Push(h, pathItem{id: peer, dist: nd})
			}
		}
	}

	finalDist, ok := dist[to]
	if !ok {
		return nil, 0, fmt.Errorf("topology: no path from %q to %q", from, to)
	}

	var path []string
	for at := to; at != ""; {
		path = append([]string{at}, path...)
		if at == from {
			break
		}
		at = prev[at]
	}
	return path, finalDist, nil
}
