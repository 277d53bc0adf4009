package types

// TopologyType selects how the topology manager wires new nodes together.
type TopologyType string

const (
	TopologyMesh         TopologyType = "mesh"
	TopologyHierarchical TopologyType = "hierarchical"
	TopologyCentralized  TopologyType = "centralized"
	TopologyHybrid       TopologyType = "hybrid"
)

// NodeRole is a node's position within the topology graph.
type NodeRole string

const (
	RoleQueen       NodeRole = "queen"
	RoleWorker      NodeRole = "worker"
	RoleCoordinator NodeRole = "coordinator"
	RolePeer        NodeRole = "peer"
)

// TopologyNode mirrors one registered agent inside the topology graph.
type TopologyNode struct {
	ID          string
	AgentID     AgentID
	Role        NodeRole
	Status      AgentStatus
	Connections []string
	Metadata    map[string]string
}

// TopologyEdge is a directed (optionally symmetric) connection between two
// nodes, weighted for path-finding.
type TopologyEdge struct {
	From          string
	To            string
	Weight        float64
	Bidirectional bool
	LatencyMs     *float64
}

// Partition is a subset of the topology with its own leader and replicas.
type Partition struct {
	ID       string
	Leader   string
	Replicas []string
}

// TopologyState is the full graph snapshot returned by GetState.
type TopologyState struct {
	Type       TopologyType
	Nodes      map[string]*TopologyNode
	Edges      []TopologyEdge
	Partitions map[string]*Partition
	Leader     string
}
