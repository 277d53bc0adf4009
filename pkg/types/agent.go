package types

import "time"

// AgentType enumerates the roles an agent may be registered as.
type AgentType string

const (
	AgentCoordinator AgentType = "coordinator"
	AgentResearcher  AgentType = "researcher"
	AgentCoder       AgentType = "coder"
	AgentAnalyst     AgentType = "analyst"
	AgentArchitect   AgentType = "architect"
	AgentTester      AgentType = "tester"
	AgentReviewer    AgentType = "reviewer"
	AgentOptimizer   AgentType = "optimizer"
	AgentDocumenter  AgentType = "documenter"
	AgentMonitor     AgentType = "monitor"
	AgentSpecialist  AgentType = "specialist"
	AgentQueen       AgentType = "queen"
	AgentWorker      AgentType = "worker"
)

// AgentStatus is the agent lifecycle state.
type AgentStatus string

const (
	AgentInitializing AgentStatus = "initializing"
	AgentIdle         AgentStatus = "idle"
	AgentBusy         AgentStatus = "busy"
	AgentPaused       AgentStatus = "paused"
	AgentError        AgentStatus = "error"
	AgentOffline      AgentStatus = "offline"
	AgentTerminating  AgentStatus = "terminating"
	AgentTerminated   AgentStatus = "terminated"
)

// Capabilities describes what an agent can do and how well it does it.
type Capabilities struct {
	Code          bool
	Review        bool
	Test          bool
	Documentation bool
	Research      bool
	Analysis      bool
	Coordination  bool

	Languages  []string
	Frameworks []string
	Domains    []string
	Tools      []string

	MaxConcurrency int
	MaxMemoryMB    int
	MaxTimeMs      int64

	// Reliability, Speed, and Quality are scores in [0,1] used by the
	// coordinator's scheduling algorithm.
	Reliability float64
	Speed       float64
	Quality     float64
}

// AgentMetrics tracks an agent's running performance counters.
type AgentMetrics struct {
	TasksCompleted int64
	TasksFailed    int64
	AvgExecutionMs float64
	LastActivity   time.Time
	Health         float64
}

// Agent is a registered, addressable worker within a swarm.
type Agent struct {
	ID            AgentID
	Name          string
	Type          AgentType
	Status        AgentStatus
	Capabilities  Capabilities
	Metrics       AgentMetrics
	Workload      float64
	Health        float64
	LastHeartbeat time.Time
	CurrentTask   *TaskID
	Connections   map[string]struct{}
	TopologyRole  string
}

// Busy reports whether the agent currently holds a task.
func (a *Agent) Busy() bool {
	return a.Status == AgentBusy
}
