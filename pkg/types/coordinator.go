package types

import "time"

// SwarmStatusState is the coordinator's own lifecycle state, distinct from
// SwarmStatus (which describes a federation member's observed health).
type SwarmStatusState string

const (
	SwarmInitializing SwarmStatusState = "initializing"
	SwarmRunning      SwarmStatusState = "running"
	SwarmPausedState  SwarmStatusState = "paused"
	SwarmStopped      SwarmStatusState = "stopped"
)

// AgentDefinition is the input to RegisterAgent: the caller-supplied part of
// an Agent; the coordinator assigns the ID and the runtime fields.
type AgentDefinition struct {
	Name         string
	Type         AgentType
	Capabilities Capabilities
}

// TaskDefinition is the input to SubmitTask: a Task minus the fields the
// coordinator assigns (ID, Status, CreatedAt and the runtime fields).
type TaskDefinition struct {
	Type         TaskType
	Name         string
	Description  string
	Priority     TaskPriority
	Dependencies []TaskID
	Input        any
	TimeoutMs    int64
	MaxRetries   int
	Metadata     map[string]any
	Domain       Domain // optional; empty routes through the default scheduler
}

// ParallelExecutionResult is one task's outcome from ExecuteParallel,
// returned in the same order as the submitted (task, domain) pairs.
type ParallelExecutionResult struct {
	TaskID     TaskID
	Success    bool
	Output     any
	Error      string
	DurationMs int64
}

// SwarmMetrics is the live snapshot returned by GetMetrics.
type SwarmMetrics struct {
	UptimeMs              int64
	ActiveAgents          int
	TotalTasks            int
	CompletedTasks        int
	FailedTasks           int
	AvgTaskDurationMs     float64
	MessagesPerSecond     float64
	ConsensusSuccessRate  float64
	CoordinationLatencyMs float64
}

// PerformanceReport extends SwarmMetrics with percentile coordination
// latency over the trailing 1-minute window.
type PerformanceReport struct {
	SwarmMetrics
	P50CoordinationLatencyMs float64
	P99CoordinationLatencyMs float64
	WindowSeconds            int64
	SampleCount              int
}

// Timestamped pairs a value with when it was recorded, for the
// coordination-latency ring buffer.
type Timestamped struct {
	At    time.Time
	Value float64
}
