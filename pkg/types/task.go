package types

import "time"

// TaskType enumerates the kind of work a task represents.
type TaskType string

const (
	TaskResearch      TaskType = "research"
	TaskAnalysis      TaskType = "analysis"
	TaskCoding        TaskType = "coding"
	TaskTesting       TaskType = "testing"
	TaskReview        TaskType = "review"
	TaskDocumentation TaskType = "documentation"
	TaskCoordination  TaskType = "coordination"
	TaskConsensus     TaskType = "consensus"
	TaskCustom        TaskType = "custom"
)

// TaskPriority controls both scheduling order and the message-bus priority
// a task's control messages are sent at.
type TaskPriority string

const (
	PriorityCritical   TaskPriority = "critical"
	PriorityHigh       TaskPriority = "high"
	PriorityNormal     TaskPriority = "normal"
	PriorityLow        TaskPriority = "low"
	PriorityBackground TaskPriority = "background"
)

// TaskStatus is the task lifecycle state. Transitions only move forward
// along the task state machine; terminal states are absorbing.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "created"
	TaskQueued    TaskStatus = "queued"
	TaskAssigned  TaskStatus = "assigned"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
	TaskTimeout   TaskStatus = "timeout"
)

// Terminal reports whether status cannot transition further.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled, TaskTimeout:
		return true
	default:
		return false
	}
}

// Task is a unit of work submitted to the coordinator.
type Task struct {
	ID           TaskID
	Type         TaskType
	Name         string
	Description  string
	Priority     TaskPriority
	Status       TaskStatus
	Domain       Domain // empty when routed through the general scheduler
	AssignedTo   *AgentID
	Dependencies []TaskID
	Input        any
	Output       any

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	TimeoutMs  int64
	Retries    int
	MaxRetries int

	Metadata map[string]any
}

// Domain group names used by the fixed 15-agent hierarchy.
type Domain string

const (
	DomainQueen       Domain = "queen"
	DomainSecurity    Domain = "security"
	DomainCore        Domain = "core"
	DomainIntegration Domain = "integration"
	DomainSupport     Domain = "support"
)
