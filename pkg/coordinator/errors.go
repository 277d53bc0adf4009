package coordinator

import "errors"

// Sentinel errors surfaced to callers. Recoverable failures
// (handler panics, heartbeat gaps, bus TTL, expired proposals) are never
// returned here — they are mirrored as events and metrics instead.
var (
	// ErrCapacityExceeded is returned by RegisterAgent/SubmitTask when the
	// swarm is already at MaxAgents/MaxTasks.
	ErrCapacityExceeded = errors.New("coordinator: capacity exceeded")

	// ErrReinitialize is returned by Initialize when the coordinator is not
	// in the initializing or stopped state.
	ErrReinitialize = errors.New("coordinator: already initialized")

	// ErrConfigurationError is returned by Initialize when the supplied
	// configuration names an unsupported or reserved value, such as the
	// reserved "paxos" consensus algorithm.
	ErrConfigurationError = errors.New("coordinator: configuration error")

	// ErrHierarchyPopulated is returned by SpawnFullHierarchy when agents
	// already occupy the fixed 15-slot hierarchy.
	ErrHierarchyPopulated = errors.New("coordinator: hierarchy already spawned")

	// ErrUnknownTask is returned by queries for a task id that does not
	// exist (mutating operations instead treat this as a no-op).
	ErrUnknownTask = errors.New("coordinator: unknown task")
)
