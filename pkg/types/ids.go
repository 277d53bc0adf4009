package types

import (
	"fmt"
	"time"
)

// SwarmID identifies one coordinator instance.
type SwarmID struct {
	ID        string
	Namespace string
	Version   string
	CreatedAt time.Time
}

func (s SwarmID) String() string {
	return fmt.Sprintf("%s/%s@%s", s.Namespace, s.ID, s.Version)
}

// AgentID identifies a registered agent within a swarm. Instance is a
// strictly increasing counter assigned by the coordinator.
type AgentID struct {
	ID       string
	SwarmID  string
	Type     AgentType
	Instance uint64
}

func (a AgentID) String() string {
	return fmt.Sprintf("%s:%s#%d", a.SwarmID, a.ID, a.Instance)
}

// TaskID identifies a task within a swarm. Sequence is a strictly increasing
// counter assigned by the coordinator at submission time.
type TaskID struct {
	ID       string
	SwarmID  string
	Sequence uint64
	Priority TaskPriority
}

func (t TaskID) String() string {
	return fmt.Sprintf("%s:%s#%d", t.SwarmID, t.ID, t.Sequence)
}
