// Package types defines the shared data model for swarmcore: agents, tasks,
// topology, messages, consensus artefacts, and federation entities.
package types
