package federation

import "errors"

var (
	// ErrCapacityExceeded is returned by SpawnEphemeralAgent when the hub is
	// already at Federation.MaxEphemeralAgents.
	ErrCapacityExceeded = errors.New("federation: ephemeral agent capacity exceeded")

	// ErrUnknownSwarm is returned by operations addressed to a swarm id the
	// hub has no registration for.
	ErrUnknownSwarm = errors.New("federation: unknown swarm")

	// ErrUnknownAgent is returned by operations addressed to an ephemeral
	// agent id the hub has no record of.
	ErrUnknownAgent = errors.New("federation: unknown ephemeral agent")

	// ErrNoEligibleSwarm is returned by SpawnEphemeralAgent when no swarm is
	// specified and none of the registered swarms satisfy the requested
	// capabilities with room to spare.
	ErrNoEligibleSwarm = errors.New("federation: no eligible swarm for requested capabilities")

	// ErrIllegalTransition is returned by CompleteAgent when the ephemeral
	// agent is already terminated. TerminateAgent on a terminated agent is a
	// no-op.
	ErrIllegalTransition = errors.New("federation: illegal ephemeral agent transition")

	// ErrUnknownProposal is returned by Vote/AwaitConsensus for a proposal id
	// the hub has no record of.
	ErrUnknownProposal = errors.New("federation: unknown proposal")
)
