// Package federation implements the Federation Hub: a registry of remote
// swarms, TTL-bound ephemeral agents spawned inside them, cross-swarm
// message routing, and federation-wide consensus whose voters are whole
// swarms rather than individual agents. It owns its registrations and
// ephemeral agents independently of any swarm's internal coordinator state.
package federation
