// Package topology maintains the swarm's connectivity graph: which agents
// are wired to which, who the leader is, and how partitions are balanced
// across mesh, hierarchical, centralized, and hybrid layouts.
package topology
