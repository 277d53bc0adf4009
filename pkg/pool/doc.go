// Package pool manages a homogeneous set of agents: acquiring and releasing
// them for task assignment, auto-scaling membership to utilisation, and
// replacing agents that fail their health check.
package pool
