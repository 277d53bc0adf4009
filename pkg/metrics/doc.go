/*
Package metrics provides Prometheus metrics collection and exposition for a
swarm coordinator.

The metrics package defines and registers every swarmcore metric using the
Prometheus client library, providing observability into agent pool state,
topology, consensus rounds, bus throughput, coordination latency, and
federation. Metrics are exposed via an HTTP endpoint for scraping by
Prometheus servers, and a package-level HealthChecker backs /health, /ready
and /live.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Agents: counts by type/status               │          │
	│  │  Tasks: counts by status, completed/failed   │          │
	│  │  Topology: node count, rebalance cycles      │          │
	│  │  Consensus: rounds by outcome, latency        │          │
	│  │  Bus: queue depth by lane, throughput        │          │
	│  │  Coordinator: assignment latency              │          │
	│  │  Federation: swarms, ephemeral agents        │          │
	│  │  Reconciliation: cycle duration, count       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

A Collector (see collector.go) polls a StateProvider on an interval and
pushes gauge values for agents, tasks and topology; counters and histograms
are updated inline by the component that produced the observation (the bus
on send/delivery, the coordinator on assignment, the topology manager on
rebalance, the consensus engine on round resolution).

# Metrics Catalog

swarmcore_agents_total{type, status}:
  - Type: Gauge
  - Description: Agent count by AgentType and AgentStatus

swarmcore_tasks_total{status}:
  - Type: Gauge
  - Description: Task count by TaskStatus

swarmcore_tasks_completed_total / swarmcore_tasks_failed_total:
  - Type: Counter
  - Description: Cumulative terminal task outcomes

swarmcore_topology_nodes_total:
  - Type: Gauge
  - Description: Nodes currently registered in the topology graph

swarmcore_topology_rebalances_total:
  - Type: Counter
  - Description: Topology rebalance cycles completed

swarmcore_consensus_rounds_total{algorithm, outcome}:
  - Type: Counter
  - Description: Consensus rounds by algorithm and outcome (accepted/rejected/timeout)

swarmcore_consensus_latency_seconds{algorithm}:
  - Type: Histogram
  - Description: Time to resolve a consensus proposal

swarmcore_bus_queue_depth{priority}:
  - Type: Gauge
  - Description: Current queue depth per priority lane

swarmcore_bus_messages_total{outcome}:
  - Type: Counter
  - Description: Messages processed by outcome (delivered/dropped/expired/retry_exhausted)

swarmcore_bus_queue_full_total:
  - Type: Counter
  - Description: Sends rejected because the bus queue was at capacity

swarmcore_coordination_latency_seconds:
  - Type: Histogram
  - Description: Time from task submission to agent assignment

swarmcore_task_assign_duration_seconds:
  - Type: Histogram
  - Description: Time spent scoring candidates and assigning a task

swarmcore_federated_swarms_total{status}:
  - Type: Gauge
  - Description: Registered federated swarms by SwarmStatus

swarmcore_ephemeral_agents_total{status}:
  - Type: Gauge
  - Description: Ephemeral agents by EphemeralAgentStatus

swarmcore_reconciliation_duration_seconds / swarmcore_reconciliation_cycles_total:
  - Type: Histogram / Counter
  - Description: Duration and count of the coordinator's heartbeat-staleness
    reconciliation cycle (degrade agent health, requeue orphaned tasks)

# Usage

	import "github.com/cuemby/swarmcore/pkg/metrics"

	// Gauges
	metrics.AgentsTotal.WithLabelValues("worker", "idle").Set(5)

	// Counters
	metrics.TasksCompletedTotal.Inc()

	// Histograms, with the Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.CoordinationLatency)
	timer.ObserveDurationVec(metrics.ConsensusLatency, "raft")

	// Expose the endpoint
	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so metrics are available before main() runs.

Label Discipline:
  - Labels are bounded enums (agent type, task status, outcome) never raw
    IDs, keeping cardinality flat regardless of swarm size.

Timer Pattern:
  - NewTimer() at operation start, ObserveDuration/ObserveDurationVec at
    the end; same pattern for both simple and vector histograms.

# Health, Readiness and Liveness

HealthHandler, ReadyHandler and LivenessHandler (health.go) back /health,
/ready and /live. Readiness additionally requires the coordinator, bus and
topology components to have called RegisterComponent with healthy=true;
until then the process reports not_ready even though it is alive.
*/
package metrics
