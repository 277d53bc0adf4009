package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent pool metrics
	AgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmcore_agents_total",
			Help: "Total number of agents by type and status",
		},
		[]string{"type", "status"},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmcore_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmcore_tasks_completed_total",
			Help: "Total number of tasks completed",
		},
	)

	TasksFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmcore_tasks_failed_total",
			Help: "Total number of tasks failed",
		},
	)

	// Topology metrics
	TopologyNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmcore_topology_nodes_total",
			Help: "Total number of nodes registered in the topology",
		},
	)

	TopologyRebalancesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmcore_topology_rebalances_total",
			Help: "Total number of topology rebalance cycles completed",
		},
	)

	// Consensus metrics
	ConsensusRoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmcore_consensus_rounds_total",
			Help: "Total number of consensus rounds by algorithm and outcome",
		},
		[]string{"algorithm", "outcome"},
	)

	ConsensusLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarmcore_consensus_latency_seconds",
			Help:    "Time taken to resolve a consensus proposal in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm"},
	)

	// Message bus metrics
	BusQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmcore_bus_queue_depth",
			Help: "Current message bus queue depth by priority lane",
		},
		[]string{"priority"},
	)

	BusMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmcore_bus_messages_total",
			Help: "Total number of messages processed by the bus by outcome",
		},
		[]string{"outcome"},
	)

	BusQueueFullTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmcore_bus_queue_full_total",
			Help: "Total number of sends rejected due to a full queue",
		},
	)

	// Coordinator metrics
	CoordinationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarmcore_coordination_latency_seconds",
			Help:    "Time taken to assign a submitted task to an agent, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TaskAssignDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarmcore_task_assign_duration_seconds",
			Help:    "Time taken to score and assign a task in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Federation metrics
	FederatedSwarmsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmcore_federated_swarms_total",
			Help: "Total number of registered federated swarms by status",
		},
		[]string{"status"},
	)

	EphemeralAgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmcore_ephemeral_agents_total",
			Help: "Total number of ephemeral agents by status",
		},
		[]string{"status"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarmcore_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmcore_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)
)

func init() {
	prometheus.MustRegister(AgentsTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(TopologyNodesTotal)
	prometheus.MustRegister(TopologyRebalancesTotal)
	prometheus.MustRegister(ConsensusRoundsTotal)
	prometheus.MustRegister(ConsensusLatency)
	prometheus.MustRegister(BusQueueDepth)
	prometheus.MustRegister(BusMessagesTotal)
	prometheus.MustRegister(BusQueueFullTotal)
	prometheus.MustRegister(CoordinationLatency)
	prometheus.MustRegister(TaskAssignDuration)
	prometheus.MustRegister(FederatedSwarmsTotal)
	prometheus.MustRegister(EphemeralAgentsTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
