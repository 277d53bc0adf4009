package coordinator

import (
	"sort"
	"time"

	"github.com/cuemby/swarmcore/pkg/types"
)

// GetMetrics returns the coordinator's live snapshot: uptime, agent and task
// counts, and the EWMA-smoothed rates sampled from the bus and consensus
// engine.
func (c *Coordinator) GetMetrics() types.SwarmMetrics {
	c.mu.RLock()
	active := 0
	completed := 0
	failed := 0
	for _, a := range c.agents {
		if a.Status != types.AgentOffline && a.Status != types.AgentTerminated {
			active++
		}
	}
	total := len(c.tasks)
	for _, t := range c.tasks {
		switch t.Status {
		case types.TaskCompleted:
			completed++
		case types.TaskFailed:
			failed++
		}
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	uptime := int64(0)
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt).Milliseconds()
	}

	busStats := c.Bus.Stats()

	return types.SwarmMetrics{
		UptimeMs:              uptime,
		ActiveAgents:          active,
		TotalTasks:            total,
		CompletedTasks:        completed,
		FailedTasks:           failed,
		AvgTaskDurationMs:     c.avgTaskDuration.Value(),
		MessagesPerSecond:     busStats.ThroughputPerSec,
		ConsensusSuccessRate:  c.Engine.SuccessRate(),
		CoordinationLatencyMs: c.latestLatency(),
	}
}

func (c *Coordinator) latestLatency() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.coordLatency) == 0 {
		return 0
	}
	return c.coordLatency[len(c.coordLatency)-1].Value
}

// GetPerformanceReport extends GetMetrics with p50/p99 coordination latency
// computed over the trailing 1-minute window of the ring buffer.
func (c *Coordinator) GetPerformanceReport() types.PerformanceReport {
	base := c.GetMetrics()

	c.mu.RLock()
	cutoff := time.Now().Add(-1 * time.Minute)
	samples := make([]float64, 0, len(c.coordLatency))
	for _, ts := range c.coordLatency {
		if ts.At.After(cutoff) {
			samples = append(samples, ts.Value)
		}
	}
	c.mu.RUnlock()

	sort.Float64s(samples)
	return types.PerformanceReport{
		SwarmMetrics:             base,
		P50CoordinationLatencyMs: percentile(samples, 0.50),
		P99CoordinationLatencyMs: percentile(samples, 0.99),
		WindowSeconds:            60,
		SampleCount:              len(samples),
	}
}

// percentile returns the p-th percentile of sorted, or 0 when empty. p is in
// [0,1].
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// ProposeConsensus submits value for swarm-wide agreement, blocking until
// the configured algorithm resolves it.
func (c *Coordinator) ProposeConsensus(value any) (types.Result, error) {
	proposal, err := c.Engine.Propose(value, selfID)
	if err != nil {
		return types.Result{}, err
	}
	return c.Engine.AwaitConsensus(proposal.ID)
}

// CastVote records voterID's ballot on proposalID.
func (c *Coordinator) CastVote(proposalID string, vote types.Vote) error {
	return c.Engine.Vote(proposalID, vote)
}
