package metrics

import (
	"time"

	"github.com/cuemby/swarmcore/pkg/types"
)

// StateProvider is the read-only view into coordinator state the collector
// polls on its own schedule. Coordinator implements it.
type StateProvider interface {
	GetAllAgents() []*types.Agent
	ListTasks() []*types.Task
	TopologyNodeCount() int
}

// Collector periodically samples coordinator state into the gauges a
// dashboard would scrape between heartbeats.
type Collector struct {
	provider StateProvider
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StateProvider) *Collector {
	return &Collector{
		provider: provider,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectAgentMetrics()
	c.collectTaskMetrics()
	c.collectTopologyMetrics()
}

func (c *Collector) collectAgentMetrics() {
	agents := c.provider.GetAllAgents()

	counts := make(map[string]map[string]int)
	for _, agent := range agents {
		typ := string(agent.Type)
		status := string(agent.Status)

		if counts[typ] == nil {
			counts[typ] = make(map[string]int)
		}
		counts[typ][status]++
	}

	for typ, statuses := range counts {
		for status, count := range statuses {
			AgentsTotal.WithLabelValues(typ, status).Set(float64(count))
		}
	}
}

func (c *Collector) collectTaskMetrics() {
	tasks := c.provider.ListTasks()

	counts := make(map[types.TaskStatus]int)
	for _, task := range tasks {
		counts[task.Status]++
	}

	for status, count := range counts {
		TasksTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectTopologyMetrics() {
	TopologyNodesTotal.Set(float64(c.provider.TopologyNodeCount()))
}
