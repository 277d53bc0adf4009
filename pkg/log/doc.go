/*
Package log is swarmcore's thin layer over zerolog.

It exists for two reasons. First, every subsystem in the swarm logs under a
stable "component" field so one coordinator's interleaved output can be
split back into per-subsystem streams: the bus's retry chatter, the
consensus engine's proposal lifecycle, the pool's scale decisions and the
federation hub's swarm registry all share a process and a writer. Second,
coordination problems rarely live inside a single component. A task that
never completes involves a swarm, an agent and a task id at once, so the
package offers exactly those three context dimensions instead of a general
field bag.

# Root logger and configuration

The package holds one root logger that all child loggers derive from.
Before Init runs it writes console lines at debug and above to stderr; tests and
early-constructed components therefore log visibly without any setup.

	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: true, // one JSON object per line, for collectors
	})

Level parsing is deliberately forgiving. Logging verbosity is not worth
refusing to boot over, so an unrecognized level means info. Encoding is a
binary choice: JSON for machines, zerolog's console writer for humans.
There is no file rotation, shipping or sampling here; in the deployments
swarmcore targets, stdout is collected by whatever supervises the process.

# Component loggers

Each subsystem captures its child logger once, at construction:

	type Engine struct {
		log zerolog.Logger
		...
	}

	e := &Engine{log: log.WithComponent("consensus")}
	e.log.Debug().Str("proposal_id", p.ID).Msg("proposal registered")

Capturing at construction means a component's logger reflects the
configuration in force when it was built. Init replaces the root for
loggers derived afterwards; it does not retroactively re-encode loggers
already handed out. Call Init before building the coordinator.

# Coordination context

Scoped builds a logger from the swarm/agent/task triple, skipping empty
ids so absent context produces no blank fields:

	log.Scoped(swarmID, agentID, taskID).Debug().Msg("task assigned")
	log.Scoped(swarmID, "", "").Warn().Msg("leader election forced")

Use Scoped at the points where an operation crosses component boundaries
(assignment, completion, retry, cancellation); use the component logger
for a subsystem's internal affairs.

# What belongs where

Three observability surfaces coexist in swarmcore and overlap is a smell:

  - pkg/log: diagnostic narrative for a human reading one process's output.
  - pkg/events: typed facts other components and tests subscribe to.
  - pkg/metrics: aggregates a scraper samples.

If a subscriber might act on it, publish an event. If a dashboard might
graph it, record a metric. Log lines are for the person debugging, and
they are the only one of the three that may be freely reworded.
*/
package log
