// Package coordinator implements the swarm's aggregate root: it owns the
// agent, task, and topology maps exclusively, drives the scheduling
// algorithm that matches tasks to agents, fans events out to the shared
// broker, and exposes the metrics and performance-report surfaces other
// components sample. It composes the message bus, topology manager,
// consensus engine, and per-domain agent pools behind one contract; it
// never reaches into their internals, and they never reach into its maps.
package coordinator
