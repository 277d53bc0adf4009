// Package consensus resolves proposals among a set of voting agents using a
// pluggable algorithm: raft (approval share above the threshold), byzantine (confidence-
// weighted supermajority), or gossip (epidemic round sampling). It borrows
// Raft's term/leader vocabulary without running a real Raft transport or
// durable log — see the project's DESIGN.md for why.
package consensus
