package types

import "time"

// ConsensusAlgorithm selects the voting strategy used to resolve a proposal.
type ConsensusAlgorithm string

const (
	AlgorithmRaft      ConsensusAlgorithm = "raft"
	AlgorithmByzantine ConsensusAlgorithm = "byzantine"
	AlgorithmGossip    ConsensusAlgorithm = "gossip"
)

// ProposalStatus is the lifecycle state of a consensus proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExpired  ProposalStatus = "expired"
)

// Vote is a single participant's response to a Proposal.
type Vote struct {
	VoterID    string
	Approve    bool
	Confidence float64
	Timestamp  time.Time
	Reason     string
}

// Proposal is a value put up for consensus among a set of voters.
type Proposal struct {
	ID         string
	ProposerID string
	Value      any
	Term       uint64
	Algorithm  ConsensusAlgorithm
	Timestamp  time.Time
	DeadlineAt time.Time
	Votes      map[string]Vote
	Status     ProposalStatus
}

// Result summarizes a resolved proposal's voting outcome.
type Result struct {
	ProposalID        string
	Approved          bool
	ApprovalRate      float64
	ParticipationRate float64
	FinalValue        any
	Rounds            int
	DurationMs        int64
}
