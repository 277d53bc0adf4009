package consensus

import (
	"fmt"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnknownProposal is returned when a proposal id has no record.
var ErrUnknownProposal = fmt.Errorf("consensus: unknown proposal")

// noConsensusValue is the sentinel FinalValue for a non-accepted proposal.
type noConsensusValue struct{}

var noConsensus = noConsensusValue{}

type proposalEntry struct {
	proposal *types.Proposal
	rounds   int
	timer    *time.Timer
	closed   chan struct{}
	result   types.Result
	resolved bool
}

// Engine resolves proposals among the current membership using the
// configured algorithm.
type Engine struct {
	cfg    config.Consensus
	broker *events.Broker
	log    zerolog.Logger

	mu        sync.Mutex
	members   map[string]bool
	proposals map[string]*proposalEntry
	term      uint64

	successRate ewma.MovingAverage // 1.0 accepted, 0.0 not, smoothed
	outcomes    int                // resolved proposals fed into successRate
}

// NewEngine constructs an Engine for the given consensus configuration.
func NewEngine(cfg config.Consensus, broker *events.Broker) *Engine {
	return &Engine{
		cfg:         cfg,
		broker:      broker,
		log:         log.WithComponent("consensus"),
		members:     make(map[string]bool),
		proposals:   make(map[string]*proposalEntry),
		successRate: ewma.NewMovingAverage(19), // age≈19 ⇒ α≈0.1
	}
}

// AddNode admits id into the voting membership.
func (e *Engine) AddNode(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.members[id] = true
}

// RemoveNode removes id from the voting membership. Idempotent.
func (e *Engine) RemoveNode(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.members, id)
}

// SuccessRate returns the EWMA-smoothed proposal acceptance rate.
func (e *Engine) SuccessRate() float64 {
	return e.successRate.Value()
}

// SelectOptimalAlgorithm picks an algorithm from the topology shape and
// membership size: mesh→gossip, hierarchical→raft, centralized→raft,
// hybrid→byzantine when membership ≥ 7 else raft.
func SelectOptimalAlgorithm(topology types.TopologyType, membershipSize int) types.ConsensusAlgorithm {
	switch topology {
	case types.TopologyMesh:
		return types.AlgorithmGossip
	case types.TopologyHybrid:
		if membershipSize >= 7 {
			return types.AlgorithmByzantine
		}
		return types.AlgorithmRaft
	default:
		return types.AlgorithmRaft
	}
}

// Propose creates and registers a proposal, starting its resolution clock.
func (e *Engine) Propose(value any, proposerID string) (*types.Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	algorithm := types.ConsensusAlgorithm(e.cfg.Algorithm)
	if algorithm == "" {
		algorithm = types.AlgorithmRaft
	}
	now := time.Now()
	timeout := time.Duration(e.cfg.TimeoutMs) * time.Millisecond
	proposal := &types.Proposal{
		ID:         uuid.NewString(),
		ProposerID: proposerID,
		Value:      value,
		Term:       e.nextTerm(),
		Algorithm:  algorithm,
		Timestamp:  now,
		DeadlineAt: now.Add(timeout),
		Votes:      make(map[string]types.Vote),
		Status:     types.ProposalPending,
	}

	entry := &proposalEntry{
		proposal: proposal,
		closed:   make(chan struct{}),
	}
	e.proposals[proposal.ID] = entry
	entry.timer = time.AfterFunc(timeout, func() { e.expire(proposal.ID) })

	if e.broker != nil {
		e.broker.Publish(&types.Event{Type: types.EventConsensusProposed, Source: "consensus", Data: proposal})
	}

	cp := *proposal
	return &cp, nil
}

func (e *Engine) nextTerm() uint64 {
	e.term++
	return e.term
}

// Vote records voter's ballot on proposalID and re-evaluates quorum.
func (e *Engine) Vote(proposalID string, vote types.Vote) error {
	e.mu.Lock()
	entry, ok := e.proposals[proposalID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownProposal
	}
	if entry.resolved {
		e.mu.Unlock()
		return nil
	}
	if vote.Timestamp.IsZero() {
		vote.Timestamp = time.Now()
	}
	entry.proposal.Votes[vote.VoterID] = vote
	entry.rounds++

	resolve, approved := e.evaluateLocked(entry)
	e.mu.Unlock()

	if resolve {
		e.resolve(entry, approved, false)
	}
	return nil
}

// evaluateLocked decides whether entry's proposal can be resolved now given
// its algorithm, and if so whether it's accepted. Caller holds e.mu.
func (e *Engine) evaluateLocked(entry *proposalEntry) (resolve bool, approved bool) {
	total := len(e.members)
	if total == 0 {
		total = len(entry.proposal.Votes)
	}
	if total == 0 {
		return false, false
	}

	approvals := 0
	weightedApprovals := 0.0
	weightedTotal := 0.0
	for _, v := range entry.proposal.Votes {
		conf := v.Confidence
		if conf <= 0 {
			conf = 1
		}
		weightedTotal += conf
		if v.Approve {
			approvals++
			weightedApprovals += conf
		}
	}

	switch entry.proposal.Algorithm {
	case types.AlgorithmByzantine:
		if weightedTotal == 0 {
			return false, false
		}
		ratio := weightedApprovals / float64(total)
		if ratio > 2.0/3.0 {
			return true, true
		}
		if len(entry.proposal.Votes) >= total {
			return true, false
		}
		return false, false

	case types.AlgorithmGossip:
		rounds := entry.rounds
		if rounds > e.cfg.MaxRounds {
			rounds = e.cfg.MaxRounds
		}
		if rounds == 0 {
			return false, false
		}
		approvalRate := float64(approvals) / float64(len(entry.proposal.Votes))
		if approvalRate > e.cfg.Threshold && entry.rounds >= min(e.cfg.MaxRounds, total) {
			return true, true
		}
		if len(entry.proposal.Votes) >= total {
			return true, approvalRate > e.cfg.Threshold
		}
		return false, false

	default: // raft
		ratio := float64(approvals) / float64(total)
		if ratio > e.cfg.Threshold {
			return true, true
		}
		if len(entry.proposal.Votes) >= total {
			return true, false
		}
		return false, false
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (e *Engine) expire(proposalID string) {
	e.mu.Lock()
	entry, ok := e.proposals[proposalID]
	if !ok || entry.resolved {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.resolve(entry, false, true)
}

func (e *Engine) resolve(entry *proposalEntry, approved, expired bool) {
	e.mu.Lock()
	if entry.resolved {
		e.mu.Unlock()
		return
	}
	entry.resolved = true
	entry.timer.Stop()

	total := len(e.members)
	if total == 0 {
		total = len(entry.proposal.Votes)
	}
	approvals := 0
	for _, v := range entry.proposal.Votes {
		if v.Approve {
			approvals++
		}
	}

	status := types.ProposalRejected
	finalValue := any(noConsensus)
	switch {
	case expired:
		status = types.ProposalExpired
	case approved:
		status = types.ProposalAccepted
		finalValue = entry.proposal.Value
	}
	entry.proposal.Status = status

	participationRate := 0.0
	approvalRate := 0.0
	if total > 0 {
		participationRate = float64(len(entry.proposal.Votes)) / float64(total)
		approvalRate = float64(approvals) / float64(total)
	}

	result := types.Result{
		ProposalID:        entry.proposal.ID,
		Approved:          status == types.ProposalAccepted,
		ApprovalRate:      approvalRate,
		ParticipationRate: participationRate,
		FinalValue:        finalValue,
		Rounds:            maxInt(entry.rounds, 1),
		DurationMs:        time.Since(entry.proposal.Timestamp).Milliseconds(),
	}
	outcome := 0.0
	if result.Approved {
		outcome = 1
	}
	// The first outcome seeds the average so it is reported from the
	// first resolved proposal on.
	if e.outcomes == 0 {
		e.successRate.Set(outcome)
	} else {
		e.successRate.Add(outcome)
	}
	e.outcomes++
	e.mu.Unlock()

	metrics.ConsensusRoundsTotal.WithLabelValues(string(entry.proposal.Algorithm), string(status)).Inc()
	metrics.ConsensusLatency.WithLabelValues(string(entry.proposal.Algorithm)).Observe(time.Duration(result.DurationMs * int64(time.Millisecond)).Seconds())

	eventType := types.EventConsensusAchieved
	if !result.Approved {
		eventType = types.EventConsensusFailed
	}
	if e.broker != nil {
		e.broker.Publish(&types.Event{Type: eventType, Source: "consensus", Data: result})
	}

	e.mu.Lock()
	entry.result = result
	e.mu.Unlock()
	close(entry.closed)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AwaitConsensus blocks until proposalID resolves (accepted, rejected, or
// expired) and returns its Result.
func (e *Engine) AwaitConsensus(proposalID string) (types.Result, error) {
	e.mu.Lock()
	entry, ok := e.proposals[proposalID]
	e.mu.Unlock()
	if !ok {
		return types.Result{}, ErrUnknownProposal
	}

	<-entry.closed

	e.mu.Lock()
	result := entry.result
	e.mu.Unlock()
	return result, nil
}

// GetProposal returns a copy of proposalID's current state.
func (e *Engine) GetProposal(proposalID string) (*types.Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.proposals[proposalID]
	if !ok {
		return nil, false
	}
	cp := *entry.proposal
	return &cp, true
}

// GetActiveProposals returns every proposal still pending.
func (e *Engine) GetActiveProposals() []*types.Proposal {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*types.Proposal
	for _, entry := range e.proposals {
		if entry.proposal.Status == types.ProposalPending {
			cp := *entry.proposal
			out = append(out, &cp)
		}
	}
	return out
}

// NoConsensusValue reports whether v is the sentinel returned in
// Result.FinalValue for a non-accepted proposal.
func NoConsensusValue(v any) bool {
	_, ok := v.(noConsensusValue)
	return ok
}
