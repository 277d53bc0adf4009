package federation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cuemby/swarmcore/pkg/config"
	"github.com/cuemby/swarmcore/pkg/events"
	"github.com/cuemby/swarmcore/pkg/log"
	"github.com/cuemby/swarmcore/pkg/metrics"
	"github.com/cuemby/swarmcore/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MessageHandler processes a cross-swarm message addressed to one swarm.
type MessageHandler func(from string, payload any)

// SwarmDefinition is the input to RegisterSwarm: a SwarmRegistration minus
// its hub-assigned id and runtime fields.
type SwarmDefinition struct {
	Name         string
	Endpoint     string
	Capabilities []string
	MaxAgents    int
}

// SpawnOptions is the input to SpawnEphemeralAgent. SwarmID is optional; when
// empty the hub selects the best-scoring eligible swarm. WaitForCompletion
// blocks the spawn call until the agent reaches a terminal state or its TTL
// budget runs out.
type SpawnOptions struct {
	SwarmID           string
	Type              types.AgentType
	Task              string
	TTL               time.Duration
	Capabilities      []string
	WaitForCompletion bool
}

// Hub is the Federation Hub: it owns swarm registrations and ephemeral
// agents independently of any swarm's internal coordinator state.
type Hub struct {
	cfg    config.Federation
	broker *events.Broker
	log    zerolog.Logger

	mu             sync.RWMutex
	swarms         map[string]*types.SwarmRegistration
	agents         map[string]*types.EphemeralAgent
	agentsBySwarm  map[string]map[string]struct{}
	agentsByStatus map[types.EphemeralStatus]map[string]struct{}
	handlers       map[string]MessageHandler
	timers         map[string]*time.Timer
	done           map[string]chan struct{}

	proposals map[string]*fedProposalEntry

	stopCh chan struct{}
}

// New constructs a Hub from cfg. broker receives federation.* events.
func New(cfg config.Federation, broker *events.Broker) *Hub {
	return &Hub{
		cfg:            cfg,
		broker:         broker,
		log:            log.WithComponent("federation"),
		swarms:         make(map[string]*types.SwarmRegistration),
		agents:         make(map[string]*types.EphemeralAgent),
		agentsBySwarm:  make(map[string]map[string]struct{}),
		agentsByStatus: make(map[types.EphemeralStatus]map[string]struct{}),
		handlers:       make(map[string]MessageHandler),
		timers:         make(map[string]*time.Timer),
		done:           make(map[string]chan struct{}),
		proposals:      make(map[string]*fedProposalEntry),
		stopCh:         make(chan struct{}),
	}
}

// Start begins the swarm-staleness sync loop and, when configured, the
// ephemeral-agent auto-cleanup loop.
func (h *Hub) Start() {
	syncInterval := time.Duration(h.cfg.SyncIntervalMs) * time.Millisecond
	if syncInterval <= 0 {
		syncInterval = 10 * time.Second
	}
	go h.syncLoop(syncInterval)

	if !h.cfg.AutoCleanup {
		return
	}
	interval := time.Duration(h.cfg.CleanupIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go h.cleanupLoop(interval)
}

// Stop halts the hub's background loops.
func (h *Hub) Stop() {
	close(h.stopCh)
}

func (h *Hub) syncLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepStaleSwarms(3 * interval)
		case <-h.stopCh:
			return
		}
	}
}

// sweepStaleSwarms steps swarms whose heartbeat is older than threshold one
// notch down the active -> degraded -> inactive ladder. The next heartbeat
// restores a degraded swarm; an inactive one must re-register.
func (h *Hub) sweepStaleSwarms(threshold time.Duration) {
	now := time.Now()
	h.mu.Lock()
	changed := false
	for _, reg := range h.swarms {
		if now.Sub(reg.LastHeartbeat) <= threshold {
			continue
		}
		switch reg.Status {
		case types.SwarmActive:
			reg.Status = types.SwarmDegraded
			changed = true
		case types.SwarmDegraded:
			reg.Status = types.SwarmInactive
			changed = true
		}
	}
	h.mu.Unlock()

	if changed {
		h.syncSwarmGauge()
	}
}

func (h *Hub) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepExpired()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Hub) sweepExpired() {
	now := time.Now()
	h.mu.RLock()
	var expired []string
	for id := range h.agentsByStatus[types.EphemeralActive] {
		if a, ok := h.agents[id]; ok && now.After(a.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range expired {
		_ = h.TerminateAgent(id, "ttl expired")
	}
}

// RegisterSwarm admits a remote swarm into the federation registry,
// returning its hub-assigned id.
func (h *Hub) RegisterSwarm(def SwarmDefinition) (string, error) {
	if def.MaxAgents <= 0 {
		return "", fmt.Errorf("federation: maxAgents must be positive")
	}
	id := uuid.NewString()
	reg := &types.SwarmRegistration{
		SwarmID:       id,
		Name:          def.Name,
		Endpoint:      def.Endpoint,
		Capabilities:  def.Capabilities,
		MaxAgents:     def.MaxAgents,
		CurrentAgents: 0,
		Status:        types.SwarmActive,
		RegisteredAt:  time.Now(),
		LastHeartbeat: time.Now(),
	}

	h.mu.Lock()
	h.swarms[id] = reg
	h.mu.Unlock()

	h.publish(types.EventFederationSwarmJoined, reg)
	h.syncSwarmGauge()
	return id, nil
}

// UnregisterSwarm removes swarmID and force-terminates every ephemeral
// agent it hosted. Unknown ids are a no-op.
func (h *Hub) UnregisterSwarm(swarmID string) {
	h.mu.Lock()
	_, ok := h.swarms[swarmID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.swarms, swarmID)
	hosted := make([]string, 0, len(h.agentsBySwarm[swarmID]))
	for id := range h.agentsBySwarm[swarmID] {
		hosted = append(hosted, id)
	}
	h.mu.Unlock()

	for _, id := range hosted {
		_ = h.TerminateAgent(id, "host swarm unregistered")
	}
	h.publish(types.EventFederationSwarmLeft, swarmID)
	h.syncSwarmGauge()
}

// Heartbeat refreshes swarmID's LastHeartbeat and optional reported agent
// count, recovering it from degraded to active. Unknown ids are a no-op.
func (h *Hub) Heartbeat(swarmID string, currentAgents *int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	reg, ok := h.swarms[swarmID]
	if !ok {
		return
	}
	reg.LastHeartbeat = time.Now()
	if currentAgents != nil {
		reg.CurrentAgents = *currentAgents
	}
	if reg.Status == types.SwarmDegraded {
		reg.Status = types.SwarmActive
	}
}

// MarkDegraded flags swarmID as degraded, excluding it from swarm selection
// until its next heartbeat. Unknown ids are a no-op.
func (h *Hub) MarkDegraded(swarmID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if reg, ok := h.swarms[swarmID]; ok {
		reg.Status = types.SwarmDegraded
	}
}

// GetSwarm returns a copy of swarmID's registration, or false if unknown.
func (h *Hub) GetSwarm(swarmID string) (*types.SwarmRegistration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	reg, ok := h.swarms[swarmID]
	if !ok {
		return nil, false
	}
	cp := *reg
	return &cp, true
}

// ListSwarms returns every registered swarm.
func (h *Hub) ListSwarms() []*types.SwarmRegistration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*types.SwarmRegistration, 0, len(h.swarms))
	for _, reg := range h.swarms {
		cp := *reg
		out = append(out, &cp)
	}
	return out
}

func covers(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// selectSwarmLocked scores active, capable, non-full swarms by free
// capacity minus heartbeat staleness. Caller holds h.mu.
func (h *Hub) selectSwarmLocked(capabilities []string) (string, bool) {
	var best string
	var bestScore float64
	found := false
	now := time.Now()

	for id, reg := range h.swarms {
		if reg.Status != types.SwarmActive {
			continue
		}
		if reg.CurrentAgents >= reg.MaxAgents {
			continue
		}
		if !covers(reg.Capabilities, capabilities) {
			continue
		}
		freeSlots := reg.MaxAgents - reg.CurrentAgents
		staleness := now.Sub(reg.LastHeartbeat).Seconds() / 10
		score := float64(freeSlots)*5 - staleness
		if !found || score > bestScore {
			best, bestScore, found = id, score, true
		}
	}
	return best, found
}

// SpawnEphemeralAgent creates a TTL-bound agent inside opts.SwarmID, or the
// best-scoring eligible swarm when unspecified.
func (h *Hub) SpawnEphemeralAgent(opts SpawnOptions) (*types.EphemeralAgent, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Duration(h.cfg.DefaultTTLMs) * time.Millisecond
	}

	h.mu.Lock()
	if h.cfg.MaxEphemeralAgents > 0 && h.activeCountLocked() >= h.cfg.MaxEphemeralAgents {
		h.mu.Unlock()
		return nil, ErrCapacityExceeded
	}

	swarmID := opts.SwarmID
	if swarmID == "" {
		id, ok := h.selectSwarmLocked(opts.Capabilities)
		if !ok {
			h.mu.Unlock()
			return nil, ErrNoEligibleSwarm
		}
		swarmID = id
	} else if _, ok := h.swarms[swarmID]; !ok {
		h.mu.Unlock()
		return nil, ErrUnknownSwarm
	}

	now := time.Now()
	agent := &types.EphemeralAgent{
		ID:        uuid.NewString(),
		SwarmID:   swarmID,
		Type:      opts.Type,
		Task:      opts.Task,
		Status:    types.EphemeralSpawning,
		TTL:       ttl,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	h.agents[agent.ID] = agent
	h.indexAddLocked(agent)
	h.done[agent.ID] = make(chan struct{})
	if reg, ok := h.swarms[swarmID]; ok {
		reg.CurrentAgents++
	}
	h.mu.Unlock()

	h.publish(types.EventFederationAgentSpawned, agent)
	h.syncAgentGauge()

	time.AfterFunc(50*time.Millisecond, func() { h.activate(agent.ID) })
	h.mu.Lock()
	h.timers[agent.ID] = time.AfterFunc(ttl, func() { _ = h.TerminateAgent(agent.ID, "ttl expired") })
	h.mu.Unlock()

	if opts.WaitForCompletion {
		return h.AwaitAgent(agent.ID, ttl+time.Second)
	}

	cp := *agent
	return &cp, nil
}

// AwaitAgent blocks until agentID reaches a terminal state or timeout
// elapses, returning its final snapshot.
func (h *Hub) AwaitAgent(agentID string, timeout time.Duration) (*types.EphemeralAgent, error) {
	h.mu.RLock()
	ch, ok := h.done[agentID]
	h.mu.RUnlock()
	if !ok {
		a, found := h.GetAgent(agentID)
		if !found {
			return nil, ErrUnknownAgent
		}
		return a, nil
	}

	select {
	case <-ch:
	case <-time.After(timeout):
	}
	a, found := h.GetAgent(agentID)
	if !found {
		return nil, ErrUnknownAgent
	}
	return a, nil
}

func (h *Hub) activeCountLocked() int {
	n := 0
	for status, ids := range h.agentsByStatus {
		if status == types.EphemeralTerminated {
			continue
		}
		n += len(ids)
	}
	return n
}

func (h *Hub) activate(agentID string) {
	h.mu.Lock()
	agent, ok := h.agents[agentID]
	if !ok || agent.Status != types.EphemeralSpawning {
		h.mu.Unlock()
		return
	}
	h.indexRemoveLocked(agent)
	agent.Status = types.EphemeralActive
	h.indexAddLocked(agent)
	h.mu.Unlock()
	h.syncAgentGauge()
}

// CompleteAgent transitions agentID through completing to terminated,
// recording result. Fails if the agent is unknown or already terminated.
func (h *Hub) CompleteAgent(agentID string, result any) error {
	h.mu.Lock()
	agent, ok := h.agents[agentID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownAgent
	}
	if agent.Status == types.EphemeralTerminated {
		h.mu.Unlock()
		return ErrIllegalTransition
	}
	h.indexRemoveLocked(agent)
	agent.Status = types.EphemeralCompleting
	agent.Result = result
	h.indexAddLocked(agent)
	h.mu.Unlock()
	h.syncAgentGauge()

	time.AfterFunc(10*time.Millisecond, func() { h.finalize(agentID) })
	return nil
}

func (h *Hub) finalize(agentID string) {
	h.mu.Lock()
	agent, ok := h.agents[agentID]
	if !ok || agent.Status == types.EphemeralTerminated {
		h.mu.Unlock()
		return
	}
	h.indexRemoveLocked(agent)
	agent.Status = types.EphemeralTerminated
	agent.CompletedAt = time.Now()
	h.indexAddLocked(agent)
	if reg, found := h.swarms[agent.SwarmID]; found && reg.CurrentAgents > 0 {
		reg.CurrentAgents--
	}
	if t, found := h.timers[agentID]; found {
		t.Stop()
		delete(h.timers, agentID)
	}
	h.closeDoneLocked(agentID)
	h.mu.Unlock()

	h.publish(types.EventFederationAgentCompleted, agent)
	h.syncAgentGauge()
}

// closeDoneLocked wakes AwaitAgent callers exactly once. Caller holds h.mu.
func (h *Hub) closeDoneLocked(agentID string) {
	if ch, ok := h.done[agentID]; ok {
		close(ch)
		delete(h.done, agentID)
	}
}

// TerminateAgent forces an immediate transition to terminated from any
// non-terminal state, recording errMsg.
func (h *Hub) TerminateAgent(agentID string, errMsg string) error {
	h.mu.Lock()
	agent, ok := h.agents[agentID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownAgent
	}
	if agent.Status == types.EphemeralTerminated {
		h.mu.Unlock()
		return nil
	}
	h.indexRemoveLocked(agent)
	agent.Status = types.EphemeralTerminated
	agent.CompletedAt = time.Now()
	agent.Error = errMsg
	h.indexAddLocked(agent)
	if reg, found := h.swarms[agent.SwarmID]; found && reg.CurrentAgents > 0 {
		reg.CurrentAgents--
	}
	if t, found := h.timers[agentID]; found {
		t.Stop()
		delete(h.timers, agentID)
	}
	h.closeDoneLocked(agentID)
	h.mu.Unlock()

	h.publish(types.EventFederationAgentCompleted, agent)
	h.syncAgentGauge()
	return nil
}

// GetAgent returns a copy of agentID's current state, or false if unknown.
func (h *Hub) GetAgent(agentID string) (*types.EphemeralAgent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	a, ok := h.agents[agentID]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// ListAgentsBySwarm returns every ephemeral agent hosted by swarmID, O(k) in
// that swarm's agent count via the secondary index.
func (h *Hub) ListAgentsBySwarm(swarmID string) []*types.EphemeralAgent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := h.agentsBySwarm[swarmID]
	out := make([]*types.EphemeralAgent, 0, len(ids))
	for id := range ids {
		cp := *h.agents[id]
		out = append(out, &cp)
	}
	return out
}

// ListAgentsByStatus returns every ephemeral agent in status, O(k) via the
// secondary index.
func (h *Hub) ListAgentsByStatus(status types.EphemeralStatus) []*types.EphemeralAgent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := h.agentsByStatus[status]
	out := make([]*types.EphemeralAgent, 0, len(ids))
	for id := range ids {
		cp := *h.agents[id]
		out = append(out, &cp)
	}
	return out
}

func (h *Hub) indexAddLocked(a *types.EphemeralAgent) {
	if h.agentsBySwarm[a.SwarmID] == nil {
		h.agentsBySwarm[a.SwarmID] = make(map[string]struct{})
	}
	h.agentsBySwarm[a.SwarmID][a.ID] = struct{}{}
	if h.agentsByStatus[a.Status] == nil {
		h.agentsByStatus[a.Status] = make(map[string]struct{})
	}
	h.agentsByStatus[a.Status][a.ID] = struct{}{}
}

func (h *Hub) indexRemoveLocked(a *types.EphemeralAgent) {
	delete(h.agentsBySwarm[a.SwarmID], a.ID)
	delete(h.agentsByStatus[a.Status], a.ID)
}

// --- Cross-swarm messaging ---

// Subscribe registers the sole message handler for swarmID, replacing any
// existing one.
func (h *Hub) Subscribe(swarmID string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[swarmID] = handler
}

// Unsubscribe removes swarmID's handler.
func (h *Hub) Unsubscribe(swarmID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, swarmID)
}

// SendMessage routes payload from one swarm to another. Unknown recipients
// return ErrUnknownSwarm; a recipient with no handler is a silent no-op.
func (h *Hub) SendMessage(from, to string, payload any) error {
	h.mu.RLock()
	_, known := h.swarms[to]
	handler, subscribed := h.handlers[to]
	h.mu.RUnlock()

	if !known {
		return ErrUnknownSwarm
	}
	if subscribed {
		handler(from, payload)
	}
	return nil
}

// Broadcast fans payload out to every subscribed swarm other than from.
func (h *Hub) Broadcast(from string, payload any) {
	h.mu.RLock()
	recipients := make([]string, 0, len(h.handlers))
	for id := range h.handlers {
		if id != from {
			recipients = append(recipients, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range recipients {
		_ = h.SendMessage(from, id, payload)
	}
}

func (h *Hub) publish(t types.EventType, data any) {
	if h.broker == nil {
		return
	}
	h.broker.Publish(&types.Event{Type: t, Source: "federation", Data: data})
}

func (h *Hub) syncSwarmGauge() {
	h.mu.RLock()
	counts := make(map[types.SwarmStatus]int)
	for _, reg := range h.swarms {
		counts[reg.Status]++
	}
	h.mu.RUnlock()
	for _, status := range []types.SwarmStatus{types.SwarmActive, types.SwarmDegraded, types.SwarmInactive} {
		metrics.FederatedSwarmsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (h *Hub) syncAgentGauge() {
	h.mu.RLock()
	counts := make(map[types.EphemeralStatus]int)
	for status, ids := range h.agentsByStatus {
		counts[status] = len(ids)
	}
	h.mu.RUnlock()
	for _, status := range []types.EphemeralStatus{types.EphemeralSpawning, types.EphemeralActive, types.EphemeralCompleting, types.EphemeralTerminated} {
		metrics.EphemeralAgentsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// --- Federation-wide consensus (voters are swarms) ---

type fedProposalEntry struct {
	proposal *types.Proposal
	timer    *time.Timer
	closed   chan struct{}
	result   types.Result
	resolved bool
}

// Propose creates a federation-wide proposal voted on by registered swarms.
// Returns an error when federation.enableConsensus is off.
func (h *Hub) Propose(value any, proposerSwarmID string) (*types.Proposal, error) {
	if !h.cfg.EnableConsensus {
		return nil, fmt.Errorf("federation: consensus disabled by configuration")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	timeout := time.Duration(h.cfg.CommunicationTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	now := time.Now()
	proposal := &types.Proposal{
		ID:         uuid.NewString(),
		ProposerID: proposerSwarmID,
		Value:      value,
		Timestamp:  now,
		DeadlineAt: now.Add(timeout),
		Votes:      make(map[string]types.Vote),
		Status:     types.ProposalPending,
	}
	entry := &fedProposalEntry{proposal: proposal, closed: make(chan struct{})}
	h.proposals[proposal.ID] = entry
	entry.timer = time.AfterFunc(timeout, func() { h.expire(proposal.ID) })

	cp := *proposal
	return &cp, nil
}

// Vote records swarmID's ballot on proposalID and re-evaluates quorum:
// accepted at approvals >= ceil(activeSwarms*quorum), rejected once
// rejections exceed activeSwarms-quorumThreshold, else still pending.
func (h *Hub) Vote(proposalID string, vote types.Vote) error {
	h.mu.Lock()
	entry, ok := h.proposals[proposalID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownProposal
	}
	if entry.resolved {
		h.mu.Unlock()
		return nil
	}
	if vote.Timestamp.IsZero() {
		vote.Timestamp = time.Now()
	}
	entry.proposal.Votes[vote.VoterID] = vote

	active := 0
	for _, reg := range h.swarms {
		if reg.Status == types.SwarmActive {
			active++
		}
	}
	approvals, rejections := 0, 0
	for _, v := range entry.proposal.Votes {
		if v.Approve {
			approvals++
		} else {
			rejections++
		}
	}
	quorumThreshold := int(math.Ceil(float64(active) * h.cfg.ConsensusQuorum))

	resolve, approved := false, false
	switch {
	case active > 0 && approvals >= quorumThreshold:
		resolve, approved = true, true
	case active > 0 && rejections > active-quorumThreshold:
		resolve, approved = true, false
	case len(entry.proposal.Votes) >= active && active > 0:
		resolve, approved = true, approvals >= quorumThreshold
	}
	h.mu.Unlock()

	if resolve {
		h.resolve(entry, approved, false)
	}
	return nil
}

func (h *Hub) expire(proposalID string) {
	h.mu.Lock()
	entry, ok := h.proposals[proposalID]
	if !ok || entry.resolved {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.resolve(entry, false, true)
}

func (h *Hub) resolve(entry *fedProposalEntry, approved, expired bool) {
	h.mu.Lock()
	if entry.resolved {
		h.mu.Unlock()
		return
	}
	entry.resolved = true
	entry.timer.Stop()

	active := 0
	for _, reg := range h.swarms {
		if reg.Status == types.SwarmActive {
			active++
		}
	}
	approvals := 0
	for _, v := range entry.proposal.Votes {
		if v.Approve {
			approvals++
		}
	}

	status := types.ProposalRejected
	var finalValue any = noConsensus
	switch {
	case expired:
		status = types.ProposalExpired
	case approved:
		status = types.ProposalAccepted
		finalValue = entry.proposal.Value
	}
	entry.proposal.Status = status

	participationRate, approvalRate := 0.0, 0.0
	if active > 0 {
		participationRate = float64(len(entry.proposal.Votes)) / float64(active)
		approvalRate = float64(approvals) / float64(active)
	}

	entry.result = types.Result{
		ProposalID:        entry.proposal.ID,
		Approved:          status == types.ProposalAccepted,
		ApprovalRate:      approvalRate,
		ParticipationRate: participationRate,
		FinalValue:        finalValue,
		Rounds:            1,
		DurationMs:        time.Since(entry.proposal.Timestamp).Milliseconds(),
	}
	h.mu.Unlock()

	close(entry.closed)
}

// AwaitConsensus blocks until proposalID resolves and returns its Result.
func (h *Hub) AwaitConsensus(proposalID string) (types.Result, error) {
	h.mu.Lock()
	entry, ok := h.proposals[proposalID]
	h.mu.Unlock()
	if !ok {
		return types.Result{}, ErrUnknownProposal
	}
	<-entry.closed

	h.mu.Lock()
	result := entry.result
	h.mu.Unlock()
	return result, nil
}

// GetProposal returns a copy of proposalID's current state.
func (h *Hub) GetProposal(proposalID string) (*types.Proposal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.proposals[proposalID]
	if !ok {
		return nil, false
	}
	cp := *entry.proposal
	return &cp, true
}

// noConsensusValue is the sentinel FinalValue for a non-accepted federation
// proposal, mirroring the consensus engine's sentinel.
type noConsensusValue struct{}

var noConsensus = noConsensusValue{}

// NoConsensusValue reports whether v is the sentinel returned in
// Result.FinalValue for a non-accepted federation proposal.
func NoConsensusValue(v any) bool {
	_, ok := v.(noConsensusValue)
	return ok
}
