package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"validation-service/internal/apperr"
	"validation-service/internal/bus"
	"validation-service/internal/models"
	"validation-service/internal/store"
)

// memStore is an in-memory Store honouring the same guarantees the real
// database provides: the (request, validator) unique constraint and the
// conditional pending->terminal update, both atomic under one mutex.
type memStore struct {
	mu          sync.Mutex
	players     map[string]*models.Player
	requests    map[string]*models.ConsensusRequest
	votes       map[string][]models.Vote
	voteKeys    map[string]struct{}
	adjustments []models.TrustAdjustment
	nextID      int

	failRecordVote bool
}

func newMemStore() *memStore {
	return &memStore{
		players:  make(map[string]*models.Player),
		requests: make(map[string]*models.ConsensusRequest),
		votes:    make(map[string][]models.Vote),
		voteKeys: make(map[string]struct{}),
	}
}

func (m *memStore) addPlayer(id string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[id] = &models.Player{ID: id, TrustScore: score, LastActiveAt: time.Now()}
}

func (m *memStore) CreateConsensusRequest(_ context.Context, req *models.ConsensusRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		m.nextID++
		req.ID = fmt.Sprintf("req-%d", m.nextID)
	}
	req.CreatedAt = time.Now()
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memStore) RecordVote(_ context.Context, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecordVote {
		return apperr.New(apperr.KindTransient, "store unavailable")
	}
	key := vote.RequestID + "/" + vote.ValidatorID
	if _, dup := m.voteKeys[key]; dup {
		return apperr.New(apperr.KindConflict, "duplicate vote")
	}
	m.voteKeys[key] = struct{}{}
	m.votes[vote.RequestID] = append(m.votes[vote.RequestID], *vote)
	return nil
}

func (m *memStore) GetConsensusWithVotes(_ context.Context, requestID string) (*models.ConsensusRequest, []models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, nil, apperr.Newf(apperr.KindNotFound, "unknown request %s", requestID)
	}
	cp := *req
	votes := append([]models.Vote(nil), m.votes[requestID]...)
	return &cp, votes, nil
}

func (m *memStore) ResolveConsensus(_ context.Context, requestID, outcome string, agree, disagree int, warnings string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "unknown request %s", requestID)
	}
	if req.Outcome != models.OutcomePending {
		return apperr.Newf(apperr.KindConflict, "request %s already resolved", requestID)
	}
	now := time.Now()
	req.Outcome = outcome
	req.AgreeCount = agree
	req.DisagreeCount = disagree
	req.Warnings = warnings
	req.ResolvedAt = &now
	return nil
}

func (m *memStore) GetPlayer(_ context.Context, playerID string) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "unknown player %s", playerID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SetPlayerTrust(_ context.Context, playerID string, score float64, stats *store.StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "unknown player %s", playerID)
	}
	p.TrustScore = score
	if stats != nil {
		p.SubmittedCount += stats.Submitted
		p.CorrectCount += stats.Correct
		p.IncorrectCount += stats.Incorrect
	}
	return nil
}

func (m *memStore) AppendTrustHistory(_ context.Context, adj *models.TrustAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments = append(m.adjustments, *adj)
	return nil
}

func (m *memStore) ListPendingRequests(_ context.Context) ([]models.ConsensusRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConsensusRequest
	for _, req := range m.requests {
		if req.Outcome == models.OutcomePending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *memStore) TouchPlayerActivity(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.LastActiveAt = time.Now()
	}
	return nil
}

func (m *memStore) adjustmentsFor(requestID string) []models.TrustAdjustment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TrustAdjustment
	for _, a := range m.adjustments {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) trustOf(playerID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[playerID].TrustScore
}

func (m *memStore) request(requestID string) models.ConsensusRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.requests[requestID]
}

// memBlobs is an in-memory blob store.
type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	pins  map[string]int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte), pins: make(map[string]int)}
}

func (b *memBlobs) Put(data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := fmt.Sprintf("blob-%x", len(b.blobs))
	b.blobs[ref] = data
	return ref, nil
}

func (b *memBlobs) Pin(ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pins[ref]++
	return nil
}

// mockNotifier records every publish.
type mockNotifier struct {
	mu        sync.Mutex
	available []bus.ValidationAvailable
	results   []bus.ValidationResult
	failAll   bool
}

func (n *mockNotifier) PublishValidationAvailable(_ context.Context, msg bus.ValidationAvailable) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return fmt.Errorf("bus down")
	}
	n.available = append(n.available, msg)
	return nil
}

func (n *mockNotifier) PublishValidationResult(_ context.Context, msg bus.ValidationResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return fmt.Errorf("bus down")
	}
	n.results = append(n.results, msg)
	return nil
}

func (n *mockNotifier) lastResult() (bus.ValidationResult, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.results) == 0 {
		return bus.ValidationResult{}, false
	}
	return n.results[len(n.results)-1], true
}

// staticCandidates serves a fixed candidate pool.
type staticCandidates struct {
	pool []models.Player
	err  error
}

func (s *staticCandidates) Candidates(context.Context) ([]models.Player, error) {
	return s.pool, s.err
}
