// Package orchestrator owns the lifecycle of every in-flight validation
// request: creation, validator notification, vote ingestion, resolution
// by quorum or timeout, and trust feedback.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"validation-service/internal/apperr"
	"validation-service/internal/bus"
	"validation-service/internal/consensus"
	"validation-service/internal/logger"
	"validation-service/internal/metrics"
	"validation-service/internal/models"
	"validation-service/internal/selector"
	"validation-service/internal/store"
	"validation-service/internal/trust"
)

// Store is the persistence contract the orchestrator consumes.
type Store interface {
	CreateConsensusRequest(ctx context.Context, req *models.ConsensusRequest) error
	RecordVote(ctx context.Context, vote *models.Vote) error
	GetConsensusWithVotes(ctx context.Context, requestID string) (*models.ConsensusRequest, []models.Vote, error)
	ResolveConsensus(ctx context.Context, requestID, outcome string, agree, disagree int, warnings string) error
	GetPlayer(ctx context.Context, playerID string) (*models.Player, error)
	SetPlayerTrust(ctx context.Context, playerID string, score float64, stats *store.StatsDelta) error
	AppendTrustHistory(ctx context.Context, adj *models.TrustAdjustment) error
	ListPendingRequests(ctx context.Context) ([]models.ConsensusRequest, error)
	TouchPlayerActivity(ctx context.Context, playerID string) error
}

// BlobStore externalizes event payloads and proofs.
type BlobStore interface {
	Put(data []byte) (string, error)
	Pin(ref string) error
}

// Notifier fans out validator notifications and pushes results back to
// submitters. Both are fire-and-forget.
type Notifier interface {
	PublishValidationAvailable(ctx context.Context, msg bus.ValidationAvailable) error
	PublishValidationResult(ctx context.Context, msg bus.ValidationResult) error
}

// CandidateSource supplies the validator candidate pool.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]models.Player, error)
}

// Hints carries the optional spatial locality of an event.
type Hints struct {
	RegionID string
	BodyID   string
	Location *selector.Location
}

// ValidationReceipt is returned from RequestValidation.
type ValidationReceipt struct {
	RequestID          string `json:"requestId,omitempty"`
	Bypass             bool   `json:"bypass"`
	RequiredValidators int    `json:"requiredValidators"`
	NotifiedCount      int    `json:"notifiedCount"`
}

// VoteReceipt is returned from SubmitVote.
type VoteReceipt struct {
	TotalVotes    int    `json:"totalVotes"`
	AgreeCount    int    `json:"agreeCount"`
	DisagreeCount int    `json:"disagreeCount"`
	Resolved      bool   `json:"resolved"`
	Outcome       string `json:"outcome,omitempty"`
}

// StatusSummary is the current request plus a vote summary.
type StatusSummary struct {
	Request       *models.ConsensusRequest `json:"request"`
	TotalVotes    int                      `json:"totalVotes"`
	AgreeCount    int                      `json:"agreeCount"`
	DisagreeCount int                      `json:"disagreeCount"`
}

// Config bundles the orchestrator's tunables.
type Config struct {
	TrustParams trust.Params
	Algorithm   consensus.Algorithm
	Timeout     time.Duration
}

type Orchestrator struct {
	cfg        Config
	store      Store
	blobs      BlobStore
	notifier   Notifier
	candidates CandidateSource
	active     *Registry
	met        *metrics.Metrics
	log        *logger.Logger

	// majority is the fixed fallback rule for the expiry path: a clear
	// non-tied majority at the deadline resolves the request.
	majority consensus.Algorithm
}

func New(cfg Config, st Store, blobs BlobStore, notifier Notifier, candidates CandidateSource, met *metrics.Metrics, log *logger.Logger) *Orchestrator {
	majority, _ := consensus.New(consensus.KindSimpleMajority, consensus.Options{})
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		blobs:      blobs,
		notifier:   notifier,
		candidates: candidates,
		active:     NewRegistry(),
		met:        met,
		log:        log,
		majority:   majority,
	}
}

// Active exposes a read-only snapshot of the in-flight set.
func (o *Orchestrator) Active() []ActiveValidation {
	return o.active.Snapshot()
}

// Close stops all expiry timers. Pending requests stay pending in the
// store and are picked up by Recover on the next start.
func (o *Orchestrator) Close() {
	o.active.Close()
}

// Recover reloads every still-pending persisted request and reschedules
// its expiry. Requests already past their deadline are expired
// immediately through the normal guarded path.
func (o *Orchestrator) Recover(ctx context.Context) error {
	pending, err := o.store.ListPendingRequests(ctx)
	if err != nil {
		return err
	}
	for _, req := range pending {
		o.schedule(req.ID, req.RequiredValidators, req.ExpiresAt)
	}
	if len(pending) > 0 {
		o.log.Printf("recovered %d pending validations", len(pending))
	}
	o.met.ActiveRequests.Set(float64(o.active.Len()))
	return nil
}

// RequestValidation runs the submission path: trust lookup, bypass or
// request creation, payload externalization, validator selection and
// notification, and expiry scheduling.
func (o *Orchestrator) RequestValidation(ctx context.Context, submitterID, eventType string, eventData []byte, hints Hints) (*ValidationReceipt, error) {
	if !models.ValidEventType(eventType) {
		return nil, apperr.Newf(apperr.KindInvalidInput, "unsupported event type %q", eventType)
	}
	if submitterID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "submitter id required")
	}
	if len(eventData) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "event data required")
	}

	submitter, err := o.store.GetPlayer(ctx, submitterID)
	if err != nil {
		return nil, err
	}
	if err := o.store.TouchPlayerActivity(ctx, submitterID); err != nil {
		o.log.Printf("touch activity %s: %v", submitterID, err)
	}

	required := o.cfg.TrustParams.RequiredValidators(submitter.TrustScore)
	if required == 0 {
		o.met.RequestsBypassed.Inc()
		return &ValidationReceipt{Bypass: true}, nil
	}

	ref, err := o.blobs.Put(eventData)
	if err != nil {
		return nil, err
	}
	if err := o.blobs.Pin(ref); err != nil {
		o.log.Printf("pin %s: %v", ref, err)
	}

	req := &models.ConsensusRequest{
		EventType:          eventType,
		EventDataRef:       ref,
		SubmitterID:        submitterID,
		RegionID:           hints.RegionID,
		BodyID:             hints.BodyID,
		RequiredValidators: required,
		ExpiresAt:          time.Now().UTC().Add(o.cfg.Timeout),
		Outcome:            models.OutcomePending,
	}
	if err := o.store.CreateConsensusRequest(ctx, req); err != nil {
		return nil, err
	}
	o.met.RequestsCreated.Inc()

	notified := o.notifyValidators(ctx, req, hints.Location)
	o.schedule(req.ID, required, req.ExpiresAt)
	o.met.ActiveRequests.Set(float64(o.active.Len()))

	return &ValidationReceipt{
		RequestID:          req.ID,
		RequiredValidators: required,
		NotifiedCount:      notified,
	}, nil
}

// notifyValidators selects the top candidates and publishes the
// notification. Failures are logged, never propagated: notification is
// best-effort and must not fail request creation.
func (o *Orchestrator) notifyValidators(ctx context.Context, req *models.ConsensusRequest, loc *selector.Location) int {
	pool, err := o.candidates.Candidates(ctx)
	if err != nil {
		o.log.Warnf("candidate pool unavailable for %s: %v", req.ID, err)
		return 0
	}

	picked := selector.Select(pool, req.SubmitterID, loc, req.RequiredValidators, time.Now())
	if len(picked) == 0 {
		o.log.Warnf("no candidates to notify for %s", req.ID)
		return 0
	}

	ids := make([]string, len(picked))
	for i, p := range picked {
		ids[i] = p.ID
	}

	err = o.notifier.PublishValidationAvailable(ctx, bus.ValidationAvailable{
		RequestID:          req.ID,
		EventType:          req.EventType,
		EventDataRef:       req.EventDataRef,
		SubmitterID:        req.SubmitterID,
		RegionID:           req.RegionID,
		RequiredValidators: req.RequiredValidators,
		Validators:         ids,
	})
	if err != nil {
		o.log.Warnf("notify validators for %s: %v", req.ID, err)
	}
	return len(ids)
}

// SubmitVote persists one validator verdict and evaluates resolution.
// The duplicate check and the pending->terminal transition both live in
// the store as conditional writes, so two racing votes cannot double
// count and two racing resolution attempts cannot both win.
func (o *Orchestrator) SubmitVote(ctx context.Context, requestID, validatorID string, agrees bool, proof []byte) (*VoteReceipt, error) {
	if requestID == "" || validatorID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "request id and validator id required")
	}

	req, _, err := o.store.GetConsensusWithVotes(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Resolved() {
		return nil, apperr.Newf(apperr.KindConflict, "request %s is %s", requestID, req.Outcome)
	}
	if validatorID == req.SubmitterID {
		o.met.VotesRejected.WithLabelValues("self_vote").Inc()
		return nil, apperr.New(apperr.KindForbidden, "submitter cannot vote on own request")
	}
	if _, err := o.store.GetPlayer(ctx, validatorID); err != nil {
		return nil, err
	}

	var proofRef string
	if len(proof) > 0 {
		proofRef, err = o.blobs.Put(proof)
		if err != nil {
			return nil, err
		}
		if err := o.blobs.Pin(proofRef); err != nil {
			o.log.Printf("pin %s: %v", proofRef, err)
		}
	}

	vote := &models.Vote{
		RequestID:   requestID,
		ValidatorID: validatorID,
		Agrees:      agrees,
		ProofRef:    proofRef,
		Timestamp:   time.Now().UTC(),
	}
	if err := o.store.RecordVote(ctx, vote); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			o.met.VotesRejected.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}
	o.met.VotesAccepted.Inc()
	if err := o.store.TouchPlayerActivity(ctx, validatorID); err != nil {
		o.log.Printf("touch activity %s: %v", validatorID, err)
	}

	// Re-read the full vote set and evaluate resolution on it. The
	// guarded store transition is the single atomic decision point;
	// whichever evaluation wins it runs feedback, the others observe
	// "already resolved" and stop.
	req, votes, err := o.store.GetConsensusWithVotes(ctx, requestID)
	if err != nil {
		return nil, err
	}

	agree, disagree := countVotes(votes)
	receipt := &VoteReceipt{
		TotalVotes:    len(votes),
		AgreeCount:    agree,
		DisagreeCount: disagree,
	}

	if req.Resolved() {
		receipt.Resolved = true
		receipt.Outcome = req.Outcome
		return receipt, nil
	}

	if len(votes) >= req.RequiredValidators {
		result := o.cfg.Algorithm.Tally(o.weighted(ctx, votes))
		if result.Outcome != consensus.NoDecision {
			if o.resolve(ctx, req, votes, result) {
				receipt.Resolved = true
				receipt.Outcome = outcomeString(result.Outcome)
			}
		}
	}
	return receipt, nil
}

// Status returns the current request plus a vote summary.
func (o *Orchestrator) Status(ctx context.Context, requestID string) (*StatusSummary, error) {
	req, votes, err := o.store.GetConsensusWithVotes(ctx, requestID)
	if err != nil {
		return nil, err
	}
	agree, disagree := countVotes(votes)
	return &StatusSummary{
		Request:       req,
		TotalVotes:    len(votes),
		AgreeCount:    agree,
		DisagreeCount: disagree,
	}, nil
}

// schedule arms the one-shot expiry for a request through the registry.
func (o *Orchestrator) schedule(requestID string, required int, expiresAt time.Time) {
	o.active.Schedule(requestID, required, expiresAt, func() {
		o.expire(requestID)
	})
}

// expire fires at the deadline. It re-inspects the persisted state and
// routes any transition through the same guarded store primitive as the
// vote path, so a request that resolved in the meantime is a no-op.
func (o *Orchestrator) expire(requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, votes, err := o.store.GetConsensusWithVotes(ctx, requestID)
	if err != nil {
		// Leave the request pending; a later vote re-triggers evaluation.
		o.log.Errorf("expiry inspection of %s failed: %v", requestID, err)
		return
	}
	if req.Resolved() {
		o.active.Remove(requestID)
		o.met.ActiveRequests.Set(float64(o.active.Len()))
		return
	}

	agree, disagree := countVotes(votes)
	switch {
	case len(votes) == 0 || agree == disagree:
		// Nothing decisive arrived: expire with no trust feedback.
		if err := o.store.ResolveConsensus(ctx, requestID, models.OutcomeExpired, agree, disagree, ""); err != nil {
			if !apperr.Is(err, apperr.KindConflict) {
				o.log.Errorf("expire %s: %v", requestID, err)
			}
			return
		}
		o.active.Remove(requestID)
		o.met.RequestsResolved.WithLabelValues(models.OutcomeExpired).Inc()
		o.met.ActiveRequests.Set(float64(o.active.Len()))
		o.pushResult(ctx, req, models.OutcomeExpired, agree, disagree, "")
		o.log.Printf("request %s expired with %d votes", requestID, len(votes))
	default:
		// Clear majority at the deadline: resolve by majority rule.
		result := o.majority.Tally(o.weighted(ctx, votes))
		o.resolve(ctx, req, votes, result)
	}
}

// resolve attempts the pending->terminal transition and, on winning it,
// runs trust feedback exactly once and pushes the result. Returns false
// when another path already resolved the request.
func (o *Orchestrator) resolve(ctx context.Context, req *models.ConsensusRequest, votes []models.Vote, result consensus.Result) bool {
	outcome := outcomeString(result.Outcome)
	warnings := joinWarnings(consensus.Inspect(o.weighted(ctx, votes)))

	err := o.store.ResolveConsensus(ctx, req.ID, outcome, result.AgreeCount, result.DisagreeCount, warnings)
	if err != nil {
		if !apperr.Is(err, apperr.KindConflict) {
			o.log.Errorf("resolve %s: %v", req.ID, err)
		}
		return false
	}

	o.active.Remove(req.ID)
	o.met.RequestsResolved.WithLabelValues(outcome).Inc()
	o.met.ActiveRequests.Set(float64(o.active.Len()))
	o.log.Printf("request %s resolved %s (%d/%d, confidence %.2f)",
		req.ID, outcome, result.AgreeCount, result.DisagreeCount, result.Confidence)

	o.applyFeedback(ctx, req, votes, result.Outcome == consensus.Approve)
	o.pushResult(ctx, req, outcome, result.AgreeCount, result.DisagreeCount, warnings)
	return true
}

func (o *Orchestrator) pushResult(ctx context.Context, req *models.ConsensusRequest, outcome string, agree, disagree int, warnings string) {
	err := o.notifier.PublishValidationResult(ctx, bus.ValidationResult{
		RequestID:     req.ID,
		SubmitterID:   req.SubmitterID,
		Outcome:       outcome,
		AgreeCount:    agree,
		DisagreeCount: disagree,
		Warnings:      warnings,
	})
	if err != nil {
		o.log.Warnf("push result for %s: %v", req.ID, err)
	}
}

// weighted converts stored votes to tally votes, attaching each voter's
// current trust score where it can be resolved.
func (o *Orchestrator) weighted(ctx context.Context, votes []models.Vote) []consensus.Vote {
	out := make([]consensus.Vote, len(votes))
	scores := make(map[string]float64, len(votes))
	for i, v := range votes {
		w, ok := scores[v.ValidatorID]
		if !ok {
			w = consensus.UnknownTrust
			if p, err := o.store.GetPlayer(ctx, v.ValidatorID); err == nil {
				w = p.TrustScore
			}
			scores[v.ValidatorID] = w
		}
		out[i] = consensus.Vote{ValidatorID: v.ValidatorID, Agrees: v.Agrees, Trust: w}
	}
	return out
}

func countVotes(votes []models.Vote) (agree, disagree int) {
	for _, v := range votes {
		if v.Agrees {
			agree++
		} else {
			disagree++
		}
	}
	return agree, disagree
}

func outcomeString(o consensus.Outcome) string {
	if o == consensus.Approve {
		return models.OutcomeApproved
	}
	return models.OutcomeRejected
}

func joinWarnings(warnings []consensus.Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = string(w)
	}
	return strings.Join(parts, ",")
}
