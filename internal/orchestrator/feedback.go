package orchestrator

import (
	"context"

	"validation-service/internal/models"
	"validation-service/internal/store"
	"validation-service/internal/trust"
)

// applyFeedback runs the trust adjustments for one resolved request. It
// executes only on the path that won the guarded transition, so it runs
// exactly once per request. Per-player failures are logged and skipped;
// one broken row must not starve the rest of the feedback.
func (o *Orchestrator) applyFeedback(ctx context.Context, req *models.ConsensusRequest, votes []models.Vote, approved bool) {
	submitterOutcome := trust.OutcomeConsensusFailed
	submitterReason := models.ReasonConsensusFailed
	if approved {
		submitterOutcome = trust.OutcomeConsensusPassed
		submitterReason = models.ReasonConsensusPassed
	}
	o.adjustPlayer(ctx, req.SubmitterID, req.ID, submitterOutcome, submitterReason, nil)

	for _, v := range votes {
		correct := v.Agrees == approved
		outcome := trust.OutcomeIncorrectVote
		reason := models.ReasonIncorrectVote
		stats := &store.StatsDelta{Submitted: 1, Incorrect: 1}
		if correct {
			outcome = trust.OutcomeCorrectVote
			reason = models.ReasonCorrectVote
			stats = &store.StatsDelta{Submitted: 1, Correct: 1}
		}
		o.adjustPlayer(ctx, v.ValidatorID, req.ID, outcome, reason, stats)
	}
}

func (o *Orchestrator) adjustPlayer(ctx context.Context, playerID, requestID string, outcome trust.Outcome, reason string, stats *store.StatsDelta) {
	player, err := o.store.GetPlayer(ctx, playerID)
	if err != nil {
		o.log.Errorf("trust feedback: load %s: %v", playerID, err)
		return
	}

	oldScore := player.TrustScore
	newScore := o.cfg.TrustParams.Adjust(oldScore, outcome)

	if err := o.store.SetPlayerTrust(ctx, playerID, newScore, stats); err != nil {
		o.log.Errorf("trust feedback: update %s: %v", playerID, err)
		return
	}

	if err := o.store.AppendTrustHistory(ctx, &models.TrustAdjustment{
		PlayerID:  playerID,
		OldScore:  oldScore,
		NewScore:  newScore,
		Delta:     newScore - oldScore,
		Reason:    reason,
		RequestID: requestID,
	}); err != nil {
		o.log.Errorf("trust feedback: audit %s: %v", playerID, err)
	}
	o.met.TrustAdjustments.WithLabelValues(reason).Inc()
}
