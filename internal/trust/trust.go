// Package trust maps a player's trust score to a tier, a required
// validator count and post-outcome score deltas. Everything here is pure
// and deterministic; both the orchestrator and the validator selector
// call into it.
package trust

import "validation-service/internal/config"

// Tier buckets a trust score.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Outcome names the event a score is adjusted for.
type Outcome int

const (
	// OutcomeCorrectVote is a validator vote matching the final outcome.
	OutcomeCorrectVote Outcome = iota
	// OutcomeIncorrectVote is a validator vote against the final outcome.
	OutcomeIncorrectVote
	// OutcomeConsensusPassed is a submitter's action approved by consensus.
	OutcomeConsensusPassed
	// OutcomeConsensusFailed is a submitter's action rejected by consensus.
	OutcomeConsensusFailed
)

// Validator counts per tier.
const (
	lowTierValidators    = 5
	mediumTierValidators = 3
	highTierValidators   = 0 // bypass
)

// Params holds the tunable trust economics. Built from env config so the
// constants are an operational concern, not literals in the code.
type Params struct {
	MediumThreshold        float64
	HighThreshold          float64
	CorrectVoteDelta       float64
	IncorrectVotePenalty   float64
	ConsensusPassedDelta   float64
	ConsensusFailedPenalty float64
}

// ParamsFromConfig extracts the trust knobs from the service config.
func ParamsFromConfig(cfg config.Config) Params {
	return Params{
		MediumThreshold:        cfg.TrustMediumThreshold,
		HighThreshold:          cfg.TrustHighThreshold,
		CorrectVoteDelta:       cfg.CorrectVoteDelta,
		IncorrectVotePenalty:   cfg.IncorrectVotePenalty,
		ConsensusPassedDelta:   cfg.ConsensusPassedDelta,
		ConsensusFailedPenalty: cfg.ConsensusFailedPenalty,
	}
}

// DefaultParams returns the stock trust economics.
func DefaultParams() Params {
	return Params{
		MediumThreshold:        0.5,
		HighThreshold:          0.9,
		CorrectVoteDelta:       0.02,
		IncorrectVotePenalty:   0.10,
		ConsensusPassedDelta:   0.02,
		ConsensusFailedPenalty: 0.15,
	}
}

// TierOf buckets score into LOW/MEDIUM/HIGH.
func (p Params) TierOf(score float64) Tier {
	switch {
	case score >= p.HighThreshold:
		return TierHigh
	case score >= p.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// RequiredValidators returns how many independent validators an action by
// a player with the given score needs. Zero means the bypass fast path.
func (p Params) RequiredValidators(score float64) int {
	switch p.TierOf(score) {
	case TierHigh:
		return highTierValidators
	case TierMedium:
		return mediumTierValidators
	default:
		return lowTierValidators
	}
}

// Adjust applies the delta for the given outcome and clamps to [0,1].
func (p Params) Adjust(score float64, outcome Outcome) float64 {
	switch outcome {
	case OutcomeCorrectVote:
		score += p.CorrectVoteDelta
	case OutcomeIncorrectVote:
		score -= p.IncorrectVotePenalty
	case OutcomeConsensusPassed:
		score += p.ConsensusPassedDelta
	case OutcomeConsensusFailed:
		score -= p.ConsensusFailedPenalty
	}
	return Clamp(score)
}

// Clamp bounds a score to [0,1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
