package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierOf(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, TierLow, p.TierOf(0))
	assert.Equal(t, TierLow, p.TierOf(0.49))
	assert.Equal(t, TierMedium, p.TierOf(0.5))
	assert.Equal(t, TierMedium, p.TierOf(0.89))
	assert.Equal(t, TierHigh, p.TierOf(0.9))
	assert.Equal(t, TierHigh, p.TierOf(1))
}

func TestRequiredValidators(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 5, p.RequiredValidators(0.3))
	assert.Equal(t, 3, p.RequiredValidators(0.7))
	assert.Equal(t, 0, p.RequiredValidators(0.95))
}

// Bypass must hold for every score at or above the high threshold.
func TestHighTierAlwaysBypasses(t *testing.T) {
	p := DefaultParams()

	for score := 0.9; score <= 1.0; score += 0.01 {
		assert.Zero(t, p.RequiredValidators(score), "score %f", score)
	}
}

func TestAdjust(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name    string
		score   float64
		outcome Outcome
		want    float64
	}{
		{"correct vote", 0.5, OutcomeCorrectVote, 0.52},
		{"incorrect vote", 0.5, OutcomeIncorrectVote, 0.4},
		{"consensus passed", 0.3, OutcomeConsensusPassed, 0.32},
		{"consensus failed", 0.5, OutcomeConsensusFailed, 0.35},
		{"clamped at zero", 0.05, OutcomeConsensusFailed, 0},
		{"clamped at one", 0.99, OutcomeCorrectVote, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, p.Adjust(tt.score, tt.outcome), 1e-9)
		})
	}
}

func TestAdjustStaysInRange(t *testing.T) {
	p := DefaultParams()
	outcomes := []Outcome{
		OutcomeCorrectVote,
		OutcomeIncorrectVote,
		OutcomeConsensusPassed,
		OutcomeConsensusFailed,
	}

	for score := 0.0; score <= 1.0; score += 0.05 {
		for _, o := range outcomes {
			got := p.Adjust(score, o)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		}
	}
}

func TestParamsOverride(t *testing.T) {
	p := DefaultParams()
	p.HighThreshold = 0.8

	assert.Equal(t, 0, p.RequiredValidators(0.85))
}
