package selector

import (
	"testing"
	"time"

	"validation-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSelectExcludesSubmitter(t *testing.T) {
	now := time.Now()
	candidates := []models.Player{
		{ID: "submitter", TrustScore: 1},
		{ID: "v1", TrustScore: 0.5},
		{ID: "v2", TrustScore: 0.4},
	}

	picked := Select(candidates, "submitter", nil, 3, now)
	assert.Len(t, picked, 2)
	for _, p := range picked {
		assert.NotEqual(t, "submitter", p.ID)
	}
}

func TestSelectOrdersByTrust(t *testing.T) {
	now := time.Now()
	candidates := []models.Player{
		{ID: "low", TrustScore: 0.2},
		{ID: "high", TrustScore: 0.9},
		{ID: "mid", TrustScore: 0.6},
	}

	picked := Select(candidates, "s", nil, 2, now)
	assert.Equal(t, "high", picked[0].ID)
	assert.Equal(t, "mid", picked[1].ID)
}

func TestProximityBeatsEqualTrust(t *testing.T) {
	now := time.Now()
	loc := &Location{X: 0, Y: 0, Z: 0}
	candidates := []models.Player{
		{ID: "far", TrustScore: 0.5, X: 900, HasPosition: true},
		{ID: "near", TrustScore: 0.5, X: 10, HasPosition: true},
		{ID: "nowhere", TrustScore: 0.5},
	}

	picked := Select(candidates, "s", loc, 3, now)
	assert.Equal(t, "near", picked[0].ID)
	assert.Equal(t, "far", picked[1].ID)
	assert.Equal(t, "nowhere", picked[2].ID)
}

func TestDistanceCutoff(t *testing.T) {
	now := time.Now()
	loc := &Location{}

	beyond := models.Player{ID: "beyond", TrustScore: 0.5, X: 2000, HasPosition: true}
	unknown := models.Player{ID: "unknown", TrustScore: 0.5}

	// Past the cutoff no proximity points accrue, same as no position.
	assert.Equal(t, Score(unknown, loc, now), Score(beyond, loc, now))
}

func TestRecentActivityScoresHigher(t *testing.T) {
	now := time.Now()
	active := models.Player{ID: "active", TrustScore: 0.5, LastActiveAt: now.Add(-time.Minute)}
	idle := models.Player{ID: "idle", TrustScore: 0.5, LastActiveAt: now.Add(-2 * time.Hour)}

	assert.Greater(t, Score(active, nil, now), Score(idle, nil, now))
}

func TestAccuracyBreaksTies(t *testing.T) {
	now := time.Now()
	sharp := models.Player{ID: "sharp", TrustScore: 0.5, SubmittedCount: 10, CorrectCount: 9}
	blunt := models.Player{ID: "blunt", TrustScore: 0.5, SubmittedCount: 10, CorrectCount: 2}

	picked := Select([]models.Player{blunt, sharp}, "s", nil, 1, now)
	assert.Equal(t, "sharp", picked[0].ID)
}

func TestSelectZeroTarget(t *testing.T) {
	candidates := []models.Player{{ID: "v1", TrustScore: 0.5}}
	assert.Empty(t, Select(candidates, "s", nil, 0, time.Now()))
}
