// Package selector ranks candidate validators for a pending request by a
// composite score and picks the top N.
package selector

import (
	"math"
	"sort"
	"time"

	"validation-service/internal/models"
)

// Location is a point in world space attached to a validation event.
type Location struct {
	X float64
	Y float64
	Z float64
}

// Composite score weights. Trust dominates, proximity and recency refine,
// historical accuracy breaks near-ties.
const (
	trustPoints    = 100.0
	distancePoints = 50.0
	activityPoints = 30.0
	accuracyPoints = 20.0

	// Past this distance a candidate earns no proximity points.
	distanceCutoff = 1000.0
	// Activity points decay linearly to zero over this many minutes.
	activityWindowMinutes = 60.0
)

type scored struct {
	player models.Player
	score  float64
}

// Select excludes the submitter, scores the remaining candidates and
// returns the top target players by composite score.
func Select(candidates []models.Player, submitterID string, loc *Location, target int, now time.Time) []models.Player {
	if target <= 0 {
		return nil
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == submitterID {
			continue
		}
		ranked = append(ranked, scored{player: c, score: Score(c, loc, now)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].player.ID < ranked[j].player.ID
	})

	if len(ranked) > target {
		ranked = ranked[:target]
	}
	picked := make([]models.Player, len(ranked))
	for i, r := range ranked {
		picked[i] = r.player
	}
	return picked
}

// Score computes the composite selection score for one candidate.
func Score(p models.Player, loc *Location, now time.Time) float64 {
	score := p.TrustScore * trustPoints

	if loc != nil && p.HasPosition {
		d := distance(p, loc)
		if d < distanceCutoff {
			score += distancePoints * (1 - d/distanceCutoff)
		}
	}

	if !p.LastActiveAt.IsZero() {
		minutes := now.Sub(p.LastActiveAt).Minutes()
		if minutes < 0 {
			minutes = 0
		}
		if minutes < activityWindowMinutes {
			score += activityPoints * (1 - minutes/activityWindowMinutes)
		}
	}

	score += p.Accuracy() * accuracyPoints

	return score
}

func distance(p models.Player, loc *Location) float64 {
	dx := p.X - loc.X
	dy := p.Y - loc.Y
	dz := p.Z - loc.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
