// Package roster caches the trust-leaderboard candidate pool so every
// incoming validation does not hit the database for the same slowly
// changing list.
package roster

import (
	"context"
	"sync"
	"time"

	"validation-service/internal/models"
)

// LeaderboardSource is the slice of the store the roster needs.
type LeaderboardSource interface {
	GetTrustLeaderboard(ctx context.Context, limit int) ([]models.Player, error)
}

// Roster resolves the candidate validator pool with a short TTL. The
// pool changes only when trust feedback runs, so a few seconds of
// staleness is acceptable.
type Roster struct {
	source    LeaderboardSource
	limit     int
	ttl       time.Duration
	mu        sync.RWMutex
	cache     []models.Player
	lastFetch time.Time
}

func New(source LeaderboardSource, limit int, ttl time.Duration) *Roster {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Roster{
		source: source,
		limit:  limit,
		ttl:    ttl,
	}
}

// Candidates returns the cached pool, refreshing it when stale. On a
// refresh failure the previous pool is served if one exists.
func (r *Roster) Candidates(ctx context.Context) ([]models.Player, error) {
	r.mu.RLock()
	stale := time.Since(r.lastFetch) > r.ttl || r.cache == nil
	cached := r.cache
	r.mu.RUnlock()

	if !stale {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check under lock
	if time.Since(r.lastFetch) <= r.ttl && r.cache != nil {
		return r.cache, nil
	}

	players, err := r.source.GetTrustLeaderboard(ctx, r.limit)
	if err != nil {
		if r.cache != nil {
			return r.cache, nil
		}
		return nil, err
	}

	r.cache = players
	r.lastFetch = time.Now()
	return players, nil
}

// Invalidate drops the cache; the next Candidates call refetches.
func (r *Roster) Invalidate() {
	r.mu.Lock()
	r.cache = nil
	r.lastFetch = time.Time{}
	r.mu.Unlock()
}
