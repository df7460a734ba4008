// Package collector polls the database on a fixed interval and feeds the
// monitor TUI with pending validations, trust history and the leaderboard.
package collector

import (
	"context"
	"time"

	"validation-service/internal/logger"
	"validation-service/internal/store"
	"validation-service/internal/trust"
	"validation-service/internal/tui"
)

const (
	// TUIChannelBufferSize is the capacity of the update channel shared
	// with the TUI goroutine.
	TUIChannelBufferSize = 16

	// TUICloseDelay gives the TUI time to drain after the channel closes.
	TUICloseDelay = 200 * time.Millisecond

	pollInterval    = 2 * time.Second
	historyRows     = 30
	leaderboardRows = 30
)

type Collector struct {
	store  *store.Store
	params trust.Params
	out    chan<- interface{}
	log    *logger.Logger
}

func NewCollector(st *store.Store, params trust.Params, out chan<- interface{}, log *logger.Logger) *Collector {
	return &Collector{store: st, params: params, out: out, log: log}
}

// Run polls until ctx is cancelled. Individual query failures are logged
// and retried on the next tick; the loop itself never fails.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	c.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Collector) refresh(ctx context.Context) {
	c.pushOverview(ctx)
	c.pushPending(ctx)
	c.pushAdjustments(ctx)
	c.pushLeaderboard(ctx)
}

func (c *Collector) pushOverview(ctx context.Context) {
	ov := tui.Overview{UpdatedAt: time.Now()}

	pending, err := c.store.ListPendingRequests(ctx)
	if err != nil {
		c.log.Printf("overview: %v", err)
		c.send(ov)
		return
	}
	ov.DBConnected = true
	ov.PendingCount = len(pending)

	if n, err := c.store.CountPlayers(ctx); err == nil {
		ov.PlayerCount = n
	} else {
		c.log.Printf("count players: %v", err)
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	if decided, expired, err := c.store.CountOutcomesSince(ctx, midnight); err == nil {
		ov.ResolvedToday = int(decided)
		ov.ExpiredToday = int(expired)
	} else {
		c.log.Printf("count outcomes: %v", err)
	}

	c.send(ov)
}

func (c *Collector) pushPending(ctx context.Context) {
	reqs, err := c.store.ListPendingRequests(ctx)
	if err != nil {
		c.log.Printf("list pending: %v", err)
		return
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	tallies, err := c.store.VoteTallies(ctx, ids)
	if err != nil {
		c.log.Printf("vote tallies: %v", err)
		tallies = map[string]store.Tally{}
	}

	infos := make([]tui.PendingInfo, len(reqs))
	for i, r := range reqs {
		t := tallies[r.ID]
		infos[i] = tui.PendingInfo{
			RequestID:   r.ID,
			EventType:   r.EventType,
			SubmitterID: r.SubmitterID,
			Required:    r.RequiredValidators,
			Agree:       t.Agree,
			Disagree:    t.Disagree,
			ExpiresAt:   r.ExpiresAt,
		}
	}
	c.send(infos)
}

func (c *Collector) pushAdjustments(ctx context.Context) {
	adjs, err := c.store.RecentAdjustments(ctx, historyRows)
	if err != nil {
		c.log.Printf("recent adjustments: %v", err)
		return
	}

	infos := make([]tui.AdjustmentInfo, len(adjs))
	for i, a := range adjs {
		infos[i] = tui.AdjustmentInfo{
			PlayerID: a.PlayerID,
			Delta:    a.Delta,
			NewScore: a.NewScore,
			Reason:   a.Reason,
			When:     a.CreatedAt,
		}
	}
	c.send(infos)
}

func (c *Collector) pushLeaderboard(ctx context.Context) {
	players, err := c.store.GetTrustLeaderboard(ctx, leaderboardRows)
	if err != nil {
		c.log.Printf("leaderboard: %v", err)
		return
	}

	infos := make([]tui.LeaderInfo, len(players))
	for i, p := range players {
		infos[i] = tui.LeaderInfo{
			PlayerID:   p.ID,
			TrustScore: p.TrustScore,
			Tier:       c.params.TierOf(p.TrustScore).String(),
			Submitted:  p.SubmittedCount,
			Correct:    p.CorrectCount,
		}
	}
	c.send(infos)
}

// send drops the update when the TUI is not keeping up.
func (c *Collector) send(v interface{}) {
	select {
	case c.out <- v:
	default:
	}
}
