// Package store is the gorm-backed persistence layer. It owns the two
// correctness-critical guarantees the orchestrator builds on: the
// (request, validator) unique index that dedups racing votes, and the
// guarded conditional update that makes resolution at-most-once.
package store

import (
	"context"
	"errors"
	"time"

	"validation-service/internal/apperr"
	"validation-service/internal/models"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// StatsDelta increments a player's cumulative vote counters together
// with a trust update.
type StatsDelta struct {
	Submitted int64
	Correct   int64
	Incorrect int64
}

// CreateConsensusRequest persists req, assigning an id when absent.
func (s *Store) CreateConsensusRequest(ctx context.Context, req *models.ConsensusRequest) error {
	if req.ID == "" {
		req.ID = xid.New().String()
	}
	if req.Outcome == "" {
		req.Outcome = models.OutcomePending
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return apperr.Wrap(apperr.KindTransient, "create consensus request", err)
	}
	return nil
}

// RecordVote inserts a vote. A second vote from the same validator on the
// same request violates the unique index and surfaces as Conflict; the
// check-then-insert race is closed by the database, not by this code.
func (s *Store) RecordVote(ctx context.Context, vote *models.Vote) error {
	if vote.Timestamp.IsZero() {
		vote.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Wrap(apperr.KindConflict, "duplicate vote", err)
		}
		return apperr.Wrap(apperr.KindTransient, "record vote", err)
	}
	return nil
}

// GetConsensusWithVotes loads a request and its full vote set.
func (s *Store) GetConsensusWithVotes(ctx context.Context, requestID string) (*models.ConsensusRequest, []models.Vote, error) {
	var req models.ConsensusRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.Newf(apperr.KindNotFound, "unknown request %s", requestID)
		}
		return nil, nil, apperr.Wrap(apperr.KindTransient, "load consensus request", err)
	}

	var votes []models.Vote
	if err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&votes).Error; err != nil {
		return nil, nil, apperr.Wrap(apperr.KindTransient, "load votes", err)
	}
	return &req, votes, nil
}

// ResolveConsensus moves a request from pending to a terminal outcome as a
// single conditional write. Whichever caller wins the race gets nil; the
// loser gets Conflict and must skip all further side effects.
func (s *Store) ResolveConsensus(ctx context.Context, requestID, outcome string, agree, disagree int, warnings string) error {
	now := time.Now().UTC()
	tx := s.db.WithContext(ctx).
		Model(&models.ConsensusRequest{}).
		Where("id = ? AND outcome = ?", requestID, models.OutcomePending).
		Updates(map[string]interface{}{
			"outcome":        outcome,
			"agree_count":    agree,
			"disagree_count": disagree,
			"warnings":       warnings,
			"resolved_at":    now,
		})
	if tx.Error != nil {
		return apperr.Wrap(apperr.KindTransient, "resolve consensus", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return apperr.Newf(apperr.KindConflict, "request %s already resolved", requestID)
	}
	return nil
}

// GetPlayer loads a player row.
func (s *Store) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	var p models.Player
	if err := s.db.WithContext(ctx).First(&p, "id = ?", playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "unknown player %s", playerID)
		}
		return nil, apperr.Wrap(apperr.KindTransient, "load player", err)
	}
	return &p, nil
}

// GetPlayerTrust returns just the trust score.
func (s *Store) GetPlayerTrust(ctx context.Context, playerID string) (float64, error) {
	p, err := s.GetPlayer(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return p.TrustScore, nil
}

// SetPlayerTrust writes a new trust score and optionally increments the
// cumulative counters in the same update.
func (s *Store) SetPlayerTrust(ctx context.Context, playerID string, score float64, stats *StatsDelta) error {
	updates := map[string]interface{}{"trust_score": score}
	if stats != nil {
		if stats.Submitted != 0 {
			updates["submitted_count"] = gorm.Expr("submitted_count + ?", stats.Submitted)
		}
		if stats.Correct != 0 {
			updates["correct_count"] = gorm.Expr("correct_count + ?", stats.Correct)
		}
		if stats.Incorrect != 0 {
			updates["incorrect_count"] = gorm.Expr("incorrect_count + ?", stats.Incorrect)
		}
	}

	tx := s.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("id = ?", playerID).
		Updates(updates)
	if tx.Error != nil {
		return apperr.Wrap(apperr.KindTransient, "set player trust", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return apperr.Newf(apperr.KindNotFound, "unknown player %s", playerID)
	}
	return nil
}

// AppendTrustHistory writes one audit row. Rows are append-only.
func (s *Store) AppendTrustHistory(ctx context.Context, adj *models.TrustAdjustment) error {
	if err := s.db.WithContext(ctx).Create(adj).Error; err != nil {
		return apperr.Wrap(apperr.KindTransient, "append trust history", err)
	}
	return nil
}

// GetTrustLeaderboard returns the top players by trust score; this is the
// candidate pool for validator selection.
func (s *Store) GetTrustLeaderboard(ctx context.Context, limit int) ([]models.Player, error) {
	var players []models.Player
	if err := s.db.WithContext(ctx).
		Order("trust_score DESC, id ASC").
		Limit(limit).
		Find(&players).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "load trust leaderboard", err)
	}
	return players, nil
}

// ListPendingRequests returns every unresolved request, used to rebuild
// expiry schedules after a restart.
func (s *Store) ListPendingRequests(ctx context.Context) ([]models.ConsensusRequest, error) {
	var reqs []models.ConsensusRequest
	if err := s.db.WithContext(ctx).
		Where("outcome = ?", models.OutcomePending).
		Order("expires_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "list pending requests", err)
	}
	return reqs, nil
}

// TouchPlayerActivity records that a player was just seen, for the
// recency component of validator selection. Best effort.
func (s *Store) TouchPlayerActivity(ctx context.Context, playerID string) error {
	tx := s.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("last_active_at", time.Now().UTC())
	if tx.Error != nil {
		return apperr.Wrap(apperr.KindTransient, "touch player activity", tx.Error)
	}
	return nil
}

// Tally is the agree/disagree split of the votes cast on one request.
type Tally struct {
	Agree    int
	Disagree int
}

// VoteTallies returns the current vote split for each of the given
// requests in a single grouped query.
func (s *Store) VoteTallies(ctx context.Context, requestIDs []string) (map[string]Tally, error) {
	out := make(map[string]Tally, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		RequestID string
		Agrees    bool
		N         int
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("request_id, agrees, count(*) as n").
		Where("request_id IN ?", requestIDs).
		Group("request_id, agrees").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "tally votes", err)
	}

	for _, r := range rows {
		t := out[r.RequestID]
		if r.Agrees {
			t.Agree += r.N
		} else {
			t.Disagree += r.N
		}
		out[r.RequestID] = t
	}
	return out, nil
}

// CountPlayers returns the number of registered players.
func (s *Store) CountPlayers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Player{}).Count(&n).Error; err != nil {
		return 0, apperr.Wrap(apperr.KindTransient, "count players", err)
	}
	return n, nil
}

// CountOutcomesSince returns how many requests reached a terminal state
// after the given instant, split into decided and expired.
func (s *Store) CountOutcomesSince(ctx context.Context, since time.Time) (decided, expired int64, err error) {
	q := s.db.WithContext(ctx).Model(&models.ConsensusRequest{})
	if err := q.Session(&gorm.Session{}).
		Where("resolved_at >= ? AND outcome IN ?", since, []string{models.OutcomeApproved, models.OutcomeRejected}).
		Count(&decided).Error; err != nil {
		return 0, 0, apperr.Wrap(apperr.KindTransient, "count decided", err)
	}
	if err := q.Session(&gorm.Session{}).
		Where("resolved_at >= ? AND outcome = ?", since, models.OutcomeExpired).
		Count(&expired).Error; err != nil {
		return 0, 0, apperr.Wrap(apperr.KindTransient, "count expired", err)
	}
	return decided, expired, nil
}

// RecentAdjustments returns the latest audit rows, newest first. Used by
// the monitor TUI.
func (s *Store) RecentAdjustments(ctx context.Context, limit int) ([]models.TrustAdjustment, error) {
	var adjs []models.TrustAdjustment
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&adjs).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "load trust history", err)
	}
	return adjs, nil
}
