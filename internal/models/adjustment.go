package models

import "time"

// Reasons recorded with each trust adjustment.
const (
	ReasonCorrectVote     = "correct_vote"
	ReasonIncorrectVote   = "incorrect_vote"
	ReasonConsensusPassed = "consensus_passed"
	ReasonConsensusFailed = "consensus_failed"
)

// TrustAdjustment is an append-only audit record of a single trust score
// change. Rows are never updated or deleted.
type TrustAdjustment struct {
	ID        uint    `gorm:"primaryKey"`
	PlayerID  string  `gorm:"size:64;not null;index"`
	OldScore  float64 `gorm:"not null"`
	NewScore  float64 `gorm:"not null"`
	Delta     float64 `gorm:"not null"`
	Reason    string  `gorm:"size:32;not null;index"`
	RequestID string  `gorm:"size:32;index"` // empty when not tied to a request
	CreatedAt time.Time `gorm:"index"`
}
