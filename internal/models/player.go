// Package models defines the database models for the validation service.
package models

import "time"

// Player holds a participant's identity, trust score and cumulative
// validation statistics. TrustScore is always kept in [0,1]; only the
// orchestrator's trust-feedback step mutates it.
type Player struct {
	ID             string  `gorm:"primaryKey;size:64"`
	TrustScore     float64 `gorm:"not null;default:0.5;index"`
	SubmittedCount int64   `gorm:"not null;default:0"`
	CorrectCount   int64   `gorm:"not null;default:0"`
	IncorrectCount int64   `gorm:"not null;default:0"`

	// Last known position, used for proximity scoring during validator
	// selection. HasPosition distinguishes "at origin" from "unknown".
	X           float64
	Y           float64
	Z           float64
	HasPosition bool

	LastActiveAt time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Accuracy returns the fraction of this player's votes that matched the
// final consensus outcome, or 0 if they have never voted.
func (p *Player) Accuracy() float64 {
	if p.SubmittedCount == 0 {
		return 0
	}
	return float64(p.CorrectCount) / float64(p.SubmittedCount)
}
