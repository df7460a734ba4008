package models

import "time"

// Event types accepted for validation.
const (
	EventBlockPlace     = "block_place"
	EventSchematicPlace = "schematic_place"
	EventChunkModify    = "chunk_modify"
	EventTerrainEdit    = "terrain_edit"
)

// ValidEventType reports whether t is one of the supported event types.
func ValidEventType(t string) bool {
	switch t {
	case EventBlockPlace, EventSchematicPlace, EventChunkModify, EventTerrainEdit:
		return true
	}
	return false
}

// Terminal and non-terminal outcomes of a consensus request.
const (
	OutcomePending  = "pending"
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeExpired  = "expired"
)

// ConsensusRequest is one action awaiting validator agreement. The row
// transitions exactly once from pending to a terminal outcome; the guarded
// conditional update in the store enforces this.
type ConsensusRequest struct {
	ID           string `gorm:"primaryKey;size:32"`
	EventType    string `gorm:"size:32;not null;index"`
	EventDataRef string `gorm:"size:128;not null"`
	SubmitterID  string `gorm:"size:64;not null;index"`

	// Optional spatial locality hints.
	RegionID string `gorm:"size:64;index"`
	BodyID   string `gorm:"size:64"`

	RequiredValidators int       `gorm:"not null"`
	ExpiresAt          time.Time `gorm:"not null;index"`

	Outcome       string `gorm:"size:16;not null;default:pending;index"`
	AgreeCount    int
	DisagreeCount int
	ResolvedAt    *time.Time

	// Comma-joined manipulation-heuristic tags attached at resolution.
	Warnings string `gorm:"size:256"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Resolved reports whether the request has left the pending state.
func (r *ConsensusRequest) Resolved() bool {
	return r.Outcome != OutcomePending
}
