package models

import "time"

// Vote is one validator's verdict on a consensus request. The composite
// unique index closes the duplicate-vote race at the database, not in
// application code: a second insert for the same (request, validator)
// pair fails with a unique-constraint violation.
type Vote struct {
	ID          uint   `gorm:"primaryKey"`
	RequestID   string `gorm:"size:32;not null;index:ux_request_validator,unique;index"`
	ValidatorID string `gorm:"size:64;not null;index:ux_request_validator,unique;index"`
	Agrees      bool   `gorm:"not null"`
	ProofRef    string `gorm:"size:128"` // empty when no justification payload was attached
	Timestamp   time.Time
	CreatedAt   time.Time
}
