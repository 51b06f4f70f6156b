// model/exception.go
package model

import "time"

// Exception is a pre-approved, scoped acceptance of a specific finding code.
// Exceptions are data, never code: they live in the registry, independent of
// pipeline logic, so they can be audited and expired on their own.
type Exception struct {
	ID          string `json:"id"`
	FindingCode string `json:"finding_code" binding:"required"`
	// Environment limits the exception to one target environment.
	// Empty or "*" covers every environment.
	Environment string `json:"environment,omitempty"`
	// Fingerprint pins the exception to one exact change. Empty covers any.
	Fingerprint   string `json:"fingerprint,omitempty"`
	Justification string `json:"justification" binding:"required"`
	// ExpiresAt is the instant the exception stops suppressing. The zero
	// value means no expiry. Exactly-at-expiry counts as expired.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Expired reports whether the exception no longer suppresses at now.
func (e Exception) Expired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// Covers reports whether the exception's scope includes the given finding
// code and change.
func (e Exception) Covers(code string, cd ChangeDescriptor) bool {
	if e.FindingCode != code {
		return false
	}
	if e.Environment != "" && e.Environment != "*" && e.Environment != cd.Environment {
		return false
	}
	if e.Fingerprint != "" && e.Fingerprint != cd.Fingerprint {
		return false
	}
	return true
}
