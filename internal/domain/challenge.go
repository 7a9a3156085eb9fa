package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepUpChallenge binds one pending login attempt to one identity. Exactly
// one challenge may be outstanding per identity; issuing a new one
// overwrites any prior challenge.
type StepUpChallenge struct {
	IdentityID uuid.UUID `json:"identity_id"`
	Token      string    `json:"-"` // Never expose
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its expiry at time now.
func (c *StepUpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// EmailCode is the numeric one-time code delivered out-of-band when the
// enrolled method is email. Same single-outstanding, overwrite semantics
// as the challenge.
type EmailCode struct {
	IdentityID uuid.UUID `json:"identity_id"`
	Value      string    `json:"-"` // Never expose
	ExpiresAt  time.Time `json:"expires_at"`
}

func (e *EmailCode) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// RecoveryCode is one of up to eight single-use fallback codes minted when
// TOTP is confirmed. Only the bcrypt hash is ever stored.
type RecoveryCode struct {
	ID         uuid.UUID  `json:"id"`
	IdentityID uuid.UUID  `json:"identity_id"`
	CodeHash   string     `json:"-"` // Never expose hash
	CodeIndex  int        `json:"code_index"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsUsed checks if the recovery code has been consumed.
func (rc *RecoveryCode) IsUsed() bool {
	return rc.UsedAt != nil
}
