package domain

import (
	"time"

	"github.com/google/uuid"
)

// FactorMethod is the enrolled second-factor method. At most one method is
// enrolled per identity at any time.
type FactorMethod string

const (
	MethodNone  FactorMethod = "none"
	MethodTOTP  FactorMethod = "totp"
	MethodEmail FactorMethod = "email"
)

// Valid reports whether m is one of the known methods.
func (m FactorMethod) Valid() bool {
	switch m {
	case MethodNone, MethodTOTP, MethodEmail:
		return true
	}
	return false
}

type IdentityStatus string

const (
	IdentityStatusActive   IdentityStatus = "active"
	IdentityStatusInactive IdentityStatus = "inactive"
	IdentityStatusLocked   IdentityStatus = "locked"
)

// Identity is a user account as this subsystem sees it. The primary
// credential lives with the external identity provider; only the
// second-factor state is owned here.
type Identity struct {
	ID                    uuid.UUID      `json:"id"`
	Email                 string         `json:"email"`
	FactorMethod          FactorMethod   `json:"factor_method"`
	FactorSecretEncrypted []byte         `json:"-"` // Never expose
	FactorConfirmedAt     *time.Time     `json:"factor_confirmed_at,omitempty"`
	Status                IdentityStatus `json:"status"`
	ProviderSubject       string         `json:"provider_subject,omitempty"`
	LastLoginAt           *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// FactorEnabled reports whether a confirmed second factor is active.
// An enrolled-but-unconfirmed TOTP secret does not gate login.
func (i *Identity) FactorEnabled() bool {
	return i.FactorMethod != MethodNone && i.FactorConfirmedAt != nil
}

// Snapshot returns the cacheable view of the identity's factor state.
func (i *Identity) Snapshot() FactorSnapshot {
	return FactorSnapshot{
		IdentityID:  i.ID,
		Method:      i.FactorMethod,
		Email:       i.Email,
		ConfirmedAt: i.FactorConfirmedAt,
	}
}

// FactorSnapshot is the cached profile/factor view used on the hot login
// path so that most requests avoid a store round trip.
type FactorSnapshot struct {
	IdentityID  uuid.UUID    `json:"identity_id"`
	Method      FactorMethod `json:"method"`
	Email       string       `json:"email"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
}

// Enabled reports whether the snapshot describes an active second factor.
func (s FactorSnapshot) Enabled() bool {
	return s.Method != MethodNone && s.ConfirmedAt != nil
}
