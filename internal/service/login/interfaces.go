package login

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/repository"
	"github.com/stepup-id/api/internal/service/recovery"
	"github.com/stepup-id/api/internal/service/totp"
)

// IdentityRepository defines the identity operations needed by this service
type IdentityRepository interface {
	GetByProviderSubject(ctx context.Context, subject string) (*domain.Identity, error)
	GetFactorState(ctx context.Context, id uuid.UUID) (domain.FactorSnapshot, error)
	ConfirmFactor(ctx context.Context, id uuid.UUID, method domain.FactorMethod) error
	ClearFactorState(ctx context.Context, id uuid.UUID) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// SnapshotCache sits in front of the identity store for step-up
// evaluation reads
type SnapshotCache interface {
	Get(id uuid.UUID) (domain.FactorSnapshot, bool)
	Put(id uuid.UUID, snapshot domain.FactorSnapshot)
	Invalidate(id uuid.UUID)
}

// ChallengeService issues and settles step-up challenges
type ChallengeService interface {
	Issue(ctx context.Context, identityID uuid.UUID) (*domain.StepUpChallenge, error)
	Consume(ctx context.Context, identityID uuid.UUID, token string) error
	Clear(ctx context.Context, identityID uuid.UUID) error
}

// TOTPService handles the authenticator-app factor
type TOTPService interface {
	Enroll(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*totp.EnrollResponse, error)
	Confirm(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) error
	VerifyCode(ctx context.Context, identityID uuid.UUID, code string) error
}

// EmailCodeService handles the email-delivered factor
type EmailCodeService interface {
	GenerateAndDispatch(ctx context.Context, identityID uuid.UUID, recipient, clientIP, userAgent string) error
	Verify(ctx context.Context, identityID uuid.UUID, code string) error
	Clear(ctx context.Context, identityID uuid.UUID) error
}

// RecoveryService handles fallback recovery codes
type RecoveryService interface {
	GenerateAndStore(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*recovery.GenerateResponse, error)
	VerifyAndConsume(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) (*recovery.VerifyResult, error)
	DeleteAll(ctx context.Context, identityID uuid.UUID) error
	CountRemaining(ctx context.Context, identityID uuid.UUID) (int64, error)
}

// RedisClient defines the brute force counter operations needed here
type RedisClient interface {
	IsLockedOut(ctx context.Context, identityID string) (bool, time.Duration, error)
	IncrementFailedAttempts(ctx context.Context, identityID string) (int64, error)
	ResetFailedAttempts(ctx context.Context, identityID string) error
}

// AuditRepository defines the audit operations needed by this service
type AuditRepository interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}
