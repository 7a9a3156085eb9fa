package login

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	redisInfra "github.com/stepup-id/api/internal/infrastructure/redis"
	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/repository"
)

// Login outcome statuses
const (
	StatusAuthenticated  = "authenticated"
	StatusStepUpRequired = "stepup_required"
)

// Service orchestrates the login flow after the identity provider has
// verified the primary credential: it decides whether a step-up is
// required, issues the challenge, and settles verification attempts.
type Service struct {
	identityRepo    IdentityRepository
	cache           SnapshotCache
	challenges      ChallengeService
	totpService     TOTPService
	emailService    EmailCodeService
	recoveryService RecoveryService
	redisClient     RedisClient
	auditRepo       AuditRepository
}

// NewService creates a new login orchestrator
func NewService(
	identityRepo IdentityRepository,
	cache SnapshotCache,
	challenges ChallengeService,
	totpService TOTPService,
	emailService EmailCodeService,
	recoveryService RecoveryService,
	redisClient RedisClient,
	auditRepo AuditRepository,
) *Service {
	return &Service{
		identityRepo:    identityRepo,
		cache:           cache,
		challenges:      challenges,
		totpService:     totpService,
		emailService:    emailService,
		recoveryService: recoveryService,
		redisClient:     redisClient,
		auditRepo:       auditRepo,
	}
}

// BeginLoginResponse is the outcome of the step-up decision
type BeginLoginResponse struct {
	Status         string              `json:"status"`
	IdentityID     string              `json:"identity_id"`
	Method         domain.FactorMethod `json:"method,omitempty"`
	ChallengeToken string              `json:"challenge_token,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
}

// CompleteLoginResponse is the outcome of settling a challenge
type CompleteLoginResponse struct {
	Status         string `json:"status"`
	IdentityID     string `json:"identity_id"`
	CodesRemaining *int64 `json:"codes_remaining,omitempty"`
	LowOnCodes     bool   `json:"low_on_codes,omitempty"`
}

// StatusResponse describes the identity's current factor state
type StatusResponse struct {
	IdentityID             string              `json:"identity_id"`
	Method                 domain.FactorMethod `json:"method"`
	Enabled                bool                `json:"enabled"`
	ConfirmedAt            *time.Time          `json:"confirmed_at,omitempty"`
	RecoveryCodesRemaining int64               `json:"recovery_codes_remaining"`
}

// EnrollmentResponse carries recovery codes minted when a factor
// becomes active, shown once
type EnrollmentResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// ResolveIdentity maps a provider subject from a verified ID token to a
// local identity
func (s *Service) ResolveIdentity(ctx context.Context, providerSubject string) (*domain.Identity, error) {
	identity, err := s.identityRepo.GetByProviderSubject(ctx, providerSubject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.ValidationError("No identity for this account")
		}
		return nil, apperror.StoreUnavailable(err)
	}
	return identity, nil
}

// BeginLogin runs the step-up decision for an identity whose primary
// credential has just been verified. Either the login finishes here or
// a challenge comes back for the second factor.
func (s *Service) BeginLogin(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*BeginLoginResponse, error) {
	snapshot, err := s.snapshotFor(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if !snapshot.Enabled() {
		if err := s.identityRepo.UpdateLastLogin(ctx, identityID); err != nil {
			slog.Warn("Failed to update last login", slog.Any("error", err))
		}
		s.logEvent(ctx, "login_no_stepup", identityID, clientIP, userAgent, true, "", nil)
		loginsTotal.WithLabelValues("no_stepup").Inc()
		return &BeginLoginResponse{
			Status:     StatusAuthenticated,
			IdentityID: identityID.String(),
		}, nil
	}

	ch, err := s.challenges.Issue(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if snapshot.Method == domain.MethodEmail {
		if err := s.emailService.GenerateAndDispatch(ctx, identityID, snapshot.Email, clientIP, userAgent); err != nil {
			// Do not leave a challenge the caller can never answer
			if clearErr := s.challenges.Clear(ctx, identityID); clearErr != nil {
				slog.Warn("Failed to clear challenge after dispatch failure", slog.Any("error", clearErr))
			}
			return nil, err
		}
	}

	s.logEvent(ctx, "challenge_issued", identityID, clientIP, userAgent, true, "",
		map[string]interface{}{"method": string(snapshot.Method)})
	loginsTotal.WithLabelValues("stepup_required").Inc()
	challengesIssuedTotal.WithLabelValues(string(snapshot.Method)).Inc()

	return &BeginLoginResponse{
		Status:         StatusStepUpRequired,
		IdentityID:     identityID.String(),
		Method:         snapshot.Method,
		ChallengeToken: ch.Token,
		ExpiresAt:      &ch.ExpiresAt,
	}, nil
}

// CompleteLogin settles an outstanding challenge with a factor code.
// The challenge is spent by this attempt; a failed code sends the
// caller back to BeginLogin.
func (s *Service) CompleteLogin(ctx context.Context, identityID uuid.UUID, challengeToken, code, clientIP, userAgent string) (*CompleteLoginResponse, error) {
	if err := s.checkLockout(ctx, identityID); err != nil {
		return nil, err
	}

	if err := s.challenges.Consume(ctx, identityID, challengeToken); err != nil {
		s.logEvent(ctx, "challenge_failed", identityID, clientIP, userAgent, false,
			string(apperror.KindOf(err)), nil)
		return nil, err
	}

	snapshot, err := s.snapshotFor(ctx, identityID)
	if err != nil {
		return nil, err
	}

	var verifyErr error
	switch snapshot.Method {
	case domain.MethodTOTP:
		verifyErr = s.totpService.VerifyCode(ctx, identityID, code)
	case domain.MethodEmail:
		verifyErr = s.emailService.Verify(ctx, identityID, code)
	default:
		return nil, apperror.NotEnrolled()
	}

	if verifyErr != nil {
		s.recordVerifyFailure(ctx, identityID, string(snapshot.Method), verifyErr, clientIP, userAgent)
		return nil, verifyErr
	}

	s.finishLogin(ctx, identityID, string(snapshot.Method), clientIP, userAgent)
	return &CompleteLoginResponse{
		Status:     StatusAuthenticated,
		IdentityID: identityID.String(),
	}, nil
}

// CompleteLoginWithRecoveryCode settles an outstanding challenge with a
// fallback recovery code instead of the enrolled factor
func (s *Service) CompleteLoginWithRecoveryCode(ctx context.Context, identityID uuid.UUID, challengeToken, code, clientIP, userAgent string) (*CompleteLoginResponse, error) {
	if err := s.checkLockout(ctx, identityID); err != nil {
		return nil, err
	}

	if err := s.challenges.Consume(ctx, identityID, challengeToken); err != nil {
		s.logEvent(ctx, "challenge_failed", identityID, clientIP, userAgent, false,
			string(apperror.KindOf(err)), nil)
		return nil, err
	}

	result, err := s.recoveryService.VerifyAndConsume(ctx, identityID, code, clientIP, userAgent)
	if err != nil {
		s.recordVerifyFailure(ctx, identityID, "recovery", err, clientIP, userAgent)
		return nil, err
	}

	// Any email code in flight is dead once the login settles
	if err := s.emailService.Clear(ctx, identityID); err != nil {
		slog.Warn("Failed to clear outstanding email code", slog.Any("error", err))
	}

	s.finishLogin(ctx, identityID, "recovery", clientIP, userAgent)
	return &CompleteLoginResponse{
		Status:         StatusAuthenticated,
		IdentityID:     identityID.String(),
		CodesRemaining: &result.CodesRemaining,
		LowOnCodes:     result.LowOnCodes,
	}, nil
}

// EnrollTOTP starts authenticator enrollment; the factor stays dormant
// until ConfirmTOTP
func (s *Service) EnrollTOTP(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*BeginTOTPEnrollment, error) {
	resp, err := s.totpService.Enroll(ctx, identityID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(identityID)
	return &BeginTOTPEnrollment{
		Secret:     resp.Secret,
		OTPAuthURL: resp.OTPAuthURL,
	}, nil
}

// BeginTOTPEnrollment carries authenticator provisioning material
type BeginTOTPEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// ConfirmTOTP activates a pending authenticator factor and hands out
// the recovery code batch minted with it
func (s *Service) ConfirmTOTP(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) (*EnrollmentResponse, error) {
	// Mint the batch before activation so a storage failure cannot
	// strand an active factor without recovery codes
	codes, err := s.recoveryService.GenerateAndStore(ctx, identityID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.totpService.Confirm(ctx, identityID, code, clientIP, userAgent); err != nil {
		if delErr := s.recoveryService.DeleteAll(ctx, identityID); delErr != nil {
			slog.Warn("Failed to discard recovery codes after confirm failure", slog.Any("error", delErr))
		}
		return nil, err
	}
	s.cache.Invalidate(identityID)

	return &EnrollmentResponse{RecoveryCodes: codes.Codes}, nil
}

// EnrollEmail activates the email factor. The address was verified by
// the identity provider, so enrollment confirms in one step. Recovery
// codes belong to the authenticator factor only.
func (s *Service) EnrollEmail(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) error {
	snapshot, err := s.snapshotFor(ctx, identityID)
	if err != nil {
		return err
	}
	if snapshot.Enabled() {
		return apperror.AlreadyEnrolled()
	}

	if err := s.identityRepo.ConfirmFactor(ctx, identityID, domain.MethodEmail); err != nil {
		return apperror.StoreUnavailable(err)
	}
	s.cache.Invalidate(identityID)

	s.logEvent(ctx, "email_factor_enrolled", identityID, clientIP, userAgent, true, "", nil)
	return nil
}

// Disable turns the second factor off: the secret, the recovery codes,
// and anything outstanding all go
func (s *Service) Disable(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) error {
	snapshot, err := s.snapshotFor(ctx, identityID)
	if err != nil {
		return err
	}
	if snapshot.Method == domain.MethodNone {
		return apperror.NotEnrolled()
	}

	if err := s.identityRepo.ClearFactorState(ctx, identityID); err != nil {
		return apperror.StoreUnavailable(err)
	}
	s.cache.Invalidate(identityID)

	if err := s.recoveryService.DeleteAll(ctx, identityID); err != nil {
		slog.Warn("Failed to delete recovery codes", slog.Any("error", err))
	}
	if err := s.challenges.Clear(ctx, identityID); err != nil {
		slog.Warn("Failed to clear outstanding challenge", slog.Any("error", err))
	}
	if err := s.emailService.Clear(ctx, identityID); err != nil {
		slog.Warn("Failed to clear outstanding email code", slog.Any("error", err))
	}

	s.logEvent(ctx, "factor_disabled", identityID, clientIP, userAgent, true, "",
		map[string]interface{}{"method": string(snapshot.Method)})
	return nil
}

// Status reports the current factor state, bypassing the cache so the
// caller sees its own writes
func (s *Service) Status(ctx context.Context, identityID uuid.UUID) (*StatusResponse, error) {
	snapshot, err := s.identityRepo.GetFactorState(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.ValidationError("No identity for this account")
		}
		return nil, apperror.StoreUnavailable(err)
	}

	remaining, err := s.recoveryService.CountRemaining(ctx, identityID)
	if err != nil {
		slog.Warn("Failed to count recovery codes", slog.Any("error", err))
	}

	return &StatusResponse{
		IdentityID:             identityID.String(),
		Method:                 snapshot.Method,
		Enabled:                snapshot.Enabled(),
		ConfirmedAt:            snapshot.ConfirmedAt,
		RecoveryCodesRemaining: remaining,
	}, nil
}

// snapshotFor reads the factor snapshot through the cache
func (s *Service) snapshotFor(ctx context.Context, identityID uuid.UUID) (domain.FactorSnapshot, error) {
	if snapshot, ok := s.cache.Get(identityID); ok {
		snapshotCacheLookupsTotal.WithLabelValues("hit").Inc()
		return snapshot, nil
	}
	snapshotCacheLookupsTotal.WithLabelValues("miss").Inc()

	snapshot, err := s.identityRepo.GetFactorState(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.FactorSnapshot{}, apperror.ValidationError("No identity for this account")
		}
		return domain.FactorSnapshot{}, apperror.StoreUnavailable(err)
	}
	s.cache.Put(identityID, snapshot)
	return snapshot, nil
}

func (s *Service) checkLockout(ctx context.Context, identityID uuid.UUID) error {
	locked, ttl, err := s.redisClient.IsLockedOut(ctx, identityID.String())
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	if locked {
		return apperror.TooManyAttempts(ttl)
	}
	return nil
}

func (s *Service) recordVerifyFailure(ctx context.Context, identityID uuid.UUID, method string, verifyErr error, clientIP, userAgent string) {
	kind := apperror.KindOf(verifyErr)
	verificationsTotal.WithLabelValues(method, "failure").Inc()
	s.logEvent(ctx, "stepup_failed", identityID, clientIP, userAgent, false, string(kind),
		map[string]interface{}{"method": method})

	// Infrastructure trouble is not the caller guessing codes
	if kind == apperror.KindStoreUnavailable || kind == apperror.KindInternal {
		return
	}

	count, err := s.redisClient.IncrementFailedAttempts(ctx, identityID.String())
	if err != nil {
		slog.Warn("Failed to increment attempt counter", slog.Any("error", err))
		return
	}
	if count == int64(redisInfra.MaxFailedAttempts) {
		lockoutsTotal.Inc()
		slog.Warn("Verification lockout triggered",
			slog.String("identity_id", identityID.String()),
			slog.Int64("failed_attempts", count))
	}
}

func (s *Service) finishLogin(ctx context.Context, identityID uuid.UUID, method, clientIP, userAgent string) {
	if err := s.redisClient.ResetFailedAttempts(ctx, identityID.String()); err != nil {
		slog.Warn("Failed to reset attempt counter", slog.Any("error", err))
	}
	if err := s.identityRepo.UpdateLastLogin(ctx, identityID); err != nil {
		slog.Warn("Failed to update last login", slog.Any("error", err))
	}
	verificationsTotal.WithLabelValues(method, "success").Inc()
	loginsTotal.WithLabelValues("stepup_completed").Inc()
	s.logEvent(ctx, "stepup_verified", identityID, clientIP, userAgent, true, "",
		map[string]interface{}{"method": method})
}

func (s *Service) logEvent(ctx context.Context, eventType string, identityID uuid.UUID, clientIP, userAgent string, success bool, failureReason string, metadata map[string]interface{}) {
	err := s.auditRepo.LogEvent(ctx, repository.AuditEvent{
		EventType:     eventType,
		IdentityID:    identityID.String(),
		ClientIP:      clientIP,
		UserAgent:     userAgent,
		Success:       success,
		FailureReason: failureReason,
		Metadata:      metadata,
	})
	if err != nil {
		slog.Warn("Failed to write audit event", slog.String("event", eventType), slog.Any("error", err))
	}
}
