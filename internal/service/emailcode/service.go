package emailcode

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/infrastructure/redis"
	"github.com/stepup-id/api/internal/infrastructure/token"
	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/repository"
)

// DefaultCodeTTL bounds how long a dispatched code stays verifiable
const DefaultCodeTTL = 10 * time.Minute

// Service handles email verification codes. At most one code is
// outstanding per identity; dispatching a new one overwrites the old.
type Service struct {
	redisClient RedisClient
	sender      Sender
	auditRepo   AuditRepository
	codeTTL     time.Duration
}

// NewService creates a new email code service
func NewService(redisClient RedisClient, sender Sender, auditRepo AuditRepository, codeTTL time.Duration) *Service {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &Service{
		redisClient: redisClient,
		sender:      sender,
		auditRepo:   auditRepo,
		codeTTL:     codeTTL,
	}
}

// GenerateAndDispatch creates a code, stores it, and hands it to the
// delivery transport. A failed delivery rolls the stored code back so
// an undeliverable code can never be verified later.
func (s *Service) GenerateAndDispatch(ctx context.Context, identityID uuid.UUID, recipient, clientIP, userAgent string) error {
	code, err := token.NewNumericCode()
	if err != nil {
		slog.Error("Failed to generate email code", slog.Any("error", err))
		return apperror.InternalError("Could not generate verification code")
	}

	if err := s.redisClient.SetEmailCode(ctx, identityID.String(), code, s.codeTTL); err != nil {
		return apperror.StoreUnavailable(err)
	}

	if err := s.sender.SendCode(ctx, identityID, recipient, code); err != nil {
		slog.Error("Failed to dispatch email code", slog.Any("error", err),
			slog.String("identity_id", identityID.String()))
		if clearErr := s.redisClient.ClearEmailCode(ctx, identityID.String()); clearErr != nil {
			slog.Warn("Failed to roll back undelivered code", slog.Any("error", clearErr))
		}
		s.logEvent(ctx, "email_code_dispatch_failed", identityID, clientIP, userAgent, false, "delivery failed")
		return apperror.TransportFailure().WithError(err)
	}

	s.logEvent(ctx, "email_code_dispatched", identityID, clientIP, userAgent, true, "")
	return nil
}

// Verify atomically checks the submitted code against the outstanding
// one and clears it. Any attempt consumes the code.
func (s *Service) Verify(ctx context.Context, identityID uuid.UUID, code string) error {
	result, err := s.redisClient.ConsumeEmailCode(ctx, identityID.String(), code)
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	switch result {
	case redis.ConsumeOK:
		return nil
	case redis.ConsumeExpired:
		return apperror.ExpiredCode()
	case redis.ConsumeMismatch:
		return apperror.InvalidCode()
	case redis.ConsumeMissing:
		return apperror.ChallengeNotFound()
	default:
		return apperror.InternalError("Unexpected verification outcome")
	}
}

// Clear discards the outstanding code, if any
func (s *Service) Clear(ctx context.Context, identityID uuid.UUID) error {
	if err := s.redisClient.ClearEmailCode(ctx, identityID.String()); err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, identityID uuid.UUID, clientIP, userAgent string, success bool, failureReason string) {
	err := s.auditRepo.LogEvent(ctx, repository.AuditEvent{
		EventType:     eventType,
		IdentityID:    identityID.String(),
		ClientIP:      clientIP,
		UserAgent:     userAgent,
		Success:       success,
		FailureReason: failureReason,
	})
	if err != nil {
		slog.Warn("Failed to write audit event", slog.String("event", eventType), slog.Any("error", err))
	}
}
