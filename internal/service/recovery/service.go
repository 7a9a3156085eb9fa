package recovery

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	recoveryGen "github.com/stepup-id/api/internal/infrastructure/recovery"
	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/repository"
)

const (
	BcryptCost = 10

	// LowCodesThreshold triggers a warning in the verify response when
	// the remaining batch drops below it
	LowCodesThreshold = 3
)

// Service handles recovery code operations
type Service struct {
	recoveryRepo RecoveryRepository
	auditRepo    AuditRepository
}

// NewService creates a new recovery service
func NewService(recoveryRepo RecoveryRepository, auditRepo AuditRepository) *Service {
	return &Service{
		recoveryRepo: recoveryRepo,
		auditRepo:    auditRepo,
	}
}

// GenerateResponse contains generated recovery codes
type GenerateResponse struct {
	Codes []string `json:"codes"`
}

// VerifyResult is the outcome of a successful recovery code consumption
type VerifyResult struct {
	CodesRemaining int64
	LowOnCodes     bool
}

// GenerateAndStore creates a fresh batch of recovery codes for an
// identity, replacing any earlier batch. Returns plain codes - these
// are shown ONCE and only hashes are kept.
func (s *Service) GenerateAndStore(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*GenerateResponse, error) {
	plainCodes, err := recoveryGen.GenerateCodes()
	if err != nil {
		slog.Error("Failed to generate recovery codes", slog.Any("error", err))
		return nil, apperror.InternalError("Could not generate recovery codes")
	}

	// Hash codes with bcrypt
	hashedCodes := make([]string, len(plainCodes))
	for i, code := range plainCodes {
		hash, err := bcrypt.GenerateFromPassword([]byte(recoveryGen.NormalizeCode(code)), BcryptCost)
		if err != nil {
			return nil, apperror.InternalError("Could not hash recovery codes")
		}
		hashedCodes[i] = string(hash)
	}

	if err := s.recoveryRepo.CreateCodes(ctx, identityID, hashedCodes); err != nil {
		slog.Error("Failed to store recovery codes", slog.Any("error", err),
			slog.String("identity_id", identityID.String()))
		return nil, apperror.StoreUnavailable(err)
	}

	s.logEvent(ctx, "recovery_codes_generated", identityID, clientIP, userAgent, true, "",
		map[string]interface{}{"code_count": len(plainCodes)})

	return &GenerateResponse{Codes: plainCodes}, nil
}

// VerifyAndConsume matches a submitted code against the unused batch
// and consumes it. A code can win at most once: the conditional update
// in the repository settles concurrent attempts.
func (s *Service) VerifyAndConsume(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) (*VerifyResult, error) {
	if !recoveryGen.IsRecoveryCodeFormat(code) {
		return nil, apperror.ValidationError("Recovery code format is invalid")
	}
	normalized := recoveryGen.NormalizeCode(code)

	codes, err := s.recoveryRepo.GetUnusedCodes(ctx, identityID)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	if len(codes) == 0 {
		s.logEvent(ctx, "recovery_verify_failed", identityID, clientIP, userAgent, false,
			"no codes remaining", nil)
		return nil, apperror.RecoveryCodeExhausted()
	}

	for _, c := range codes {
		if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(normalized)) != nil {
			continue
		}

		consumed, err := s.recoveryRepo.MarkCodeUsed(ctx, identityID, c.ID)
		if err != nil {
			return nil, apperror.StoreUnavailable(err)
		}
		if !consumed {
			// Lost the race: another attempt used this code first
			break
		}

		remaining, err := s.recoveryRepo.CountUnusedCodes(ctx, identityID)
		if err != nil {
			slog.Warn("Failed to count remaining recovery codes", slog.Any("error", err))
			remaining = 0
		}

		s.logEvent(ctx, "recovery_verify_success", identityID, clientIP, userAgent, true, "",
			map[string]interface{}{"code_index": c.CodeIndex, "codes_remaining": remaining})

		if remaining < LowCodesThreshold {
			slog.Warn("Identity is low on recovery codes",
				slog.String("identity_id", identityID.String()),
				slog.Int64("remaining", remaining))
		}

		return &VerifyResult{
			CodesRemaining: remaining,
			LowOnCodes:     remaining < LowCodesThreshold,
		}, nil
	}

	// Used, raced away, or never issued: the code is not in the
	// remaining set either way
	s.logEvent(ctx, "recovery_verify_failed", identityID, clientIP, userAgent, false,
		"no matching code", nil)
	return nil, apperror.RecoveryCodeExhausted()
}

// DeleteAll removes every recovery code for an identity, used when the
// second factor is disabled
func (s *Service) DeleteAll(ctx context.Context, identityID uuid.UUID) error {
	if err := s.recoveryRepo.DeleteAllCodes(ctx, identityID); err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}

// CountRemaining returns how many codes are still unused
func (s *Service) CountRemaining(ctx context.Context, identityID uuid.UUID) (int64, error) {
	count, err := s.recoveryRepo.CountUnusedCodes(ctx, identityID)
	if err != nil {
		return 0, apperror.StoreUnavailable(err)
	}
	return count, nil
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
