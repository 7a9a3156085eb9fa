package totp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/config"
	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/infrastructure/redis"
	totpGen "github.com/stepup-id/api/internal/infrastructure/totp"
	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/pkg/crypto"
	"github.com/stepup-id/api/internal/repository"
)

// Service handles authenticator-app factor operations. Secrets are
// AES-GCM encrypted before they reach the identity store and decrypted
// only for the duration of a single verification.
type Service struct {
	cfg          config.TOTPConfig
	encryptor    Encryptor
	identityRepo IdentityRepository
	auditRepo    AuditRepository
	redisClient  RedisClient
}

// NewService creates a new TOTP service with real implementations
func NewService(cfg config.TOTPConfig, identityRepo repository.IdentityRepository, auditRepo repository.AuditRepository, redisClient *redis.Client) (*Service, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOTP encryption key: %w", err)
	}
	encryptor, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES encryptor: %w", err)
	}
	return &Service{
		cfg:          cfg,
		encryptor:    encryptor,
		identityRepo: identityRepo,
		auditRepo:    auditRepo,
		redisClient:  redisClient,
	}, nil
}

// NewServiceWithDeps creates a new TOTP service with injected dependencies (for testing)
func NewServiceWithDeps(cfg config.TOTPConfig, encryptor Encryptor, identityRepo IdentityRepository, auditRepo AuditRepository, redisClient RedisClient) *Service {
	return &Service{
		cfg:          cfg,
		encryptor:    encryptor,
		identityRepo: identityRepo,
		auditRepo:    auditRepo,
		redisClient:  redisClient,
	}
}

// EnrollResponse carries the provisioning material, shown once
type EnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// Enroll generates a fresh secret and parks it as pending. The factor
// does not gate logins until Confirm proves the authenticator works.
// Re-enrolling while a pending secret exists overwrites it.
func (s *Service) Enroll(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*EnrollResponse, error) {
	identity, err := s.identityRepo.GetByID(ctx, identityID)
	if err != nil {
		slog.Error("Failed to get identity", slog.Any("error", err),
			slog.String("identity_id", identityID.String()))
		return nil, apperror.StoreUnavailable(err)
	}
	if identity.FactorEnabled() {
		return nil, apperror.AlreadyEnrolled()
	}

	result, err := totpGen.Generate(s.cfg.Issuer, identity.Email)
	if err != nil {
		slog.Error("Failed to generate TOTP secret", slog.Any("error", err))
		return nil, apperror.InternalError("Could not generate authenticator secret")
	}

	encrypted, err := s.encryptor.Encrypt([]byte(result.Secret))
	if err != nil {
		slog.Error("Failed to encrypt TOTP secret", slog.Any("error", err))
		return nil, apperror.InternalError("Could not protect authenticator secret")
	}

	if err := s.identityRepo.SetFactorTOTPPending(ctx, identityID, []byte(encrypted)); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	s.logEvent(ctx, "totp_enroll_initiated", identityID, clientIP, userAgent, true, "")

	return &EnrollResponse{
		Secret:     result.Secret,
		OTPAuthURL: result.OTPAuthURL,
	}, nil
}

// Confirm proves the enrolled authenticator produces valid codes and
// activates the factor
func (s *Service) Confirm(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) error {
	identity, err := s.identityRepo.GetByID(ctx, identityID)
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	if identity.FactorMethod != domain.MethodTOTP || len(identity.FactorSecretEncrypted) == 0 {
		return apperror.NotEnrolled()
	}
	if identity.FactorEnabled() {
		return apperror.AlreadyEnrolled()
	}

	if err := s.verifySecret(ctx, identityID, identity.FactorSecretEncrypted, code); err != nil {
		s.logEvent(ctx, "totp_confirm_failed", identityID, clientIP, userAgent, false, "invalid code")
		return err
	}

	if err := s.identityRepo.ConfirmFactor(ctx, identityID, domain.MethodTOTP); err != nil {
		return apperror.StoreUnavailable(err)
	}

	s.logEvent(ctx, "totp_confirmed", identityID, clientIP, userAgent, true, "")
	return nil
}

// VerifyCode checks a login-time code against the active factor
func (s *Service) VerifyCode(ctx context.Context, identityID uuid.UUID, code string) error {
	identity, err := s.identityRepo.GetByID(ctx, identityID)
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	if identity.FactorMethod != domain.MethodTOTP || !identity.FactorEnabled() {
		return apperror.NotEnrolled()
	}
	return s.verifySecret(ctx, identityID, identity.FactorSecretEncrypted, code)
}

// verifySecret decrypts, validates within the skew window, and claims
// the code against replay. The replay claim only happens after a valid
// match so attackers cannot burn codes they do not know.
func (s *Service) verifySecret(ctx context.Context, identityID uuid.UUID, encryptedSecret []byte, code string) error {
	secret, err := s.encryptor.Decrypt(string(encryptedSecret))
	if err != nil {
		slog.Error("Failed to decrypt TOTP secret", slog.Any("error", err),
			slog.String("identity_id", identityID.String()))
		return apperror.InternalError("Could not read authenticator secret")
	}

	if !totpGen.ValidateCode(string(secret), code) {
		return apperror.InvalidCode()
	}

	fresh, err := s.redisClient.MarkTOTPCodeUsed(ctx, identityID.String(), code)
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	if !fresh {
		// Valid but already spent within its window
		return apperror.InvalidCode()
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
