package totp

import (
	"context"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/repository"
)

// IdentityRepository defines the identity operations needed by this service
type IdentityRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	SetFactorTOTPPending(ctx context.Context, id uuid.UUID, encryptedSecret []byte) error
	ConfirmFactor(ctx context.Context, id uuid.UUID, method domain.FactorMethod) error
}

// AuditRepository defines the audit operations needed by this service
type AuditRepository interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}

// RedisClient defines the Redis operations needed by this service
type RedisClient interface {
	// Replay protection
	MarkTOTPCodeUsed(ctx context.Context, identityID, code string) (bool, error)
}

// Encryptor defines encryption operations for the secret at rest
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertextBase64 string) ([]byte, error)
}
