package recovery

import (
	"context"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/repository"
)

// RecoveryRepository defines the recovery code operations needed by this service
type RecoveryRepository interface {
	CreateCodes(ctx context.Context, identityID uuid.UUID, codeHashes []string) error
	GetUnusedCodes(ctx context.Context, identityID uuid.UUID) ([]*domain.RecoveryCode, error)
	MarkCodeUsed(ctx context.Context, identityID, codeID uuid.UUID) (bool, error)
	DeleteAllCodes(ctx context.Context, identityID uuid.UUID) error
	CountUnusedCodes(ctx context.Context, identityID uuid.UUID) (int64, error)
}

// AuditRepository defines the audit operations needed by this service
type AuditRepository interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}
