package emailcode

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/infrastructure/redis"
	"github.com/stepup-id/api/internal/repository"
)

// RedisClient defines the Redis operations needed by this service
type RedisClient interface {
	SetEmailCode(ctx context.Context, identityID, code string, ttl time.Duration) error
	ConsumeEmailCode(ctx context.Context, identityID, code string) (redis.ConsumeResult, error)
	ClearEmailCode(ctx context.Context, identityID string) error
}

// Sender delivers a code to the identity's email address
type Sender interface {
	SendCode(ctx context.Context, identityID uuid.UUID, recipient, code string) error
}

// AuditRepository defines the audit operations needed by this service
type AuditRepository interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}
