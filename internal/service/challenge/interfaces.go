package challenge

import (
	"context"
	"time"

	"github.com/stepup-id/api/internal/infrastructure/redis"
)

// RedisClient defines the Redis operations needed by this service
type RedisClient interface {
	SetChallenge(ctx context.Context, identityID, token string, ttl time.Duration) error
	ConsumeChallenge(ctx context.Context, identityID, token string) (redis.ConsumeResult, error)
	ClearChallenge(ctx context.Context, identityID string) error
}
