package challenge

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/infrastructure/redis"
	"github.com/stepup-id/api/internal/infrastructure/token"
	"github.com/stepup-id/api/internal/pkg/apperror"
)

// DefaultChallengeTTL bounds how long an issued challenge can be answered
const DefaultChallengeTTL = 10 * time.Minute

// Service issues and settles step-up challenges. An identity has at
// most one outstanding challenge; issuing a new one invalidates the old.
type Service struct {
	redisClient RedisClient
	ttl         time.Duration
}

// NewService creates a new challenge service
func NewService(redisClient RedisClient, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &Service{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

// Issue mints an opaque challenge token for the identity
func (s *Service) Issue(ctx context.Context, identityID uuid.UUID) (*domain.StepUpChallenge, error) {
	tok, err := token.NewChallengeToken()
	if err != nil {
		slog.Error("Failed to generate challenge token", slog.Any("error", err))
		return nil, apperror.InternalError("Could not create challenge")
	}

	if err := s.redisClient.SetChallenge(ctx, identityID.String(), tok, s.ttl); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	return &domain.StepUpChallenge{
		IdentityID: identityID,
		Token:      tok,
		ExpiresAt:  time.Now().Add(s.ttl),
	}, nil
}

// Consume settles the outstanding challenge against a submitted token.
// The challenge is spent by the attempt whatever the outcome; a failed
// attempt forces the caller back through a fresh login.
func (s *Service) Consume(ctx context.Context, identityID uuid.UUID, tok string) error {
	result, err := s.redisClient.ConsumeChallenge(ctx, identityID.String(), tok)
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	switch result {
	case redis.ConsumeOK:
		return nil
	case redis.ConsumeExpired:
		return apperror.ExpiredChallenge()
	case redis.ConsumeMismatch, redis.ConsumeMissing:
		return apperror.ChallengeNotFound()
	default:
		return apperror.InternalError("Unexpected challenge outcome")
	}
}

// Clear abandons the outstanding challenge, if any
func (s *Service) Clear(ctx context.Context, identityID uuid.UUID) error {
	if err := s.redisClient.ClearChallenge(ctx, identityID.String()); err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}
