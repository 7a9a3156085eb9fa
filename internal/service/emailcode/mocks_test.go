package emailcode

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/infrastructure/redis"
	"github.com/stepup-id/api/internal/repository"
)

var (
	ErrStoreDown = errors.New("store down")
	ErrSendDown  = errors.New("delivery service down")
)

type storedCode struct {
	code      string
	expiresAt time.Time
}

// MockRedisClient implements RedisClient for testing, mirroring the
// consume-on-any-attempt semantics of the real store
type MockRedisClient struct {
	Codes map[string]storedCode
	Now   time.Time

	SetErr     error
	ConsumeErr error
	ClearErr   error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		Codes: make(map[string]storedCode),
		Now:   time.Now(),
	}
}

func (m *MockRedisClient) SetEmailCode(ctx context.Context, identityID, code string, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Codes[identityID] = storedCode{code: code, expiresAt: m.Now.Add(ttl)}
	return nil
}

func (m *MockRedisClient) ConsumeEmailCode(ctx context.Context, identityID, code string) (redis.ConsumeResult, error) {
	if m.ConsumeErr != nil {
		return "", m.ConsumeErr
	}
	stored, ok := m.Codes[identityID]
	if !ok {
		return redis.ConsumeMissing, nil
	}
	delete(m.Codes, identityID)
	if !m.Now.Before(stored.expiresAt) {
		return redis.ConsumeExpired, nil
	}
	if stored.code != code {
		return redis.ConsumeMismatch, nil
	}
	return redis.ConsumeOK, nil
}

func (m *MockRedisClient) ClearEmailCode(ctx context.Context, identityID string) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.Codes, identityID)
	return nil
}

// MockSender implements Sender for testing
type MockSender struct {
	Sent    []sentCode
	SendErr error
}

type sentCode struct {
	IdentityID uuid.UUID
	Recipient  string
	Code       string
}

func (m *MockSender) SendCode(ctx context.Context, identityID uuid.UUID, recipient, code string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, sentCode{IdentityID: identityID, Recipient: recipient, Code: code})
	return nil
}

// MockAuditRepository implements AuditRepository for testing
type MockAuditRepository struct {
	Events []repository.AuditEvent
}

func (m *MockAuditRepository) LogEvent(ctx context.Context, event repository.AuditEvent) error {
	m.Events = append(m.Events, event)
	return nil
}
