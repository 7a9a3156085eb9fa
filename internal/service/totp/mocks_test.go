package totp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/repository"
)

var ErrStoreDown = errors.New("store down")

// MockEncryptor implements Encryptor for testing with a reversible prefix
type MockEncryptor struct {
	EncryptErr error
	DecryptErr error
}

func (m *MockEncryptor) Encrypt(plaintext []byte) (string, error) {
	if m.EncryptErr != nil {
		return "", m.EncryptErr
	}
	return "encrypted:" + string(plaintext), nil
}

func (m *MockEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	if m.DecryptErr != nil {
		return nil, m.DecryptErr
	}
	if len(ciphertext) > 10 && ciphertext[:10] == "encrypted:" {
		return []byte(ciphertext[10:]), nil
	}
	return nil, errors.New("invalid ciphertext")
}

// MockIdentityRepository implements IdentityRepository for testing
type MockIdentityRepository struct {
	Identities map[uuid.UUID]*domain.Identity

	GetByIDErr       error
	SetPendingErr    error
	ConfirmFactorErr error
}

func NewMockIdentityRepository() *MockIdentityRepository {
	return &MockIdentityRepository{
		Identities: make(map[uuid.UUID]*domain.Identity),
	}
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	identity, ok := m.Identities[id]
	if !ok {
		return nil, errors.New("identity not found")
	}
	return identity, nil
}

func (m *MockIdentityRepository) SetFactorTOTPPending(ctx context.Context, id uuid.UUID, encryptedSecret []byte) error {
	if m.SetPendingErr != nil {
		return m.SetPendingErr
	}
	identity := m.Identities[id]
	identity.FactorMethod = domain.MethodTOTP
	identity.FactorSecretEncrypted = encryptedSecret
	identity.FactorConfirmedAt = nil
	return nil
}

func (m *MockIdentityRepository) ConfirmFactor(ctx context.Context, id uuid.UUID, method domain.FactorMethod) error {
	if m.ConfirmFactorErr != nil {
		return m.ConfirmFactorErr
	}
	identity := m.Identities[id]
	identity.FactorMethod = method
	now := time.Now()
	identity.FactorConfirmedAt = &now
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

// MockRedisClient implements RedisClient for testing
type MockRedisClient struct {
	UsedCodes map[string]bool

	MarkTOTPCodeUsedErr error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{UsedCodes: make(map[string]bool)}
}

func (m *MockRedisClient) MarkTOTPCodeUsed(ctx context.Context, identityID, code string) (bool, error) {
	if m.MarkTOTPCodeUsedErr != nil {
		return false, m.MarkTOTPCodeUsedErr
	}
	key := identityID + ":" + code
	if m.UsedCodes[key] {
		return false, nil
	}
	m.UsedCodes[key] = true
	return true, nil
}
