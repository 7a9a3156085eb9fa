package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/repository"
)

// MockRecoveryRepository implements RecoveryRepository for testing
type MockRecoveryRepository struct {
	Codes map[uuid.UUID][]*domain.RecoveryCode

	// Error injection
	CreateCodesErr     error
	GetUnusedCodesErr  error
	MarkCodeUsedErr    error
	DeleteAllCodesErr  error
	CountUnusedErr     error
	MarkCodeUsedDenied bool // simulate losing the consumption race
}

func NewMockRecoveryRepository() *MockRecoveryRepository {
	return &MockRecoveryRepository{
		Codes: make(map[uuid.UUID][]*domain.RecoveryCode),
	}
}

func (m *MockRecoveryRepository) CreateCodes(ctx context.Context, identityID uuid.UUID, codeHashes []string) error {
	if m.CreateCodesErr != nil {
		return m.CreateCodesErr
	}
	codes := make([]*domain.RecoveryCode, len(codeHashes))
	for i, hash := range codeHashes {
		codes[i] = &domain.RecoveryCode{
			ID:         uuid.New(),
			IdentityID: identityID,
			CodeHash:   hash,
			CodeIndex:  i,
		}
	}
	m.Codes[identityID] = codes
	return nil
}

func (m *MockRecoveryRepository) GetUnusedCodes(ctx context.Context, identityID uuid.UUID) ([]*domain.RecoveryCode, error) {
	if m.GetUnusedCodesErr != nil {
		return nil, m.GetUnusedCodesErr
	}
	var unused []*domain.RecoveryCode
	for _, c := range m.Codes[identityID] {
		if c.UsedAt == nil {
			unused = append(unused, c)
		}
	}
	return unused, nil
}

func (m *MockRecoveryRepository) MarkCodeUsed(ctx context.Context, identityID, codeID uuid.UUID) (bool, error) {
	if m.MarkCodeUsedErr != nil {
		return false, m.MarkCodeUsedErr
	}
	if m.MarkCodeUsedDenied {
		return false, nil
	}
	for _, c := range m.Codes[identityID] {
		if c.ID == codeID && c.UsedAt == nil {
			now := time.Now()
			c.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRecoveryRepository) DeleteAllCodes(ctx context.Context, identityID uuid.UUID) error {
	if m.DeleteAllCodesErr != nil {
		return m.DeleteAllCodesErr
	}
	delete(m.Codes, identityID)
	return nil
}

func (m *MockRecoveryRepository) CountUnusedCodes(ctx context.Context, identityID uuid.UUID) (int64, error) {
	if m.CountUnusedErr != nil {
		return 0, m.CountUnusedErr
	}
	var count int64
	for _, c := range m.Codes[identityID] {
		if c.UsedAt == nil {
			count++
		}
	}
	return count, nil
}

// MockAuditRepository implements AuditRepository for testing
type MockAuditRepository struct {
	Events      []repository.AuditEvent
	LogEventErr error
}

func (m *MockAuditRepository) LogEvent(ctx context.Context, event repository.AuditEvent) error {
	if m.LogEventErr != nil {
		return m.LogEventErr
	}
	m.Events = append(m.Events, event)
	return nil
}

var ErrStoreDown = errors.New("store down")
