package login

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/repository"
	"github.com/stepup-id/api/internal/service/recovery"
	"github.com/stepup-id/api/internal/service/totp"
)

var ErrStoreDown = errors.New("store down")

// MockIdentityRepository implements IdentityRepository for testing
type MockIdentityRepository struct {
	Identities map[uuid.UUID]*domain.Identity
	Subjects   map[string]uuid.UUID
	LastLogins map[uuid.UUID]int

	GetFactorStateErr  error
	ConfirmFactorErr   error
	ClearFactorErr     error
	UpdateLastLoginErr error
}

func NewMockIdentityRepository() *MockIdentityRepository {
	return &MockIdentityRepository{
		Identities: make(map[uuid.UUID]*domain.Identity),
		Subjects:   make(map[string]uuid.UUID),
		LastLogins: make(map[uuid.UUID]int),
	}
}

func (m *MockIdentityRepository) GetByProviderSubject(ctx context.Context, subject string) (*domain.Identity, error) {
	id, ok := m.Subjects[subject]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Identities[id], nil
}

func (m *MockIdentityRepository) GetFactorState(ctx context.Context, id uuid.UUID) (domain.FactorSnapshot, error) {
	if m.GetFactorStateErr != nil {
		return domain.FactorSnapshot{}, m.GetFactorStateErr
	}
	identity, ok := m.Identities[id]
	if !ok {
		return domain.FactorSnapshot{}, repository.ErrNotFound
	}
	return identity.Snapshot(), nil
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

func (m *MockIdentityRepository) ClearFactorState(ctx context.Context, id uuid.UUID) error {
	if m.ClearFactorErr != nil {
		return m.ClearFactorErr
	}
	identity := m.Identities[id]
	identity.FactorMethod = domain.MethodNone
	identity.FactorSecretEncrypted = nil
	identity.FactorConfirmedAt = nil
	return nil
}

func (m *MockIdentityRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if m.UpdateLastLoginErr != nil {
		return m.UpdateLastLoginErr
	}
	m.LastLogins[id]++
	return nil
}

// MockSnapshotCache implements SnapshotCache for testing
type MockSnapshotCache struct {
	Entries     map[uuid.UUID]domain.FactorSnapshot
	Hits        int
	Misses      int
	Invalidated []uuid.UUID
}

func NewMockSnapshotCache() *MockSnapshotCache {
	return &MockSnapshotCache{Entries: make(map[uuid.UUID]domain.FactorSnapshot)}
}

func (m *MockSnapshotCache) Get(id uuid.UUID) (domain.FactorSnapshot, bool) {
	s, ok := m.Entries[id]
	if ok {
		m.Hits++
	} else {
		m.Misses++
	}
	return s, ok
}

func (m *MockSnapshotCache) Put(id uuid.UUID, snapshot domain.FactorSnapshot) {
	m.Entries[id] = snapshot
}

func (m *MockSnapshotCache) Invalidate(id uuid.UUID) {
	delete(m.Entries, id)
	m.Invalidated = append(m.Invalidated, id)
}

// MockChallengeService implements ChallengeService for testing with
// consume-on-any-attempt semantics
type MockChallengeService struct {
	Outstanding map[uuid.UUID]string

	IssueErr   error
	ConsumeErr error
	Cleared    []uuid.UUID
}

func NewMockChallengeService() *MockChallengeService {
	return &MockChallengeService{Outstanding: make(map[uuid.UUID]string)}
}

func (m *MockChallengeService) Issue(ctx context.Context, identityID uuid.UUID) (*domain.StepUpChallenge, error) {
	if m.IssueErr != nil {
		return nil, m.IssueErr
	}
	token := "challenge-" + uuid.NewString()
	m.Outstanding[identityID] = token
	return &domain.StepUpChallenge{
		IdentityID: identityID,
		Token:      token,
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}, nil
}

func (m *MockChallengeService) Consume(ctx context.Context, identityID uuid.UUID, token string) error {
	if m.ConsumeErr != nil {
		return m.ConsumeErr
	}
	stored, ok := m.Outstanding[identityID]
	if !ok {
		return apperror.ChallengeNotFound()
	}
	delete(m.Outstanding, identityID)
	if stored != token {
		return apperror.ChallengeNotFound()
	}
	return nil
}

func (m *MockChallengeService) Clear(ctx context.Context, identityID uuid.UUID) error {
	delete(m.Outstanding, identityID)
	m.Cleared = append(m.Cleared, identityID)
	return nil
}

// MockTOTPService implements TOTPService for testing
type MockTOTPService struct {
	EnrollFunc     func(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*totp.EnrollResponse, error)
	ConfirmFunc    func(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) error
	VerifyCodeFunc func(ctx context.Context, identityID uuid.UUID, code string) error
}

func (m *MockTOTPService) Enroll(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*totp.EnrollResponse, error) {
	if m.EnrollFunc != nil {
		return m.EnrollFunc(ctx, identityID, clientIP, userAgent)
	}
	return &totp.EnrollResponse{Secret: "SECRET", OTPAuthURL: "otpauth://totp/test"}, nil
}

func (m *MockTOTPService) Confirm(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) error {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, identityID, code, clientIP, userAgent)
	}
	return nil
}

func (m *MockTOTPService) VerifyCode(ctx context.Context, identityID uuid.UUID, code string) error {
	if m.VerifyCodeFunc != nil {
		return m.VerifyCodeFunc(ctx, identityID, code)
	}
	if code == "123456" {
		return nil
	}
	return apperror.InvalidCode()
}

// MockEmailCodeService implements EmailCodeService for testing
type MockEmailCodeService struct {
	Dispatched []string // recipients
	Cleared    []uuid.UUID

	DispatchErr error
	VerifyFunc  func(ctx context.Context, identityID uuid.UUID, code string) error
}

func (m *MockEmailCodeService) GenerateAndDispatch(ctx context.Context, identityID uuid.UUID, recipient, clientIP, userAgent string) error {
	if m.DispatchErr != nil {
		return m.DispatchErr
	}
	m.Dispatched = append(m.Dispatched, recipient)
	return nil
}

func (m *MockEmailCodeService) Verify(ctx context.Context, identityID uuid.UUID, code string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, identityID, code)
	}
	if code == "654321" {
		return nil
	}
	return apperror.InvalidCode()
}

func (m *MockEmailCodeService) Clear(ctx context.Context, identityID uuid.UUID) error {
	m.Cleared = append(m.Cleared, identityID)
	return nil
}

// MockRecoveryService implements RecoveryService for testing
type MockRecoveryService struct {
	Remaining int64
	Deleted   []uuid.UUID

	GenerateErr error
	VerifyFunc  func(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) (*recovery.VerifyResult, error)
}

func (m *MockRecoveryService) GenerateAndStore(ctx context.Context, identityID uuid.UUID, clientIP, userAgent string) (*recovery.GenerateResponse, error) {
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	codes := make([]string, 8)
	for i := range codes {
		codes[i] = "CODE23456" + string(rune('A'+i))
	}
	m.Remaining = int64(len(codes))
	return &recovery.GenerateResponse{Codes: codes}, nil
}

func (m *MockRecoveryService) VerifyAndConsume(ctx context.Context, identityID uuid.UUID, code, clientIP, userAgent string) (*recovery.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, identityID, code, clientIP, userAgent)
	}
	if code == "GOODCODE23" {
		m.Remaining--
		return &recovery.VerifyResult{CodesRemaining: m.Remaining, LowOnCodes: m.Remaining < 3}, nil
	}
	return nil, apperror.RecoveryCodeExhausted()
}

func (m *MockRecoveryService) DeleteAll(ctx context.Context, identityID uuid.UUID) error {
	m.Deleted = append(m.Deleted, identityID)
	m.Remaining = 0
	return nil
}

func (m *MockRecoveryService) CountRemaining(ctx context.Context, identityID uuid.UUID) (int64, error) {
	return m.Remaining, nil
}

// MockRedisClient implements RedisClient for testing
type MockRedisClient struct {
	FailedCounts map[string]int64
	LockedOut    bool
	LockoutTTL   time.Duration

	IsLockedOutErr error
	IncrementErr   error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{FailedCounts: make(map[string]int64)}
}

func (m *MockRedisClient) IsLockedOut(ctx context.Context, identityID string) (bool, time.Duration, error) {
	if m.IsLockedOutErr != nil {
		return false, 0, m.IsLockedOutErr
	}
	return m.LockedOut, m.LockoutTTL, nil
}

func (m *MockRedisClient) IncrementFailedAttempts(ctx context.Context, identityID string) (int64, error) {
	if m.IncrementErr != nil {
		return 0, m.IncrementErr
	}
	m.FailedCounts[identityID]++
	return m.FailedCounts[identityID], nil
}

func (m *MockRedisClient) ResetFailedAttempts(ctx context.Context, identityID string) error {
	delete(m.FailedCounts, identityID)
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
