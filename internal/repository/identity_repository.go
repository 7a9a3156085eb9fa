package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stepup-id/api/internal/domain"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

const identityColumns = `id, email, factor_method, factor_secret_encrypted,
	factor_confirmed_at, status, provider_subject, last_login_at, created_at, updated_at`

// IdentityRepository defines identity data operations
type IdentityRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	GetByProviderSubject(ctx context.Context, subject string) (*domain.Identity, error)
	GetFactorState(ctx context.Context, id uuid.UUID) (domain.FactorSnapshot, error)
	SetFactorTOTPPending(ctx context.Context, id uuid.UUID, encryptedSecret []byte) error
	ConfirmFactor(ctx context.Context, id uuid.UUID, method domain.FactorMethod) error
	ClearFactorState(ctx context.Context, id uuid.UUID) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`,
		uuidToPgtype(id))
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity %s", ErrNotFound, id.String())
		}
		return nil, fmt.Errorf("failed to get identity by id: %w", err)
	}
	return identity, nil
}

func (r *identityRepository) GetByProviderSubject(ctx context.Context, subject string) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider_subject = $1`,
		subject)
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity for subject", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get identity by provider subject: %w", err)
	}
	return identity, nil
}

// GetFactorState returns only the fields step-up evaluation needs,
// suitable for caching
func (r *identityRepository) GetFactorState(ctx context.Context, id uuid.UUID) (domain.FactorSnapshot, error) {
	var (
		method      string
		email       string
		confirmedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx,
		`SELECT factor_method, email, factor_confirmed_at FROM identities WHERE id = $1`,
		uuidToPgtype(id)).Scan(&method, &email, &confirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FactorSnapshot{}, fmt.Errorf("%w: identity %s", ErrNotFound, id.String())
		}
		return domain.FactorSnapshot{}, fmt.Errorf("failed to get factor state: %w", err)
	}
	return domain.FactorSnapshot{
		IdentityID:  id,
		Method:      domain.FactorMethod(method),
		Email:       email,
		ConfirmedAt: timestampToPtr(confirmedAt),
	}, nil
}

// SetFactorTOTPPending stores an encrypted TOTP secret awaiting
// confirmation. Overwrites any prior pending secret.
func (r *identityRepository) SetFactorTOTPPending(ctx context.Context, id uuid.UUID, encryptedSecret []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities
		 SET factor_method = $2, factor_secret_encrypted = $3,
		     factor_confirmed_at = NULL, updated_at = now()
		 WHERE id = $1`,
		uuidToPgtype(id), string(domain.MethodTOTP), encryptedSecret)
	if err != nil {
		return fmt.Errorf("failed to set pending factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: identity %s", ErrNotFound, id.String())
	}
	return nil
}

// ConfirmFactor activates the factor. For email the method is set and
// confirmed in one step; for TOTP the pending secret becomes live.
func (r *identityRepository) ConfirmFactor(ctx context.Context, id uuid.UUID, method domain.FactorMethod) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities
		 SET factor_method = $2, factor_confirmed_at = now(), updated_at = now()
		 WHERE id = $1`,
		uuidToPgtype(id), string(method))
	if err != nil {
		return fmt.Errorf("failed to confirm factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: identity %s", ErrNotFound, id.String())
	}
	return nil
}

// ClearFactorState disables the second factor and discards the secret
func (r *identityRepository) ClearFactorState(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities
		 SET factor_method = $2, factor_secret_encrypted = NULL,
		     factor_confirmed_at = NULL, updated_at = now()
		 WHERE id = $1`,
		uuidToPgtype(id), string(domain.MethodNone))
	if err != nil {
		return fmt.Errorf("failed to clear factor state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: identity %s", ErrNotFound, id.String())
	}
	return nil
}

func (r *identityRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE identities SET last_login_at = now() WHERE id = $1`,
		uuidToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		id          pgtype.UUID
		method      string
		secret      []byte
		confirmedAt pgtype.Timestamptz
		status      string
		lastLoginAt pgtype.Timestamptz
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
		identity    domain.Identity
	)
	err := row.Scan(&id, &identity.Email, &method, &secret, &confirmedAt,
		&status, &identity.ProviderSubject, &lastLoginAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	identity.ID = pgtypeToUUID(id)
	identity.FactorMethod = domain.FactorMethod(method)
	identity.FactorSecretEncrypted = secret
	identity.FactorConfirmedAt = timestampToPtr(confirmedAt)
	identity.Status = domain.IdentityStatus(status)
	identity.LastLoginAt = timestampToPtr(lastLoginAt)
	identity.CreatedAt = createdAt.Time
	identity.UpdatedAt = updatedAt.Time
	return &identity, nil
}

func uuidToPgtype(u uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: u, Valid: true}
}

func pgtypeToUUID(p pgtype.UUID) uuid.UUID {
	if !p.Valid {
		return uuid.Nil
	}
	return uuid.UUID(p.Bytes)
}

func timestampToPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
