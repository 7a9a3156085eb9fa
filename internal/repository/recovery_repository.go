package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stepup-id/api/internal/domain"
)

// RecoveryRepository defines recovery codes data operations
type RecoveryRepository interface {
	CreateCodes(ctx context.Context, identityID uuid.UUID, codeHashes []string) error
	GetUnusedCodes(ctx context.Context, identityID uuid.UUID) ([]*domain.RecoveryCode, error)
	MarkCodeUsed(ctx context.Context, identityID, codeID uuid.UUID) (bool, error)
	DeleteAllCodes(ctx context.Context, identityID uuid.UUID) error
	CountUnusedCodes(ctx context.Context, identityID uuid.UUID) (int64, error)
}

type recoveryRepository struct {
	pool *pgxpool.Pool
}

// NewRecoveryRepository creates a new recovery codes repository
func NewRecoveryRepository(pool *pgxpool.Pool) RecoveryRepository {
	return &recoveryRepository{pool: pool}
}

// CreateCodes inserts a fresh batch of recovery codes in one transaction,
// replacing whatever batch existed before
func (r *recoveryRepository) CreateCodes(ctx context.Context, identityID uuid.UUID, codeHashes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM recovery_codes WHERE identity_id = $1`,
		uuidToPgtype(identityID)); err != nil {
		return fmt.Errorf("failed to delete old recovery codes: %w", err)
	}

	batch := &pgx.Batch{}
	for i, hash := range codeHashes {
		batch.Queue(
			`INSERT INTO recovery_codes (id, identity_id, code_hash, code_index, created_at)
			 VALUES ($1, $2, $3, $4, now())`,
			uuidToPgtype(uuid.New()), uuidToPgtype(identityID), hash, int16(i))
	}
	br := tx.SendBatch(ctx, batch)
	for i := range codeHashes {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to create recovery code %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// GetUnusedCodes returns all unused recovery codes for an identity
func (r *recoveryRepository) GetUnusedCodes(ctx context.Context, identityID uuid.UUID) ([]*domain.RecoveryCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, identity_id, code_hash, code_index, used_at, created_at
		 FROM recovery_codes
		 WHERE identity_id = $1 AND used_at IS NULL
		 ORDER BY code_index`,
		uuidToPgtype(identityID))
	if err != nil {
		return nil, fmt.Errorf("failed to get unused recovery codes: %w", err)
	}
	defer rows.Close()

	var codes []*domain.RecoveryCode
	for rows.Next() {
		var (
			id        pgtype.UUID
			identID   pgtype.UUID
			codeHash  string
			codeIndex int16
			usedAt    pgtype.Timestamptz
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &identID, &codeHash, &codeIndex, &usedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan recovery code: %w", err)
		}
		codes = append(codes, &domain.RecoveryCode{
			ID:         pgtypeToUUID(id),
			IdentityID: pgtypeToUUID(identID),
			CodeHash:   codeHash,
			CodeIndex:  int(codeIndex),
			UsedAt:     timestampToPtr(usedAt),
			CreatedAt:  createdAt.Time,
		})
	}
	return codes, rows.Err()
}

// MarkCodeUsed marks a recovery code as used. The used_at IS NULL guard
// makes consumption single-winner under concurrent attempts.
func (r *recoveryRepository) MarkCodeUsed(ctx context.Context, identityID, codeID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recovery_codes SET used_at = now()
		 WHERE id = $1 AND identity_id = $2 AND used_at IS NULL`,
		uuidToPgtype(codeID), uuidToPgtype(identityID))
	if err != nil {
		return false, fmt.Errorf("failed to mark recovery code used: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllCodes deletes all recovery codes for an identity
func (r *recoveryRepository) DeleteAllCodes(ctx context.Context, identityID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM recovery_codes WHERE identity_id = $1`,
		uuidToPgtype(identityID))
	if err != nil {
		return fmt.Errorf("failed to delete recovery codes: %w", err)
	}
	return nil
}

// CountUnusedCodes counts remaining unused recovery codes
func (r *recoveryRepository) CountUnusedCodes(ctx context.Context, identityID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE identity_id = $1 AND used_at IS NULL`,
		uuidToPgtype(identityID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unused recovery codes: %w", err)
	}
	return count, nil
}
