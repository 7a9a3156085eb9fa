package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent represents a step-up audit event. Details never contain
// codes, tokens, or secrets.
type AuditEvent struct {
	EventType     string // challenge_issued, challenge_verified, challenge_failed, factor_enrolled, etc.
	IdentityID    string
	ClientIP      string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]interface{} // additional data (method, remaining_codes, etc.)
}

// AuditRepository defines audit logging operations
type AuditRepository interface {
	LogEvent(ctx context.Context, event AuditEvent) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

// LogEvent appends an event to the audit trail
func (r *auditRepository) LogEvent(ctx context.Context, event AuditEvent) error {
	details := map[string]interface{}{
		"success": event.Success,
	}
	if event.FailureReason != "" {
		details["failure_reason"] = event.FailureReason
	}
	for k, v := range event.Metadata {
		details[k] = v
	}
	detailsJSON, _ := json.Marshal(details)

	var identityUUID pgtype.UUID
	if event.IdentityID != "" {
		if parsed, err := uuid.Parse(event.IdentityID); err == nil {
			identityUUID = uuidToPgtype(parsed)
		}
	}

	// Parse client IP
	var clientIPAddr *netip.Addr
	if ip, err := netip.ParseAddr(event.ClientIP); err == nil {
		clientIPAddr = &ip
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (id, action, identity_id, details, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		uuidToPgtype(uuid.New()), event.EventType, identityUUID,
		detailsJSON, clientIPAddr,
		pgtype.Text{String: event.UserAgent, Valid: event.UserAgent != ""})
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}
