package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers a verification code to an identity's address. The
// transport owns rendering; this service only hands over the code.
type Sender interface {
	SendCode(ctx context.Context, identityID uuid.UUID, recipient, code string) error
}

// WebhookSender hands codes to an external delivery service over a
// webhook. The code travels only in the request body, never in logs.
type WebhookSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(webhookURL string, timeout time.Duration, logger *zap.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SendCode posts the code to the configured delivery webhook
func (n *WebhookSender) SendCode(ctx context.Context, identityID uuid.UUID, recipient, code string) error {
	if n.webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	payload := map[string]interface{}{
		"identity_id": identityID.String(),
		"recipient":   recipient,
		"code":        code,
		"timestamp":   time.Now().Format(time.RFC3339),
		"source":      "stepup-id-api",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Failed to send code webhook",
			zap.String("identity_id", identityID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("Verification code dispatched",
		zap.String("identity_id", identityID.String()))

	return nil
}

// NoOpSender accepts every code without delivering it (for testing/dev)
type NoOpSender struct {
	logger *zap.Logger
}

// NewNoOpSender creates a no-op sender
func NewNoOpSender(logger *zap.Logger) *NoOpSender {
	return &NoOpSender{logger: logger}
}

// SendCode logs the dispatch but does not deliver
func (n *NoOpSender) SendCode(ctx context.Context, identityID uuid.UUID, recipient, code string) error {
	n.logger.Info("Verification code dispatch (no-op)",
		zap.String("identity_id", identityID.String()))
	return nil
}
