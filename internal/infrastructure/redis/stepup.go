package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TOTPReplayTTL covers the full acceptance window of a code:
	// 5 time steps (current ±2) at 30 seconds each
	TOTPReplayTTL = 150 * time.Second

	// LockoutTTL is the lockout period after too many failed attempts
	LockoutTTL = 15 * time.Minute

	// MaxFailedAttempts is the maximum failed attempts before lockout
	MaxFailedAttempts = 5

	// retentionFactor keeps a consumable key around past its logical
	// expiry so a late attempt reads "expired" rather than "missing"
	retentionFactor = 2
)

// Key patterns
const (
	challengeKeyPattern  = "stepup_challenge:%s"  // identityID
	emailCodeKeyPattern  = "stepup_email_code:%s" // identityID
	failedKeyPattern     = "stepup_failed:%s"     // identityID
	totpReplayKeyPattern = "totp_used:%s:%s"      // identityID:code
)

// ChallengeKey generates the key for a pending step-up challenge
func ChallengeKey(identityID string) string {
	return fmt.Sprintf(challengeKeyPattern, identityID)
}

// EmailCodeKey generates the key for a pending email code
func EmailCodeKey(identityID string) string {
	return fmt.Sprintf(emailCodeKeyPattern, identityID)
}

// FailedKey generates the key for the failed attempt counter
func FailedKey(identityID string) string {
	return fmt.Sprintf(failedKeyPattern, identityID)
}

// TOTPReplayKey generates the key for tracking used TOTP codes
func TOTPReplayKey(identityID, code string) string {
	return fmt.Sprintf(totpReplayKeyPattern, identityID, code)
}

// ConsumeResult is the outcome of an atomic check-and-clear
type ConsumeResult string

const (
	ConsumeOK       ConsumeResult = "ok"
	ConsumeMismatch ConsumeResult = "mismatch"
	ConsumeExpired  ConsumeResult = "expired"
	ConsumeMissing  ConsumeResult = "missing"
)

// consumeScript atomically checks a stored secret against a submitted
// value and deletes it. Any attempt consumes the secret, match or not.
// A key whose logical expiry has passed (the key itself is retained for
// retentionFactor x TTL) reports "expired" instead of "missing".
var consumeScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'value')
if not v then
	return 'missing'
end
local exp = tonumber(redis.call('HGET', KEYS[1], 'exp'))
redis.call('DEL', KEYS[1])
local t = redis.call('TIME')
if tonumber(t[1]) >= exp then
	return 'expired'
end
if v == ARGV[1] then
	return 'ok'
end
return 'mismatch'
`)

// setSecret stores {value, exp} as a hash, overwriting any prior entry.
// The key outlives the logical TTL so consumeScript can distinguish
// expired from never-issued.
func (c *Client) setSecret(ctx context.Context, key, value string, ttl time.Duration) error {
	exp := time.Now().Add(ttl).Unix()
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "value", value, "exp", exp)
	pipe.Expire(ctx, key, ttl*retentionFactor)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

func (c *Client) consumeSecret(ctx context.Context, key, value string) (ConsumeResult, error) {
	res, err := consumeScript.Run(ctx, c.rdb, []string{key}, value).Text()
	if err != nil {
		return "", fmt.Errorf("failed to consume secret: %w", err)
	}
	return ConsumeResult(res), nil
}

// SetChallenge stores a step-up challenge token, replacing any
// outstanding challenge for the identity
func (c *Client) SetChallenge(ctx context.Context, identityID, token string, ttl time.Duration) error {
	return c.setSecret(ctx, ChallengeKey(identityID), token, ttl)
}

// ConsumeChallenge atomically validates and clears the outstanding
// challenge. The challenge is gone after this call regardless of outcome.
func (c *Client) ConsumeChallenge(ctx context.Context, identityID, token string) (ConsumeResult, error) {
	return c.consumeSecret(ctx, ChallengeKey(identityID), token)
}

// ClearChallenge removes the outstanding challenge without an attempt
func (c *Client) ClearChallenge(ctx context.Context, identityID string) error {
	return c.Delete(ctx, ChallengeKey(identityID))
}

// SetEmailCode stores an email verification code, replacing any
// outstanding code for the identity
func (c *Client) SetEmailCode(ctx context.Context, identityID, code string, ttl time.Duration) error {
	return c.setSecret(ctx, EmailCodeKey(identityID), code, ttl)
}

// ConsumeEmailCode atomically validates and clears the outstanding email code
func (c *Client) ConsumeEmailCode(ctx context.Context, identityID, code string) (ConsumeResult, error) {
	return c.consumeSecret(ctx, EmailCodeKey(identityID), code)
}

// ClearEmailCode removes the outstanding email code without an attempt
func (c *Client) ClearEmailCode(ctx context.Context, identityID string) error {
	return c.Delete(ctx, EmailCodeKey(identityID))
}

// MarkTOTPCodeUsed marks a TOTP code as used for replay protection.
// Returns true if this is a new code (not a replay), false if already used.
func (c *Client) MarkTOTPCodeUsed(ctx context.Context, identityID, code string) (bool, error) {
	return c.SetNX(ctx, TOTPReplayKey(identityID, code), "used", TOTPReplayTTL)
}

// IncrementFailedAttempts increments the failed attempt counter.
// Returns the new count and any error.
func (c *Client) IncrementFailedAttempts(ctx context.Context, identityID string) (int64, error) {
	key := FailedKey(identityID)
	count, err := c.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	// Set expiry on first increment
	if count == 1 {
		c.Expire(ctx, key, LockoutTTL)
	}
	return count, nil
}

// ResetFailedAttempts clears the failed attempt counter on success
func (c *Client) ResetFailedAttempts(ctx context.Context, identityID string) error {
	return c.Delete(ctx, FailedKey(identityID))
}

// IsLockedOut checks if the identity is locked out due to too many
// failed attempts, returning the remaining lockout time when it is
func (c *Client) IsLockedOut(ctx context.Context, identityID string) (bool, time.Duration, error) {
	val, err := c.rdb.Get(ctx, FailedKey(identityID)).Result()
	if err == redis.Nil {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	var count int64
	fmt.Sscanf(val, "%d", &count)
	if count < MaxFailedAttempts {
		return false, 0, nil
	}
	ttl, err := c.TTL(ctx, FailedKey(identityID))
	if err != nil {
		return false, 0, err
	}
	return true, ttl, nil
}
