package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	ChallengeTokenLength = 64
	// Mixed-case alphanumeric, ~5.95 bits per character
	tokenCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	NumericCodeLength = 6
)

// NewChallengeToken generates a 64-character opaque challenge token
func NewChallengeToken() (string, error) {
	bytes := make([]byte, ChallengeTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(ChallengeTokenLength)
	for _, b := range bytes {
		sb.WriteByte(tokenCharset[int(b)%len(tokenCharset)])
	}
	return sb.String(), nil
}

// NewNumericCode generates a 6-digit code for email delivery, zero-padded
func NewNumericCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < NumericCodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return fmt.Sprintf("%0*d", NumericCodeLength, n), nil
}
