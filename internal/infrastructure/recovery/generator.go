package recovery

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	CodeLength = 10
	CodeCount  = 8
	// Charset excludes I, O, 0, 1 for readability
	CodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateCodes generates 8 unique recovery codes
func GenerateCodes() ([]string, error) {
	codes := make([]string, CodeCount)
	for i := 0; i < CodeCount; i++ {
		code, err := generateSingleCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

func generateSingleCode() (string, error) {
	bytes := make([]byte, CodeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(CodeLength)
	for _, b := range bytes {
		sb.WriteByte(CodeCharset[int(b)%len(CodeCharset)])
	}
	return sb.String(), nil
}

// NormalizeCode strips whitespace and hyphens and uppercases for comparison
func NormalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(code)), "-", "")
}

// IsRecoveryCodeFormat checks if input looks like recovery code (not TOTP)
// TOTP is 6 digits, recovery code is 10 alphanumeric chars
func IsRecoveryCodeFormat(code string) bool {
	normalized := NormalizeCode(code)
	if len(normalized) != CodeLength {
		return false
	}
	for _, c := range normalized {
		if !strings.ContainsRune(CodeCharset, c) {
			return false
		}
	}
	return true
}

// IsTOTPFormat checks if input looks like TOTP code (6 digits)
func IsTOTPFormat(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
