package totp

import (
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	result, err := Generate("StepUp-ID", "test@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Check secret length (32 chars base32 = 160 bits)
	if len(result.Secret) != 32 {
		t.Errorf("expected secret length 32, got %d", len(result.Secret))
	}

	if !strings.HasPrefix(result.OTPAuthURL, "otpauth://totp/") {
		t.Errorf("invalid otpauth URL: %s", result.OTPAuthURL)
	}
	if !strings.Contains(result.OTPAuthURL, "StepUp-ID") {
		t.Errorf("issuer not found in URL: %s", result.OTPAuthURL)
	}
}

func TestValidateCode(t *testing.T) {
	result, _ := Generate("StepUp-ID", "test@example.com")

	code, err := GenerateCode(result.Secret)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	if !ValidateCode(result.Secret, code) {
		t.Error("ValidateCode should accept current code")
	}
	if ValidateCode(result.Secret, "000000") {
		t.Error("ValidateCode should reject invalid code")
	}
}

func TestValidateCodeAt_SkewWindow(t *testing.T) {
	result, _ := Generate("StepUp-ID", "test@example.com")
	now := time.Now()

	currentCode, _ := GenerateCodeAt(result.Secret, now)
	prevCode, _ := GenerateCodeAt(result.Secret, now.Add(-30*time.Second))
	prev2Code, _ := GenerateCodeAt(result.Secret, now.Add(-60*time.Second))
	prev3Code, _ := GenerateCodeAt(result.Secret, now.Add(-90*time.Second))
	nextCode, _ := GenerateCodeAt(result.Secret, now.Add(30*time.Second))
	next2Code, _ := GenerateCodeAt(result.Secret, now.Add(60*time.Second))
	next3Code, _ := GenerateCodeAt(result.Secret, now.Add(90*time.Second))

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"current step", currentCode, true},
		{"one step behind", prevCode, true},
		{"two steps behind", prev2Code, true},
		{"three steps behind", prev3Code, false},
		{"one step ahead", nextCode, true},
		{"two steps ahead", next2Code, true},
		{"three steps ahead", next3Code, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCodeAt(result.Secret, tt.code, now); got != tt.want {
				t.Errorf("ValidateCodeAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateCodeWithSkew(t *testing.T) {
	result, _ := Generate("StepUp-ID", "test@example.com")
	now := time.Now()

	prevCode, _ := GenerateCodeAt(result.Secret, now.Add(-30*time.Second))

	if !ValidateCodeWithSkew(result.Secret, prevCode, now, 1) {
		t.Error("previous code should pass with skew 1")
	}
	if ValidateCodeWithSkew(result.Secret, prevCode, now, 0) {
		t.Error("previous code should fail with skew 0")
	}
}

func TestGenerateCode_Format(t *testing.T) {
	result, _ := Generate("StepUp-ID", "test@example.com")

	code, err := GenerateCode(result.Secret)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("expected 6 digit code, got %d digits", len(code))
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Errorf("code contains non-numeric character: %c", c)
		}
	}
}

func TestGenerateCodeAt_Deterministic(t *testing.T) {
	result, _ := Generate("StepUp-ID", "test@example.com")
	fixedTime := time.Date(2026, 1, 29, 12, 0, 0, 0, time.UTC)

	code1, _ := GenerateCodeAt(result.Secret, fixedTime)
	code2, _ := GenerateCodeAt(result.Secret, fixedTime)
	if code1 != code2 {
		t.Error("same time should produce same code")
	}

	code3, _ := GenerateCodeAt(result.Secret, fixedTime.Add(30*time.Second))
	if code1 == code3 {
		t.Error("different time step should produce different code")
	}
}

func TestMultipleGenerateUnique(t *testing.T) {
	secrets := make(map[string]bool)

	for i := 0; i < 10; i++ {
		result, err := Generate("StepUp-ID", "test@example.com")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if secrets[result.Secret] {
			t.Error("duplicate secret generated")
		}
		secrets[result.Secret] = true
	}
}
