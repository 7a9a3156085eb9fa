package recovery

import (
	"strings"
	"testing"
)

func TestGenerateCodes(t *testing.T) {
	codes, err := GenerateCodes()
	if err != nil {
		t.Fatalf("GenerateCodes failed: %v", err)
	}

	if len(codes) != CodeCount {
		t.Errorf("expected %d codes, got %d", CodeCount, len(codes))
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		if len(code) != CodeLength {
			t.Errorf("expected %d char code, got %q (%d chars)", CodeLength, code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(CodeCharset, c) {
				t.Errorf("code %q contains character outside charset: %c", code, c)
			}
		}
		if seen[code] {
			t.Errorf("duplicate code in batch: %q", code)
		}
		seen[code] = true
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ABCDE23456", "ABCDE23456"},
		{"abcde23456", "ABCDE23456"},
		{"  ABCDE23456  ", "ABCDE23456"},
		{"ABCDE-23456", "ABCDE23456"},
		{"abcde-23456", "ABCDE23456"},
	}

	for _, tt := range tests {
		if got := NormalizeCode(tt.input); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsRecoveryCodeFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid uppercase", "ABCDE23456", true},
		{"valid lowercase", "abcde23456", true},
		{"valid with hyphen", "ABCDE-23456", true},
		{"too short", "ABCDE2345", false},
		{"too long", "ABCDE234567", false},
		{"contains excluded char I", "IBCDE23456", false},
		{"contains excluded char O", "OBCDE23456", false},
		{"contains zero", "0BCDE23456", false},
		{"contains one", "1BCDE23456", false},
		{"six digits", "123456", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoveryCodeFormat(tt.input); got != tt.want {
				t.Errorf("IsRecoveryCodeFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsTOTPFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "123456", true},
		{"valid with spaces", "  123456  ", true},
		{"too short", "12345", false},
		{"too long", "1234567", false},
		{"letters", "12a456", false},
		{"recovery code", "ABCDE23456", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTOTPFormat(tt.input); got != tt.want {
				t.Errorf("IsTOTPFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGeneratedCodesPassFormatCheck(t *testing.T) {
	codes, err := GenerateCodes()
	if err != nil {
		t.Fatalf("GenerateCodes failed: %v", err)
	}
	for _, code := range codes {
		if !IsRecoveryCodeFormat(code) {
			t.Errorf("generated code %q fails format check", code)
		}
		if IsTOTPFormat(code) {
			t.Errorf("generated code %q mistaken for TOTP", code)
		}
	}
}
