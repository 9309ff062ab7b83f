package utils

import (
	"strings"
	"testing"
)

func TestEAN13Checksum(t *testing.T) {
	cases := []struct {
		digits string
		want   int
	}{
		{"400638133393", 1}, // 4006381333931
		{"590123412345", 7}, // 5901234123457
		{"200000000001", 5},
		{"000000000000", 0},
	}

	for _, c := range cases {
		got, err := EAN13Checksum(c.digits)
		if err != nil {
			t.Fatalf("EAN13Checksum(%q) returned error: %v", c.digits, err)
		}
		if got != c.want {
			t.Errorf("EAN13Checksum(%q) = %d, want %d", c.digits, got, c.want)
		}
	}
}

func TestEAN13ChecksumRejectsBadInput(t *testing.T) {
	if _, err := EAN13Checksum("12345"); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := EAN13Checksum("40063813339a"); err == nil {
		t.Error("expected error for non-digit input")
	}
}

func TestValidateEAN13(t *testing.T) {
	if !ValidateEAN13("4006381333931") {
		t.Error("valid code rejected")
	}
	if ValidateEAN13("4006381333932") {
		t.Error("wrong check digit accepted")
	}
	if ValidateEAN13("400638133393") {
		t.Error("12-digit code accepted")
	}
}

func TestGenerateEAN13(t *testing.T) {
	code := GenerateEAN13(42)

	if len(code) != 13 {
		t.Fatalf("expected 13 digits, got %d", len(code))
	}
	if !strings.HasPrefix(code, "200") {
		t.Errorf("expected in-store prefix, got %q", code)
	}
	if !ValidateEAN13(code) {
		t.Errorf("generated code %q fails validation", code)
	}
	if again := GenerateEAN13(42); again != code {
		t.Errorf("generation not deterministic: %q vs %q", code, again)
	}
}

func TestGenerateRandomEAN13(t *testing.T) {
	for i := 0; i < 20; i++ {
		code := GenerateRandomEAN13()
		if !ValidateEAN13(code) {
			t.Fatalf("random code %q fails validation", code)
		}
		if !strings.HasPrefix(code, "200") {
			t.Fatalf("random code %q missing in-store prefix", code)
		}
	}
}
