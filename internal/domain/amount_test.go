package domain_test

import (
	"errors"
	"testing"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"whole number", "100", "100", false},
		{"two decimal places", "99.99", "99.99", false},
		{"one decimal place", "0.5", "0.5", false},
		{"smallest unit", "0.01", "0.01", false},
		{"trailing zeros beyond cents", "10.100", "", true},
		{"empty", "", "", true},
		{"not a number", "ten", "", true},
		{"zero", "0", "", true},
		{"zero with decimals", "0.00", "", true},
		{"negative", "-1.50", "", true},
		{"sub-cent", "0.001", "", true},
		{"three decimal places", "12.345", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %s, expected error", tt.input, got)
				}
				var validation *domain.ValidationError
				if !errors.As(err, &validation) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) failed: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateCurrencyCode(t *testing.T) {
	for _, code := range []string{"INR", "USD", "EUR"} {
		if err := domain.ValidateCurrencyCode(code); err != nil {
			t.Errorf("ValidateCurrencyCode(%q) failed: %v", code, err)
		}
	}
	for _, code := range []string{"", "IN", "INRR", "inr", "IN1"} {
		if err := domain.ValidateCurrencyCode(code); err == nil {
			t.Errorf("ValidateCurrencyCode(%q) should fail", code)
		}
	}
}

func TestIsAccountNumber(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"1234567890", true},
		{"0000000000", true},
		{"123456789", false},   // too short
		{"12345678901", false}, // too long
		{"12345678a0", false},
		{"", false},
		{"d7f1c3a0-0000-0000-0000-000000000000", false},
	}
	for _, tt := range tests {
		if got := domain.IsAccountNumber(tt.ref); got != tt.want {
			t.Errorf("IsAccountNumber(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
