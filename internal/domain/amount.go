package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var accountNumberPattern = regexp.MustCompile(`^\d{10}$`)

// ParseAmount parses a decimal amount string and validates it for use in a
// transfer: it must be a positive number with at most two decimal places.
func ParseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, NewValidationError("amount is required")
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, NewValidationError("invalid amount %q", value)
	}

	return amount, ValidateAmount(amount)
}

// ValidateAmount rejects zero, negative and sub-cent amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount must be positive, got %s", amount)
	}
	if amount.Exponent() < -2 {
		return NewValidationError("amount must have at most 2 decimal places, got %s", amount)
	}
	return nil
}

// ValidateCurrencyCode checks ISO 4217 shape: three uppercase letters.
func ValidateCurrencyCode(code string) error {
	if len(code) != 3 {
		return NewValidationError("currency code must be 3 characters (ISO 4217), got %q", code)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return NewValidationError("currency code must contain only uppercase letters, got %q", code)
		}
	}
	return nil
}

// IsAccountNumber reports whether ref has the shape of a 10-digit account
// number, as opposed to an account id.
func IsAccountNumber(ref string) bool {
	return accountNumberPattern.MatchString(ref)
}
