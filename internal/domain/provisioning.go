package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// numberAllocationAttempts bounds retries when a freshly generated account
// number collides with an existing one.
const numberAllocationAttempts = 5

// AccountProvisioner creates accounts for registered parties. It is a
// collaborator of the transfer engine, not part of it: the engine only ever
// reads accounts.
type AccountProvisioner struct {
	accounts       AccountRepository
	generateNumber func() (string, error)
}

// NewAccountProvisioner creates an AccountProvisioner. generateNumber draws
// candidate 10-digit account numbers; uniqueness is enforced by the registry.
func NewAccountProvisioner(accounts AccountRepository, generateNumber func() (string, error)) *AccountProvisioner {
	return &AccountProvisioner{accounts: accounts, generateNumber: generateNumber}
}

// CreateAccount provisions an ACTIVE account for the party with a unique
// account number. The number is immutable and never reused once assigned.
func (p *AccountProvisioner) CreateAccount(ctx context.Context, partyID uuid.UUID, currency string) (*Account, error) {
	if partyID == uuid.Nil {
		return nil, NewValidationError("party id is required")
	}
	if err := ValidateCurrencyCode(currency); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < numberAllocationAttempts; attempt++ {
		number, err := p.generateNumber()
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		account := &Account{
			ID:            uuid.New(),
			PartyID:       partyID,
			AccountNumber: number,
			Status:        AccountStatusActive,
			Currency:      currency,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = p.accounts.Create(ctx, account)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrDuplicateAccountNumber) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not allocate a unique account number after %d attempts", numberAllocationAttempts)
}
