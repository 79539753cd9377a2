package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned when an account reference doesn't resolve.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPartyNotFound is returned when a party reference doesn't resolve.
	ErrPartyNotFound = errors.New("party not found")

	// ErrSameAccount is returned when source and destination resolve to the
	// same account.
	ErrSameAccount = errors.New("source and destination must be different accounts")

	// ErrCurrencyMismatch is returned when the two accounts don't share a currency.
	ErrCurrencyMismatch = errors.New("currency mismatch between source and destination accounts")

	// ErrNotAccountOwner is returned when the requesting party does not own
	// the source account.
	ErrNotAccountOwner = errors.New("requesting party does not own the source account")

	// ErrNotSystemPrincipal is returned when a caller without the system flag
	// attempts the system-funds path.
	ErrNotSystemPrincipal = errors.New("requesting party is not the system principal")

	// ErrTransferInProgress is returned when the idempotency key belongs to a
	// transaction still in PENDING. The caller may retry later; the write is
	// not re-attempted.
	ErrTransferInProgress = errors.New("a transfer with this idempotency key is still processing")

	// ErrIdempotencyKeyUsed is returned when the idempotency key belongs to a
	// FAILED or REVERSED transaction. Keys are single-use for their entire
	// lifetime; this outcome is terminal.
	ErrIdempotencyKeyUsed = errors.New("idempotency key was already used by a failed or reversed transaction")

	// ErrDuplicateKey is returned by TransactionRepository.Create when the
	// idempotency key's unique constraint rejects the insert. The engine
	// resolves it by re-reading the winning transaction.
	ErrDuplicateKey = errors.New("idempotency key already exists")

	// ErrDuplicateAccountNumber is returned by AccountRepository.Create when
	// the generated account number collides with an existing one.
	ErrDuplicateAccountNumber = errors.New("account number already exists")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports that the source balance is below the
// requested amount. It carries the computed balance for display and logging,
// not for programmatic branching.
type InsufficientFundsError struct {
	Balance decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance, current balance is %s", e.Balance.StringFixed(2))
}

// AccountInactiveError names the account that blocked a transfer and why.
type AccountInactiveError struct {
	AccountNumber string
	Status        AccountStatus
}

func (e *AccountInactiveError) Error() string {
	return fmt.Sprintf("account %s is %s and cannot take part in a transfer", e.AccountNumber, e.Status)
}

// CommitError reports that the atomic unit could not be durably committed.
// No transaction was created, so the caller may retry with the same
// idempotency key.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return "transfer could not be committed: " + e.Err.Error()
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
