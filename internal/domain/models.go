package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Party is the authenticated caller of an operation, as resolved by the
// session collaborator. SystemPrincipal marks the distinguished caller that
// may seed funds from the system account.
type Party struct {
	ID              uuid.UUID
	Name            string
	Email           string
	SystemPrincipal bool
}

// Account is a registered party's monetary account. Accounts carry no stored
// balance: the balance is always derived from the posting history.
type Account struct {
	ID            uuid.UUID
	PartyID       uuid.UUID
	AccountNumber string // 10-digit, unique, immutable after creation
	Status        AccountStatus
	Currency      string // ISO 4217
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED" // terminal, account is retained for history
)

// IsActive reports whether the account may take part in a transfer.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// OwnedBy reports whether the given party owns this account.
func (a *Account) OwnedBy(partyID uuid.UUID) bool {
	return a.PartyID == partyID
}

// PostingDirection is the signed role of a posting.
type PostingDirection string

const (
	PostingDebit  PostingDirection = "DEBIT"
	PostingCredit PostingDirection = "CREDIT"
)

// Posting is one immutable ledger entry against one account, belonging to one
// transaction. Postings are only ever created inside a transaction's atomic
// unit and are never updated or deleted.
type Posting struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Direction     PostingDirection
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// TransactionStatus is the lifecycle status of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusReversed  TransactionStatus = "REVERSED" // terminal, set only by an explicit reversal
)

// Terminal reports whether the status admits no further processing. An
// idempotency key attached to a terminal-failed transaction is never reusable.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusFailed || s == TransactionStatusReversed
}

// Transaction is one recorded money movement between two accounts. A
// transaction reaches COMPLETED only together with its two postings, inside
// the same atomic unit.
type Transaction struct {
	ID                   uuid.UUID
	SourceAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	Currency             string
	IdempotencyKey       string
	Status               TransactionStatus
	CreatedAt            time.Time
	CompletedAt          *time.Time
}

// NewTransaction creates a transaction in PENDING status.
func NewTransaction(sourceID, destinationID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) *Transaction {
	return &Transaction{
		ID:                   uuid.New(),
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Currency:             currency,
		IdempotencyKey:       idempotencyKey,
		Status:               TransactionStatusPending,
		CreatedAt:            time.Now().UTC(),
	}
}

// MarkCompleted transitions the transaction to COMPLETED.
func (t *Transaction) MarkCompleted() {
	now := time.Now().UTC()
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &now
}

// Postings builds the debit/credit pair for this transaction. Both postings
// carry the transaction's amount; the debit is against the source account and
// the credit against the destination.
func (t *Transaction) Postings() (debit, credit *Posting) {
	now := time.Now().UTC()
	debit = &Posting{
		ID:            uuid.New(),
		TransactionID: t.ID,
		AccountID:     t.SourceAccountID,
		Direction:     PostingDebit,
		Amount:        t.Amount,
		CreatedAt:     now,
	}
	credit = &Posting{
		ID:            uuid.New(),
		TransactionID: t.ID,
		AccountID:     t.DestinationAccountID,
		Direction:     PostingCredit,
		Amount:        t.Amount,
		CreatedAt:     now,
	}
	return debit, credit
}

// Balance is the derived spendable amount of one account:
// sum of credits minus sum of debits over its full posting history.
type Balance struct {
	AccountID    uuid.UUID
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
}

// Amount returns credits minus debits. An account with no postings has a
// zero balance.
func (b Balance) Amount() decimal.Decimal {
	return b.TotalCredits.Sub(b.TotalDebits)
}
