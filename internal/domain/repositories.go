package domain

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository is the account registry consumed by the engine. All
// lookups are read-only; account status is mutated only by administrative
// tooling outside this service.
type AccountRepository interface {
	// FindByID retrieves an account by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// FindByNumber retrieves an account by its 10-digit account number.
	FindByNumber(ctx context.Context, number string) (*Account, error)

	// ListByParty retrieves all accounts owned by the given party.
	ListByParty(ctx context.Context, partyID uuid.UUID) ([]*Account, error)

	// Lock re-reads the account under a row lock held until the surrounding
	// unit of work ends. Must be called within a transaction context; it
	// serializes the balance check against concurrent writes touching the
	// same account.
	Lock(ctx context.Context, id uuid.UUID) (*Account, error)

	// Create persists a new account. Used by the provisioning path, never by
	// the transfer engine.
	Create(ctx context.Context, account *Account) error
}

// PartyRepository resolves registered parties. Token resolution backs the
// session boundary: the api layer hashes the presented bearer token and looks
// the party up by that hash.
type PartyRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*Party, error)
	Create(ctx context.Context, party *Party, tokenHash string) error
}

// LedgerRepository is the append-only posting store plus its read-side
// aggregation. AppendPosting is only ever called inside the engine's atomic
// unit; no update or delete operation exists.
type LedgerRepository interface {
	AppendPosting(ctx context.Context, posting *Posting) error

	// SumPostings returns total debits and total credits for one account over
	// its full posting history.
	SumPostings(ctx context.Context, accountID uuid.UUID) (Balance, error)
}

// TransactionRepository persists transaction records.
type TransactionRepository interface {
	// Create inserts a transaction. The unique constraint on the idempotency
	// key is the real concurrency guard: Create returns ErrDuplicateKey when
	// another transaction already holds the key.
	Create(ctx context.Context, transaction *Transaction) error

	// GetByIdempotencyKey returns nil, nil when no transaction holds the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// UpdateStatus transitions a transaction's status and completion time.
	UpdateStatus(ctx context.Context, transaction *Transaction) error

	// ListByAccounts returns transactions referencing any of the given
	// accounts as source or destination, newest first, at most limit rows.
	ListByAccounts(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]*Transaction, error)
}

// TransactionManager runs a function inside one atomic unit against the
// durable store. If the function returns an error the unit is rolled back and
// no partial state persists; otherwise it is committed.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher publishes domain events to external systems after the atomic
// unit commits. Publish failures must never undo a committed transfer.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, transaction *Transaction) error
}
