package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerEngine records money movement as immutable double-entry postings and
// derives account balances from them. It holds no state between calls; all
// state lives in the durable store, and the store's row locks serialize
// concurrent transfers touching the same account.
type LedgerEngine struct {
	accounts     AccountRepository
	ledger       LedgerRepository
	transactions TransactionRepository
	txManager    TransactionManager
	publisher    EventPublisher
	logger       *zap.Logger
}

// NewLedgerEngine creates a LedgerEngine. Pass nil for publisher if no events
// should be emitted.
func NewLedgerEngine(
	accounts AccountRepository,
	ledger LedgerRepository,
	transactions TransactionRepository,
	txManager TransactionManager,
	publisher EventPublisher,
	logger *zap.Logger,
) *LedgerEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerEngine{
		accounts:     accounts,
		ledger:       ledger,
		transactions: transactions,
		txManager:    txManager,
		publisher:    publisher,
		logger:       logger,
	}
}

// SubmitTransferRequest is a transfer intent. DestinationRef may be an
// account id or a 10-digit account number.
type SubmitTransferRequest struct {
	SourceAccountID uuid.UUID
	DestinationRef  string
	Amount          decimal.Decimal
	IdempotencyKey  string
}

// SeedFundsRequest credits funds into any destination account from the system
// principal's own account.
type SeedFundsRequest struct {
	DestinationRef string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// TransferResult is the outcome of a successfully applied or replayed
// transfer.
type TransferResult struct {
	Transaction *Transaction
	// Replayed is true when the idempotency key had already produced a
	// COMPLETED transaction and no new work was performed.
	Replayed bool
}

// SubmitTransfer applies a transfer intent exactly once. The checks run in
// order and short-circuit: idempotency, account resolution, ownership,
// same-account, status, balance. The transaction record and both postings are
// then written in one atomic unit, transitioning PENDING to COMPLETED before
// commit, so no posting is ever visible without its counterpart and no
// posting exists for a transaction that is not COMPLETED.
func (e *LedgerEngine) SubmitTransfer(ctx context.Context, party Party, req SubmitTransferRequest) (*TransferResult, error) {
	if req.IdempotencyKey == "" {
		return nil, NewValidationError("idempotency key is required")
	}
	if req.SourceAccountID == uuid.Nil {
		return nil, NewValidationError("source account id is required")
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	// Application-level pre-check. The unique constraint on the key enforced
	// at commit time is the real guard; this lookup only resolves replays
	// without touching the write path.
	if result, err := e.resolveIdempotencyKey(ctx, req.IdempotencyKey); result != nil || err != nil {
		return result, err
	}

	var transaction *Transaction
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		destination, err := e.resolveDestination(txCtx, req.DestinationRef)
		if err != nil {
			return err
		}

		source, err := e.accounts.FindByID(txCtx, req.SourceAccountID)
		if err != nil {
			return err
		}

		if !source.OwnedBy(party.ID) {
			return ErrNotAccountOwner
		}

		if source.ID == destination.ID {
			return ErrSameAccount
		}

		source, destination, err = e.lockAccounts(txCtx, source.ID, destination.ID)
		if err != nil {
			return err
		}

		if err := e.checkActive(source, destination); err != nil {
			return err
		}

		if source.Currency != destination.Currency {
			return ErrCurrencyMismatch
		}

		balance, err := e.ledger.SumPostings(txCtx, source.ID)
		if err != nil {
			return fmt.Errorf("failed to compute source balance: %w", err)
		}
		if balance.Amount().LessThan(req.Amount) {
			return &InsufficientFundsError{Balance: balance.Amount()}
		}

		transaction = NewTransaction(source.ID, destination.ID, req.Amount, source.Currency, req.IdempotencyKey)
		return e.commitTransaction(txCtx, transaction)
	})
	if err != nil {
		return e.resolveCommitFailure(ctx, req.IdempotencyKey, err)
	}

	e.publishCompleted(transaction)
	return &TransferResult{Transaction: transaction}, nil
}

// SeedFunds debits the system principal's own account to seed funds into any
// destination. The system source is exempt from the balance check; everything
// else follows SubmitTransfer.
func (e *LedgerEngine) SeedFunds(ctx context.Context, party Party, req SeedFundsRequest) (*TransferResult, error) {
	if !party.SystemPrincipal {
		return nil, ErrNotSystemPrincipal
	}
	if req.IdempotencyKey == "" {
		return nil, NewValidationError("idempotency key is required")
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	if result, err := e.resolveIdempotencyKey(ctx, req.IdempotencyKey); result != nil || err != nil {
		return result, err
	}

	var transaction *Transaction
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		destination, err := e.resolveDestination(txCtx, req.DestinationRef)
		if err != nil {
			return err
		}

		source, err := e.systemAccount(txCtx, party)
		if err != nil {
			return err
		}

		if source.ID == destination.ID {
			return ErrSameAccount
		}

		source, destination, err = e.lockAccounts(txCtx, source.ID, destination.ID)
		if err != nil {
			return err
		}

		if err := e.checkActive(source, destination); err != nil {
			return err
		}

		if source.Currency != destination.Currency {
			return ErrCurrencyMismatch
		}

		// System funds are unconstrained: no balance check against the
		// system source.
		transaction = NewTransaction(source.ID, destination.ID, req.Amount, source.Currency, req.IdempotencyKey)
		return e.commitTransaction(txCtx, transaction)
	})
	if err != nil {
		return e.resolveCommitFailure(ctx, req.IdempotencyKey, err)
	}

	e.publishCompleted(transaction)
	return &TransferResult{Transaction: transaction}, nil
}

// GetBalance derives the current balance of an account from its posting
// history.
func (e *LedgerEngine) GetBalance(ctx context.Context, accountID uuid.UUID) (*Account, decimal.Decimal, error) {
	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	balance, err := e.ledger.SumPostings(ctx, accountID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	return account, balance.Amount(), nil
}

// ListTransactions returns transactions touching any of the given accounts,
// newest first, at most limit rows.
func (e *LedgerEngine) ListTransactions(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]*Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return e.transactions.ListByAccounts(ctx, accountIDs, limit)
}

// ListPartyTransactions lists transactions touching any account owned by the
// party.
func (e *LedgerEngine) ListPartyTransactions(ctx context.Context, party Party, limit int) ([]*Transaction, error) {
	accounts, err := e.accounts.ListByParty(ctx, party.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	return e.ListTransactions(ctx, ids, limit)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// resolveIdempotencyKey classifies an existing transaction holding the key.
// A nil, nil return means the key is unused and processing may continue.
func (e *LedgerEngine) resolveIdempotencyKey(ctx context.Context, key string) (*TransferResult, error) {
	existing, err := e.transactions.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing == nil {
		return nil, nil
	}

	switch {
	case existing.Status == TransactionStatusCompleted:
		return &TransferResult{Transaction: existing, Replayed: true}, nil
	case existing.Status == TransactionStatusPending:
		return nil, ErrTransferInProgress
	case existing.Status.Terminal():
		return nil, ErrIdempotencyKeyUsed
	default:
		return nil, fmt.Errorf("transaction %s has unknown status %q", existing.ID, existing.Status)
	}
}

// resolveDestination accepts an account id or a 10-digit account number.
func (e *LedgerEngine) resolveDestination(ctx context.Context, ref string) (*Account, error) {
	if ref == "" {
		return nil, NewValidationError("destination account reference is required")
	}
	if IsAccountNumber(ref) {
		return e.accounts.FindByNumber(ctx, ref)
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, NewValidationError("destination must be an account id or a 10-digit account number, got %q", ref)
	}
	return e.accounts.FindByID(ctx, id)
}

// lockAccounts acquires row locks on both accounts in deterministic id order
// to avoid deadlocks between transfers locking the same pair in opposite
// directions. The locked re-reads are the authoritative rows for the status
// and balance checks.
func (e *LedgerEngine) lockAccounts(ctx context.Context, sourceID, destinationID uuid.UUID) (source, destination *Account, err error) {
	first, second := sourceID, destinationID
	if second.String() < first.String() {
		first, second = second, first
	}

	firstAccount, err := e.accounts.Lock(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	secondAccount, err := e.accounts.Lock(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if firstAccount.ID == sourceID {
		return firstAccount, secondAccount, nil
	}
	return secondAccount, firstAccount, nil
}

func (e *LedgerEngine) checkActive(accounts ...*Account) error {
	for _, account := range accounts {
		if !account.IsActive() {
			return &AccountInactiveError{AccountNumber: account.AccountNumber, Status: account.Status}
		}
	}
	return nil
}

// commitTransaction writes the transaction record, both postings, and the
// PENDING to COMPLETED transition inside the caller's atomic unit. Nothing in
// here is visible to readers unless the whole unit commits.
func (e *LedgerEngine) commitTransaction(ctx context.Context, transaction *Transaction) error {
	if err := e.transactions.Create(ctx, transaction); err != nil {
		return err
	}

	debit, credit := transaction.Postings()
	if err := e.ledger.AppendPosting(ctx, debit); err != nil {
		return fmt.Errorf("failed to append debit posting: %w", err)
	}
	if err := e.ledger.AppendPosting(ctx, credit); err != nil {
		return fmt.Errorf("failed to append credit posting: %w", err)
	}

	transaction.MarkCompleted()
	return e.transactions.UpdateStatus(ctx, transaction)
}

// resolveCommitFailure maps an atomic-unit error to the caller-facing
// outcome. A unique-key violation means a concurrent submitter won the race;
// the winner's transaction is re-read and classified like any other replay.
// Unexpected datastore errors surface as a retryable CommitError since the
// rollback left no transaction behind.
func (e *LedgerEngine) resolveCommitFailure(ctx context.Context, key string, err error) (*TransferResult, error) {
	if errors.Is(err, ErrDuplicateKey) {
		result, resolveErr := e.resolveIdempotencyKey(ctx, key)
		if result != nil || resolveErr != nil {
			return result, resolveErr
		}
		// The winner's row vanished between the violation and the re-read,
		// which means its unit rolled back. Retryable.
		return nil, &CommitError{Err: err}
	}

	if isDomainFailure(err) {
		return nil, err
	}
	return nil, &CommitError{Err: err}
}

// isDomainFailure distinguishes business-rule rejections, which surface
// untouched, from infrastructure errors, which are wrapped as CommitError.
func isDomainFailure(err error) bool {
	var (
		validation   *ValidationError
		insufficient *InsufficientFundsError
		inactive     *AccountInactiveError
	)
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrNotAccountOwner),
		errors.Is(err, ErrNotSystemPrincipal):
		return true
	case errors.As(err, &validation), errors.As(err, &insufficient), errors.As(err, &inactive):
		return true
	}
	return false
}

// systemAccount resolves the system principal's own account: the one the
// privileged caller debits to seed funds. The caller's first active account
// is the system account.
func (e *LedgerEngine) systemAccount(ctx context.Context, party Party) (*Account, error) {
	accounts, err := e.accounts.ListByParty(ctx, party.ID)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if account.IsActive() {
			return account, nil
		}
	}
	return nil, ErrAccountNotFound
}

// publishCompleted emits the post-commit event. It runs after the atomic
// unit has committed and must never block or reverse the transfer, so
// delivery is asynchronous and failures are only logged.
func (e *LedgerEngine) publishCompleted(transaction *Transaction) {
	if e.publisher == nil {
		return
	}
	go func(t *Transaction) {
		if err := e.publisher.PublishTransferCompleted(context.Background(), t); err != nil {
			e.logger.Warn("failed to publish transfer completed event",
				zap.String("transaction_id", t.ID.String()),
				zap.Error(err),
			)
		}
	}(transaction)
}
