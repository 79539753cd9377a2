package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// TransactionRepository implements domain.TransactionRepository using
// PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, source_account_id, destination_account_id,
		amount, currency, idempotency_key, status, created_at, completed_at`

// Create inserts a transaction record. The UNIQUE constraint on
// idempotency_key is the actual exactly-once guard; a violation is reported
// as domain.ErrDuplicateKey so the engine can resolve the winner.
func (r *TransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := queryEngine(ctx, r.pool).Exec(ctx, query,
		transaction.ID,
		transaction.SourceAccountID,
		transaction.DestinationAccountID,
		transaction.Amount.StringFixed(2),
		transaction.Currency,
		transaction.IdempotencyKey,
		string(transaction.Status),
		transaction.CreatedAt,
		transaction.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetByIdempotencyKey retrieves a transaction by its idempotency key.
// Returns nil, nil when no transaction holds the key.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	transaction, err := r.scanTransaction(queryEngine(ctx, r.pool).QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return transaction, nil
}

// GetByID retrieves a transaction by its unique identifier.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	transaction, err := r.scanTransaction(queryEngine(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s not found", id)
		}
		return nil, fmt.Errorf("failed to get transaction by id: %w", err)
	}
	return transaction, nil
}

// UpdateStatus transitions a transaction's status and completion time.
// Postings are never touched here; only the transactions row changes.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, transaction *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2, completed_at = $3
		WHERE id = $1
	`

	result, err := queryEngine(ctx, r.pool).Exec(ctx, query,
		transaction.ID,
		string(transaction.Status),
		transaction.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s not found", transaction.ID)
	}
	return nil
}

// ListByAccounts returns transactions referencing any of the given accounts
// as source or destination, newest first, at most limit rows.
func (r *TransactionRepository) ListByAccounts(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE source_account_id = ANY($1) OR destination_account_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, accountIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		transaction, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

func (r *TransactionRepository) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var transaction domain.Transaction
	var amount, status string

	err := row.Scan(
		&transaction.ID,
		&transaction.SourceAccountID,
		&transaction.DestinationAccountID,
		&amount,
		&transaction.Currency,
		&transaction.IdempotencyKey,
		&status,
		&transaction.CreatedAt,
		&transaction.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	transaction.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	transaction.Status = domain.TransactionStatus(status)
	return &transaction, nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation,
// SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
