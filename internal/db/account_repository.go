package db

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// AccountRepository implements domain.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, party_id, account_number, status, currency, created_at, updated_at`

// FindByID retrieves an account by its unique identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(queryEngine(ctx, r.pool).QueryRow(ctx, query, id))
}

// FindByNumber retrieves an account by its 10-digit account number.
func (r *AccountRepository) FindByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return r.scanAccount(queryEngine(ctx, r.pool).QueryRow(ctx, query, number))
}

// ListByParty retrieves all accounts owned by the given party, oldest first.
func (r *AccountRepository) ListByParty(ctx context.Context, partyID uuid.UUID) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE party_id = $1 ORDER BY created_at`

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Lock re-reads the account row under SELECT ... FOR UPDATE. The lock is held
// until the surrounding transaction ends and serializes every concurrent
// write path touching the same account. Must be called within a transaction
// context.
func (r *AccountRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := r.scanAccount(queryEngine(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, party_id, account_number, status, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := queryEngine(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.PartyID,
		account.AccountNumber,
		string(account.Status),
		account.Currency,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAccountNumber
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var status string

	err := row.Scan(
		&account.ID,
		&account.PartyID,
		&account.AccountNumber,
		&status,
		&account.Currency,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Status = domain.AccountStatus(status)
	return &account, nil
}

// GenerateAccountNumber draws a random 10-digit account number. Uniqueness is
// enforced by the account_number unique constraint; callers retry on
// domain.ErrDuplicateAccountNumber.
func GenerateAccountNumber() (string, error) {
	// First digit 1-9 so the number always has 10 significant digits.
	n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate account number: %w", err)
	}
	return fmt.Sprintf("%010d", n.Int64()+1_000_000_000), nil
}
