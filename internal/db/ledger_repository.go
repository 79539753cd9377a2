package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// LedgerRepository implements domain.LedgerRepository using PostgreSQL. The
// postings table is append-only: this type issues INSERT and SELECT, nothing
// else, and no other code touches the table.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// AppendPosting inserts one immutable posting. Only the engine's atomic unit
// calls this, together with the owning transaction's PENDING to COMPLETED
// transition.
func (r *LedgerRepository) AppendPosting(ctx context.Context, posting *domain.Posting) error {
	query := `
		INSERT INTO postings (id, transaction_id, account_id, direction, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := queryEngine(ctx, r.pool).Exec(ctx, query,
		posting.ID,
		posting.TransactionID,
		posting.AccountID,
		string(posting.Direction),
		posting.Amount.StringFixed(2),
		posting.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append posting: %w", err)
	}
	return nil
}

// SumPostings aggregates total debits and total credits for one account over
// its full posting history. An account with no postings sums to zero on both
// sides.
func (r *LedgerRepository) SumPostings(ctx context.Context, accountID uuid.UUID) (domain.Balance, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE direction = 'DEBIT'), 0),
			COALESCE(SUM(amount) FILTER (WHERE direction = 'CREDIT'), 0)
		FROM postings
		WHERE account_id = $1
	`

	var debits, credits string
	err := queryEngine(ctx, r.pool).QueryRow(ctx, query, accountID).Scan(&debits, &credits)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("failed to sum postings: %w", err)
	}

	totalDebits, err := decimal.NewFromString(debits)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("invalid debit total %q: %w", debits, err)
	}
	totalCredits, err := decimal.NewFromString(credits)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("invalid credit total %q: %w", credits, err)
	}

	return domain.Balance{
		AccountID:    accountID,
		TotalDebits:  totalDebits,
		TotalCredits: totalCredits,
	}, nil
}
