package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// PartyRepository implements domain.PartyRepository using PostgreSQL.
type PartyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository creates a new PartyRepository.
func NewPartyRepository(pool *pgxpool.Pool) *PartyRepository {
	return &PartyRepository{pool: pool}
}

// FindByTokenHash resolves a party from the SHA-256 hash of its session
// token. Plain tokens are never stored or compared.
func (r *PartyRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Party, error) {
	query := `
		SELECT id, name, email, system_principal
		FROM parties
		WHERE token_hash = $1
	`

	var party domain.Party
	err := queryEngine(ctx, r.pool).QueryRow(ctx, query, tokenHash).Scan(
		&party.ID,
		&party.Name,
		&party.Email,
		&party.SystemPrincipal,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPartyNotFound
		}
		return nil, fmt.Errorf("failed to find party by token: %w", err)
	}
	return &party, nil
}

// Create persists a new party with its hashed session token.
func (r *PartyRepository) Create(ctx context.Context, party *domain.Party, tokenHash string) error {
	query := `
		INSERT INTO parties (id, name, email, token_hash, system_principal)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := queryEngine(ctx, r.pool).Exec(ctx, query,
		party.ID,
		party.Name,
		party.Email,
		tokenHash,
		party.SystemPrincipal,
	)
	if err != nil {
		return fmt.Errorf("failed to create party: %w", err)
	}
	return nil
}
