package db

import (
	"context"
	"fmt"
)

// migrations holds the schema, applied in order. Statements are idempotent so
// Migrate can run on every startup. The postings table is append-only and the
// accounts table has no balance column: balances are derived from postings.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS parties (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		token_hash TEXT NOT NULL UNIQUE,
		system_principal BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		party_id UUID NOT NULL REFERENCES parties(id),
		account_number CHAR(10) NOT NULL UNIQUE CHECK (account_number ~ '^\d{10}$'),
		status VARCHAR(10) NOT NULL CHECK (status IN ('ACTIVE', 'FROZEN', 'CLOSED')),
		currency CHAR(3) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_party_id ON accounts(party_id);`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		source_account_id UUID NOT NULL REFERENCES accounts(id),
		destination_account_id UUID NOT NULL REFERENCES accounts(id),
		amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
		currency CHAR(3) NOT NULL,
		idempotency_key VARCHAR(255) NOT NULL UNIQUE,
		status VARCHAR(12) NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED', 'REVERSED')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		CHECK (source_account_id <> destination_account_id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_source_account_id ON transactions(source_account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_destination_account_id ON transactions(destination_account_id);`,

	`CREATE TABLE IF NOT EXISTS postings (
		id UUID PRIMARY KEY,
		transaction_id UUID NOT NULL REFERENCES transactions(id),
		account_id UUID NOT NULL REFERENCES accounts(id),
		direction VARCHAR(6) NOT NULL CHECK (direction IN ('DEBIT', 'CREDIT')),
		amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_postings_account_id ON postings(account_id);
	CREATE INDEX IF NOT EXISTS idx_postings_transaction_id ON postings(transaction_id);`,
}

// Migrate applies the schema.
func (p *Pool) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := p.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}
