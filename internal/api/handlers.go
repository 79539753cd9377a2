package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// Engine is the transfer engine surface the handlers consume.
type Engine interface {
	SubmitTransfer(ctx context.Context, party domain.Party, req domain.SubmitTransferRequest) (*domain.TransferResult, error)
	SeedFunds(ctx context.Context, party domain.Party, req domain.SeedFundsRequest) (*domain.TransferResult, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (*domain.Account, decimal.Decimal, error)
	ListPartyTransactions(ctx context.Context, party domain.Party, limit int) ([]*domain.Transaction, error)
}

// Provisioner creates accounts for registered parties.
type Provisioner interface {
	CreateAccount(ctx context.Context, partyID uuid.UUID, currency string) (*domain.Account, error)
}

type transferRequest struct {
	SourceAccountID       string `json:"sourceAccountId"`
	DestinationAccountRef string `json:"destinationAccountRef"`
	Amount                string `json:"amount"`
	IdempotencyKey        string `json:"idempotencyKey"`
}

type seedFundsRequest struct {
	DestinationAccountRef string `json:"destinationAccountRef"`
	Amount                string `json:"amount"`
	IdempotencyKey        string `json:"idempotencyKey"`
}

type transferResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Replayed      bool   `json:"replayed,omitempty"`
}

type accountResponse struct {
	ID            string `json:"id"`
	AccountNumber string `json:"accountNumber"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"createdAt"`
}

type transactionResponse struct {
	ID                   string  `json:"id"`
	SourceAccountID      string  `json:"sourceAccountId"`
	DestinationAccountID string  `json:"destinationAccountId"`
	Amount               string  `json:"amount"`
	Currency             string  `json:"currency"`
	Status               string  `json:"status"`
	CreatedAt            string  `json:"createdAt"`
	CompletedAt          *string `json:"completedAt,omitempty"`
}

type createAccountRequest struct {
	Currency string `json:"currency"`
}

// createTransfer handles POST /api/transactions.
func (s *Server) createTransfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return writeDomainError(c, domain.NewValidationError("invalid request body"))
	}

	sourceID, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		return writeDomainError(c, domain.NewValidationError("invalid source account id %q", req.SourceAccountID))
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return writeDomainError(c, err)
	}

	result, err := s.engine.SubmitTransfer(c.Context(), requestParty(c), domain.SubmitTransferRequest{
		SourceAccountID: sourceID,
		DestinationRef:  req.DestinationAccountRef,
		Amount:          amount,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		return writeDomainError(c, err)
	}

	return writeTransferResult(c, result)
}

// seedFunds handles POST /api/transactions/system/initial-funds.
func (s *Server) seedFunds(c *fiber.Ctx) error {
	var req seedFundsRequest
	if err := c.BodyParser(&req); err != nil {
		return writeDomainError(c, domain.NewValidationError("invalid request body"))
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return writeDomainError(c, err)
	}

	result, err := s.engine.SeedFunds(c.Context(), requestParty(c), domain.SeedFundsRequest{
		DestinationRef: req.DestinationAccountRef,
		Amount:         amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return writeDomainError(c, err)
	}

	return writeTransferResult(c, result)
}

// getBalance handles GET /api/accounts/:id/balance. Only the owner may read
// a balance; the response for someone else's account is indistinguishable
// from a missing one.
func (s *Server) getBalance(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeDomainError(c, domain.NewValidationError("invalid account id"))
	}

	account, balance, err := s.engine.GetBalance(c.Context(), accountID)
	if err != nil {
		return writeDomainError(c, err)
	}

	if !account.OwnedBy(requestParty(c).ID) {
		return writeDomainError(c, domain.ErrAccountNotFound)
	}

	return c.JSON(fiber.Map{
		"accountId":     account.ID.String(),
		"accountNumber": account.AccountNumber,
		"balance":       balance.StringFixed(2),
		"currency":      account.Currency,
	})
}

// listTransactions handles GET /api/transactions?limit=N: the caller's
// transaction history across all of its accounts, newest first.
func (s *Server) listTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit")

	transactions, err := s.engine.ListPartyTransactions(c.Context(), requestParty(c), limit)
	if err != nil {
		return writeDomainError(c, err)
	}

	out := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, newTransactionResponse(t))
	}
	return c.JSON(fiber.Map{"transactions": out})
}

// createAccount handles POST /api/accounts.
func (s *Server) createAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return writeDomainError(c, domain.NewValidationError("invalid request body"))
	}
	if req.Currency == "" {
		req.Currency = s.defaultCurrency
	}

	account, err := s.provisioner.CreateAccount(c.Context(), requestParty(c).ID, req.Currency)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"account": accountResponse{
		ID:            account.ID.String(),
		AccountNumber: account.AccountNumber,
		Status:        string(account.Status),
		Currency:      account.Currency,
		CreatedAt:     account.CreatedAt.UTC().Format(time.RFC3339),
	}})
}

// writeTransferResult writes 201 for a fresh transfer and 200 for an
// idempotent replay; both carry the same shape and the same transaction id.
func writeTransferResult(c *fiber.Ctx, result *domain.TransferResult) error {
	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(transferResponse{
		TransactionID: result.Transaction.ID.String(),
		Status:        string(result.Transaction.Status),
		Amount:        result.Transaction.Amount.StringFixed(2),
		Currency:      result.Transaction.Currency,
		Replayed:      result.Replayed,
	})
}

func newTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                   t.ID.String(),
		SourceAccountID:      t.SourceAccountID.String(),
		DestinationAccountID: t.DestinationAccountID.String(),
		Amount:               t.Amount.StringFixed(2),
		Currency:             t.Currency,
		Status:               string(t.Status),
		CreatedAt:            t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		completed := t.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}
