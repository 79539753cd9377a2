package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

type stubEngine struct {
	submitTransfer        func(ctx context.Context, party domain.Party, req domain.SubmitTransferRequest) (*domain.TransferResult, error)
	seedFunds             func(ctx context.Context, party domain.Party, req domain.SeedFundsRequest) (*domain.TransferResult, error)
	getBalance            func(ctx context.Context, accountID uuid.UUID) (*domain.Account, decimal.Decimal, error)
	listPartyTransactions func(ctx context.Context, party domain.Party, limit int) ([]*domain.Transaction, error)
}

func (s *stubEngine) SubmitTransfer(ctx context.Context, party domain.Party, req domain.SubmitTransferRequest) (*domain.TransferResult, error) {
	return s.submitTransfer(ctx, party, req)
}

func (s *stubEngine) SeedFunds(ctx context.Context, party domain.Party, req domain.SeedFundsRequest) (*domain.TransferResult, error) {
	return s.seedFunds(ctx, party, req)
}

func (s *stubEngine) GetBalance(ctx context.Context, accountID uuid.UUID) (*domain.Account, decimal.Decimal, error) {
	return s.getBalance(ctx, accountID)
}

func (s *stubEngine) ListPartyTransactions(ctx context.Context, party domain.Party, limit int) ([]*domain.Transaction, error) {
	return s.listPartyTransactions(ctx, party, limit)
}

type stubProvisioner struct {
	createAccount func(ctx context.Context, partyID uuid.UUID, currency string) (*domain.Account, error)
}

func (s *stubProvisioner) CreateAccount(ctx context.Context, partyID uuid.UUID, currency string) (*domain.Account, error) {
	return s.createAccount(ctx, partyID, currency)
}

type stubParties struct {
	byHash map[string]*domain.Party
}

func (s *stubParties) FindByTokenHash(_ context.Context, tokenHash string) (*domain.Party, error) {
	party, ok := s.byHash[tokenHash]
	if !ok {
		return nil, domain.ErrPartyNotFound
	}
	return party, nil
}

func (s *stubParties) Create(context.Context, *domain.Party, string) error {
	return errors.New("not implemented")
}

type testHarness struct {
	server *Server
	engine *stubEngine
	caller domain.Party
	system domain.Party
}

func newTestHarness(t *testing.T, provisioner Provisioner) *testHarness {
	t.Helper()

	engine := &stubEngine{}
	caller := domain.Party{ID: uuid.New(), Name: "Alice"}
	system := domain.Party{ID: uuid.New(), Name: "Treasury", SystemPrincipal: true}
	parties := &stubParties{byHash: map[string]*domain.Party{
		HashToken("caller-token"): &caller,
		HashToken("system-token"): &system,
	}}

	if provisioner == nil {
		provisioner = &stubProvisioner{}
	}
	return &testHarness{
		server: NewServer(engine, provisioner, parties, nil),
		engine: engine,
		caller: caller,
		system: system,
	}
}

func (h *testHarness) request(t *testing.T, method, target, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func completedTransaction(amount string) *domain.Transaction {
	transaction := domain.NewTransaction(uuid.New(), uuid.New(), decimal.RequireFromString(amount), "INR", "key-1")
	transaction.MarkCompleted()
	return transaction
}

func TestAuthenticate(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine.listPartyTransactions = func(context.Context, domain.Party, int) ([]*domain.Transaction, error) {
		return nil, nil
	}

	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
	}{
		{"no header", "", "", http.StatusUnauthorized},
		{"not a bearer scheme", "", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "wrong-token", "", http.StatusUnauthorized},
		{"valid token", "caller-token", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			} else if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := h.server.App().Test(req, -1)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestCreateTransfer(t *testing.T) {
	h := newTestHarness(t, nil)
	transaction := completedTransaction("42.00")

	h.engine.submitTransfer = func(_ context.Context, party domain.Party, req domain.SubmitTransferRequest) (*domain.TransferResult, error) {
		if party.ID != h.caller.ID {
			t.Errorf("handler passed wrong party %s", party.ID)
		}
		if !req.Amount.Equal(decimal.RequireFromString("42.00")) {
			t.Errorf("handler passed wrong amount %s", req.Amount)
		}
		if req.IdempotencyKey != "key-1" {
			t.Errorf("handler passed wrong idempotency key %q", req.IdempotencyKey)
		}
		return &domain.TransferResult{Transaction: transaction}, nil
	}

	resp := h.request(t, http.MethodPost, "/api/transactions", "caller-token", map[string]string{
		"sourceAccountId":       transaction.SourceAccountID.String(),
		"destinationAccountRef": "1234567890",
		"amount":                "42.00",
		"idempotencyKey":        "key-1",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body transferResponse
	decodeBody(t, resp, &body)
	if body.TransactionID != transaction.ID.String() {
		t.Errorf("wrong transaction id in response: %s", body.TransactionID)
	}
	if body.Status != "COMPLETED" {
		t.Errorf("expected status COMPLETED, got %s", body.Status)
	}
	if body.Replayed {
		t.Error("fresh transfer flagged as replayed")
	}
}

func TestCreateTransfer_ReplayReturns200(t *testing.T) {
	h := newTestHarness(t, nil)
	transaction := completedTransaction("42.00")
	h.engine.submitTransfer = func(context.Context, domain.Party, domain.SubmitTransferRequest) (*domain.TransferResult, error) {
		return &domain.TransferResult{Transaction: transaction, Replayed: true}, nil
	}

	resp := h.request(t, http.MethodPost, "/api/transactions", "caller-token", map[string]string{
		"sourceAccountId":       transaction.SourceAccountID.String(),
		"destinationAccountRef": "1234567890",
		"amount":                "42.00",
		"idempotencyKey":        "key-1",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for replay, got %d", resp.StatusCode)
	}
	var body transferResponse
	decodeBody(t, resp, &body)
	if !body.Replayed {
		t.Error("replay not flagged in response")
	}
	if body.TransactionID != transaction.ID.String() {
		t.Errorf("replay returned wrong transaction id: %s", body.TransactionID)
	}
}

func TestCreateTransfer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.NewValidationError("bad input"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"same account", domain.ErrSameAccount, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"currency mismatch", domain.ErrCurrencyMismatch, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"inactive account", &domain.AccountInactiveError{AccountNumber: "1234567890", Status: domain.AccountStatusFrozen}, http.StatusBadRequest, "ACCOUNT_INACTIVE"},
		{"not owner", domain.ErrNotAccountOwner, http.StatusForbidden, "FORBIDDEN"},
		{"account not found", domain.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"insufficient funds", &domain.InsufficientFundsError{Balance: decimal.RequireFromString("3.50")}, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{"transfer in progress", domain.ErrTransferInProgress, http.StatusConflict, "TRANSFER_IN_PROGRESS"},
		{"key used", domain.ErrIdempotencyKeyUsed, http.StatusConflict, "IDEMPOTENCY_KEY_USED"},
		{"commit failed", &domain.CommitError{Err: errors.New("connection reset")}, http.StatusInternalServerError, "COMMIT_FAILED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t, nil)
			h.engine.submitTransfer = func(context.Context, domain.Party, domain.SubmitTransferRequest) (*domain.TransferResult, error) {
				return nil, tt.err
			}

			resp := h.request(t, http.MethodPost, "/api/transactions", "caller-token", map[string]string{
				"sourceAccountId":       uuid.NewString(),
				"destinationAccountRef": "1234567890",
				"amount":                "10.00",
				"idempotencyKey":        "key-1",
			})

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			var body errorResponse
			decodeBody(t, resp, &body)
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
		})
	}
}

func TestCreateTransfer_RejectsBadInputBeforeEngine(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine.submitTransfer = func(context.Context, domain.Party, domain.SubmitTransferRequest) (*domain.TransferResult, error) {
		t.Fatal("engine must not be reached on malformed input")
		return nil, nil
	}

	tests := []struct {
		name string
		body map[string]string
	}{
		{"malformed source id", map[string]string{
			"sourceAccountId": "nope", "destinationAccountRef": "1234567890", "amount": "10.00", "idempotencyKey": "k",
		}},
		{"malformed amount", map[string]string{
			"sourceAccountId": uuid.NewString(), "destinationAccountRef": "1234567890", "amount": "ten", "idempotencyKey": "k",
		}},
		{"negative amount", map[string]string{
			"sourceAccountId": uuid.NewString(), "destinationAccountRef": "1234567890", "amount": "-1.00", "idempotencyKey": "k",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.request(t, http.MethodPost, "/api/transactions", "caller-token", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSeedFunds_RequiresSystemPrincipal(t *testing.T) {
	h := newTestHarness(t, nil)
	transaction := completedTransaction("100.00")
	h.engine.seedFunds = func(_ context.Context, party domain.Party, req domain.SeedFundsRequest) (*domain.TransferResult, error) {
		if !party.SystemPrincipal {
			t.Error("seed funds reached the engine for a non-system party")
		}
		return &domain.TransferResult{Transaction: transaction}, nil
	}

	body := map[string]string{
		"destinationAccountRef": "1234567890",
		"amount":                "100.00",
		"idempotencyKey":        "seed-1",
	}

	resp := h.request(t, http.MethodPost, "/api/transactions/system/initial-funds", "caller-token", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("ordinary caller: expected 403, got %d", resp.StatusCode)
	}

	resp = h.request(t, http.MethodPost, "/api/transactions/system/initial-funds", "system-token", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("system caller: expected 201, got %d", resp.StatusCode)
	}
}

func TestGetBalance(t *testing.T) {
	h := newTestHarness(t, nil)
	account := &domain.Account{
		ID:            uuid.New(),
		PartyID:       h.caller.ID,
		AccountNumber: "1234567890",
		Status:        domain.AccountStatusActive,
		Currency:      "INR",
	}
	h.engine.getBalance = func(_ context.Context, accountID uuid.UUID) (*domain.Account, decimal.Decimal, error) {
		if accountID != account.ID {
			return nil, decimal.Zero, domain.ErrAccountNotFound
		}
		return account, decimal.RequireFromString("123.40"), nil
	}

	resp := h.request(t, http.MethodGet, "/api/accounts/"+account.ID.String()+"/balance", "caller-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["balance"] != "123.40" {
		t.Errorf("expected balance 123.40, got %s", body["balance"])
	}
	if body["currency"] != "INR" {
		t.Errorf("expected currency INR, got %s", body["currency"])
	}

	// Someone else's account reads as not found, not forbidden.
	resp = h.request(t, http.MethodGet, "/api/accounts/"+account.ID.String()+"/balance", "system-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign account: expected 404, got %d", resp.StatusCode)
	}
}

func TestListTransactions(t *testing.T) {
	h := newTestHarness(t, nil)
	first := completedTransaction("10.00")
	second := completedTransaction("20.00")

	var gotLimit int
	h.engine.listPartyTransactions = func(_ context.Context, party domain.Party, limit int) ([]*domain.Transaction, error) {
		gotLimit = limit
		return []*domain.Transaction{second, first}, nil
	}

	resp := h.request(t, http.MethodGet, "/api/transactions?limit=2", "caller-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotLimit != 2 {
		t.Errorf("expected limit 2 passed through, got %d", gotLimit)
	}

	var body struct {
		Transactions []transactionResponse `json:"transactions"`
	}
	decodeBody(t, resp, &body)
	if len(body.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(body.Transactions))
	}
	if body.Transactions[0].ID != second.ID.String() {
		t.Error("transactions not in engine order")
	}
	if body.Transactions[0].CompletedAt == nil {
		t.Error("completed transaction missing completedAt")
	}
}

func TestCreateAccount(t *testing.T) {
	var gotCurrency string
	provisioner := &stubProvisioner{
		createAccount: func(_ context.Context, partyID uuid.UUID, currency string) (*domain.Account, error) {
			gotCurrency = currency
			return &domain.Account{
				ID:            uuid.New(),
				PartyID:       partyID,
				AccountNumber: "9876543210",
				Status:        domain.AccountStatusActive,
				Currency:      currency,
				CreatedAt:     time.Now().UTC(),
			}, nil
		},
	}
	h := newTestHarness(t, provisioner)

	// Explicit currency.
	resp := h.request(t, http.MethodPost, "/api/accounts", "caller-token", map[string]string{"currency": "USD"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if gotCurrency != "USD" {
		t.Errorf("expected currency USD, got %s", gotCurrency)
	}

	// Omitted currency falls back to the server default.
	resp = h.request(t, http.MethodPost, "/api/accounts", "caller-token", map[string]string{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if gotCurrency != "INR" {
		t.Errorf("expected default currency INR, got %s", gotCurrency)
	}

	var body struct {
		Account accountResponse `json:"account"`
	}
	decodeBody(t, resp, &body)
	if body.Account.AccountNumber != "9876543210" {
		t.Errorf("unexpected account number %s", body.Account.AccountNumber)
	}
}
