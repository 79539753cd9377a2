package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// errorResponse is the failure body: a machine-readable code and a
// human-readable reason. Retryable tells the caller whether resubmitting with
// the same idempotency key can succeed.
type errorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeDomainError maps a domain failure to an HTTP response. Every failure
// names the precondition that broke, except authorization failures, which
// stay generic so they reveal nothing about what the caller cannot access.
func writeDomainError(c *fiber.Ctx, err error) error {
	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientFundsError
		inactive     *domain.AccountInactiveError
		commit       *domain.CommitError
	)

	switch {
	case errors.As(err, &validation),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
			Code:  "VALIDATION_FAILED",
			Error: err.Error(),
		})

	case errors.As(err, &inactive):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
			Code:  "ACCOUNT_INACTIVE",
			Error: err.Error(),
		})

	case errors.Is(err, domain.ErrNotAccountOwner), errors.Is(err, domain.ErrNotSystemPrincipal):
		return c.Status(fiber.StatusForbidden).JSON(errorResponse{
			Code:  "FORBIDDEN",
			Error: "forbidden",
		})

	case errors.Is(err, domain.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{
			Code:  "ACCOUNT_NOT_FOUND",
			Error: err.Error(),
		})

	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{
			Code:  "INSUFFICIENT_FUNDS",
			Error: err.Error(),
		})

	case errors.Is(err, domain.ErrTransferInProgress):
		return c.Status(fiber.StatusConflict).JSON(errorResponse{
			Code:      "TRANSFER_IN_PROGRESS",
			Error:     err.Error(),
			Retryable: true,
		})

	case errors.Is(err, domain.ErrIdempotencyKeyUsed):
		return c.Status(fiber.StatusConflict).JSON(errorResponse{
			Code:  "IDEMPOTENCY_KEY_USED",
			Error: err.Error(),
		})

	case errors.As(err, &commit):
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Code:      "COMMIT_FAILED",
			Error:     err.Error(),
			Retryable: true,
		})

	default:
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Code:  "INTERNAL",
			Error: "internal error",
		})
	}
}
