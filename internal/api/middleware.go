package api

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// partyLocal is the fiber.Ctx local under which the authenticated party is
// stored.
const partyLocal = "party"

// Authenticate resolves the bearer token to a registered party. The token is
// hashed before lookup; plain tokens are never stored or compared.
func Authenticate(parties domain.PartyRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
				Code:  "UNAUTHORIZED",
				Error: "missing bearer token",
			})
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
				Code:  "UNAUTHORIZED",
				Error: "invalid authorization header",
			})
		}

		hash := sha256.Sum256([]byte(parts[1]))
		party, err := parties.FindByTokenHash(c.Context(), hex.EncodeToString(hash[:]))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
				Code:  "UNAUTHORIZED",
				Error: "invalid token",
			})
		}

		c.Locals(partyLocal, party)
		return c.Next()
	}
}

// RequireSystem rejects callers that are not the system principal. It runs
// after Authenticate.
func RequireSystem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !requestParty(c).SystemPrincipal {
			return c.Status(fiber.StatusForbidden).JSON(errorResponse{
				Code:  "FORBIDDEN",
				Error: "forbidden",
			})
		}
		return c.Next()
	}
}

// requestParty returns the party stored by Authenticate.
func requestParty(c *fiber.Ctx) domain.Party {
	if party, ok := c.Locals(partyLocal).(*domain.Party); ok {
		return *party
	}
	return domain.Party{}
}

// HashToken computes the stored form of a session token. Exposed for
// provisioning tooling and tests.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
