// Package api exposes the ledger engine over HTTP.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// Server wires the HTTP surface: handlers, auth middleware and routes.
type Server struct {
	app             *fiber.App
	engine          Engine
	provisioner     Provisioner
	parties         domain.PartyRepository
	defaultCurrency string
	logger          *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithDefaultCurrency sets the currency used when account creation omits one.
func WithDefaultCurrency(currency string) Option {
	return func(s *Server) { s.defaultCurrency = currency }
}

// NewServer builds the fiber application and registers all routes.
func NewServer(engine Engine, provisioner Provisioner, parties domain.PartyRepository, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:          engine,
		provisioner:     provisioner,
		parties:         parties,
		defaultCurrency: "INR",
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api", Authenticate(parties))

	api.Post("/accounts", s.createAccount)
	api.Get("/accounts/:id/balance", s.getBalance)

	api.Get("/transactions", s.listTransactions)
	api.Post("/transactions", s.createTransfer)
	api.Post("/transactions/system/initial-funds", RequireSystem(), s.seedFunds)

	s.app = app
	return s
}

// App exposes the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on the given address until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server starting", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
