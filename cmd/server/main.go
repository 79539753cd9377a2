package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/backend-ledger/ledger-service/internal/api"
	"github.com/backend-ledger/ledger-service/internal/config"
	"github.com/backend-ledger/ledger-service/internal/db"
	"github.com/backend-ledger/ledger-service/internal/domain"
	"github.com/backend-ledger/ledger-service/internal/events"
	"github.com/backend-ledger/ledger-service/internal/notify"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}
	logger.Info("database ready")

	accountRepo := db.NewAccountRepository(pool.Pool)
	ledgerRepo := db.NewLedgerRepository(pool.Pool)
	transactionRepo := db.NewTransactionRepository(pool.Pool)
	partyRepo := db.NewPartyRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool, logger)

	var publisher domain.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		defer rabbit.Close()
		publisher = rabbit
		logger.Info("event publisher connected", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	engine := domain.NewLedgerEngine(accountRepo, ledgerRepo, transactionRepo, txManager, publisher, logger)
	provisioner := domain.NewAccountProvisioner(accountRepo, db.GenerateAccountNumber)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.RabbitMQ.URL != "" && cfg.WebhookURL != "" {
		consumer, err := notify.NewConsumer(
			cfg.RabbitMQ.URL,
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.Queue,
			cfg.RabbitMQ.RoutingKey,
			notify.NewWebhookSender(cfg.WebhookURL),
			logger,
		)
		if err != nil {
			logger.Fatal("failed to create notification consumer", zap.Error(err))
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				logger.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(engine, provisioner, partyRepo, logger)

	go func() {
		if err := server.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	logger.Info("ledger service started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopConsumer()
	if err := server.Shutdown(); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
