package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bankcore/internal/app/invoices"
	"bankcore/internal/app/ledger"
	"bankcore/internal/app/loans"
	"bankcore/internal/app/transactions"
	"bankcore/internal/config"
	bank_http "bankcore/internal/handler/http/bank"
	"bankcore/internal/infrastructure/database"
	kafka_infra "bankcore/internal/infrastructure/kafka"
	"bankcore/internal/lock"
	"bankcore/internal/outbox"
	accounts_pg "bankcore/internal/repository/accounts_repo/postgres"
	invoices_pg "bankcore/internal/repository/invoices_repo/postgres"
	loans_pg "bankcore/internal/repository/loans_repo/postgres"
	outbox_pg "bankcore/internal/repository/outbox_repo/postgres"
	transactions_pg "bankcore/internal/repository/transactions_repo/postgres"
	users_pg "bankcore/internal/repository/users_repo/postgres"
	"bankcore/internal/sweeper"
)

func ensureKafkaTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if err == kafka.TopicAlreadyExists {
			logger.Info("One or more Kafka topics already exist, skipping creation.")
			return nil
		}
		return fmt.Errorf("failed to create Kafka topics: %w", err)
	}
	logger.Info("Kafka topics ensured successfully.", zap.Strings("topics", topics))
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Bank Core Service starting...")

	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.Config{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...",
			i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	kafkaBrokers := cfg.GetKafkaBrokers()
	topicCtx, topicCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer topicCancel()
	if err := ensureKafkaTopics(topicCtx, kafkaBrokers, []string{cfg.KafkaEventsTopic}, appLogger); err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	accountRepository := accounts_pg.NewAccountRepository(db)
	transactionRepository := transactions_pg.NewTransactionRepository(db)
	loanRepository := loans_pg.NewLoanRepository(db)
	invoiceRepository := invoices_pg.NewInvoiceRepository(db)
	userAttributesRepository := users_pg.NewUserAttributesRepository(db)
	outboxRepository := outbox_pg.NewOutboxRepository(db)

	accountLocks := lock.NewKeyed()
	loanLocks := lock.NewKeyed()
	invoiceLocks := lock.NewKeyed()

	ledgerService := ledger.NewLedgerService(
		accountRepository,
		accountLocks,
		appLogger.With(zap.String("component", "LedgerService")),
	)
	transactionService := transactions.NewTransactionService(
		accountRepository,
		transactionRepository,
		outboxRepository,
		ledgerService,
		appLogger.With(zap.String("component", "TransactionService")),
	)
	eligibilityEngine := loans.NewEligibilityEngine(loanRepository)
	loanService := loans.NewLoanService(
		loanRepository,
		userAttributesRepository,
		outboxRepository,
		eligibilityEngine,
		loanLocks,
		appLogger.With(zap.String("component", "LoanService")),
	)
	invoiceService := invoices.NewInvoiceService(
		invoiceRepository,
		outboxRepository,
		invoiceLocks,
		appLogger.With(zap.String("component", "InvoiceService")),
	)
	appLogger.Info("Bank services initialized.")

	handler := bank_http.NewHandler(
		ledgerService,
		transactionService,
		loanService,
		invoiceService,
		appLogger.With(zap.String("component", "HTTPHandler")),
	)
	router := bank_http.NewRouter(handler)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	appLogger.Info("HTTP server configured.")

	kafkaProducer := kafka_infra.NewProducer(
		kafkaBrokers,
		cfg.KafkaEventsTopic,
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}()

	outboxProcessor := outbox.NewProcessor(
		outboxRepository,
		kafkaProducer,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		appLogger.With(zap.String("component", "OutboxProcessor")),
	)

	overdueSweeper := sweeper.New(
		loanService,
		invoiceService,
		cfg.SweepInterval,
		appLogger.With(zap.String("component", "OverdueSweeper")),
	)

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	outboxProcessor.Start(ctxMain)
	overdueSweeper.Start(ctxMain)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	appLogger.Info("Shutting down application...")

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	appLogger.Info("Application gracefully shut down.")
}
