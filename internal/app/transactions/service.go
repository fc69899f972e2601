// Package transactions drives the transfer state machine: a request is
// validated, recorded as a PENDING transaction, applied to both balances
// through the ledger and only then marked COMPLETED.
package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankcore/internal/app/ledger"
	"bankcore/internal/app/pricing"
	"bankcore/internal/domain"
	"bankcore/internal/repository/accounts_repo"
	"bankcore/internal/repository/outbox_repo"
	"bankcore/internal/repository/transactions_repo"
	"bankcore/internal/util"
)

// CreateRequest is a validated transfer request handed in by a controller.
type CreateRequest struct {
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Type                 domain.TransactionType
}

type TransactionService interface {
	// CreateAndProcess validates the request, records a PENDING
	// transaction and immediately processes it.
	CreateAndProcess(ctx context.Context, req CreateRequest) (*domain.Transaction, error)
	// Process applies a PENDING transaction to both balances. Processing
	// a transaction in any other state fails with ErrInvalidState.
	Process(ctx context.Context, transactionID string) (*domain.Transaction, error)
	GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error)
	// DailyTotal sums the COMPLETED STANDARD debits of the account for
	// the calendar day containing day.
	DailyTotal(ctx context.Context, accountID string, day time.Time) (decimal.Decimal, error)
}

type transactionService struct {
	accounts     accounts_repo.AccountRepository
	transactions transactions_repo.TransactionRepository
	outbox       outbox_repo.OutboxRepository
	ledger       ledger.LedgerService
	logger       *zap.Logger
}

func NewTransactionService(
	accounts accounts_repo.AccountRepository,
	transactions transactions_repo.TransactionRepository,
	outbox outbox_repo.OutboxRepository,
	ledgerSvc ledger.LedgerService,
	logger *zap.Logger,
) TransactionService {
	return &transactionService{
		accounts:     accounts,
		transactions: transactions,
		outbox:       outbox,
		ledger:       ledgerSvc,
		logger:       logger,
	}
}

func (s *transactionService) CreateAndProcess(ctx context.Context, req CreateRequest) (*domain.Transaction, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	fee := pricing.Fee(req.Amount, req.Type)
	tx := domain.NewTransaction(
		util.GenerateUUID(),
		req.SourceAccountID,
		req.DestinationAccountID,
		req.Amount,
		fee,
		req.Type,
		time.Now(),
	)
	if err := s.transactions.Create(ctx, tx); err != nil {
		s.logger.Error("Failed to persist pending transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	return s.process(ctx, tx)
}

func (s *transactionService) Process(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := s.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TransactionStatusPending {
		return nil, domain.ErrInvalidState
	}
	return s.process(ctx, tx)
}

// validate runs the request checks in a fixed order so each failure mode
// surfaces as its own error: same account, inactive account, non-positive
// amount, insufficient funds.
func (s *transactionService) validate(ctx context.Context, req CreateRequest) error {
	if req.SourceAccountID == req.DestinationAccountID {
		return domain.ErrSameAccount
	}

	source, err := s.loadAccount(ctx, req.SourceAccountID)
	if err != nil {
		return err
	}
	destination, err := s.loadAccount(ctx, req.DestinationAccountID)
	if err != nil {
		return err
	}
	if source.Status != domain.AccountStatusActive || destination.Status != domain.AccountStatusActive {
		return domain.ErrAccountNotActive
	}

	if !req.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	total := req.Amount.Add(pricing.Fee(req.Amount, req.Type))
	if source.Balance.LessThan(total) {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (s *transactionService) process(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	err := s.ledger.ApplyTransfer(ctx, tx.SourceAccountID, tx.DestinationAccountID, tx.Total(), tx.Amount)
	if err != nil {
		// A transient failure leaves the record PENDING so the caller can
		// retry the attempt. A domain-rule failure (the account state
		// changed since validation) is final: the record moves to FAILED.
		if domain.IsTransient(err) {
			return nil, err
		}
		tx.Status = domain.TransactionStatusFailed
		if saveErr := s.transactions.Save(ctx, tx); saveErr != nil {
			s.logger.Error("Failed to mark transaction as failed",
				zap.String("transaction_id", tx.ID), zap.Error(saveErr))
		}
		s.logger.Warn("Transaction failed",
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return nil, err
	}

	now := time.Now()
	tx.Status = domain.TransactionStatusCompleted
	tx.CompletedAt = &now
	if err := s.transactions.Save(ctx, tx); err != nil {
		s.logger.Error("Balances applied but transaction record not saved; record stays PENDING",
			zap.String("transaction_id", tx.ID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	s.appendCompletedEvent(ctx, tx)

	s.logger.Info("Transaction completed",
		zap.String("transaction_id", tx.ID),
		zap.String("source_account_id", tx.SourceAccountID),
		zap.String("destination_account_id", tx.DestinationAccountID),
		zap.String("amount", tx.Amount.String()),
		zap.String("fee", tx.Fee.String()))
	return tx, nil
}

func (s *transactionService) appendCompletedEvent(ctx context.Context, tx *domain.Transaction) {
	event := domain.TransactionCompletedEvent{
		TransactionID:        tx.ID,
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		Amount:               tx.Amount.String(),
		Fee:                  tx.Fee.String(),
		Type:                 string(tx.Type),
		CompletedAt:          *tx.CompletedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal transaction event", zap.String("transaction_id", tx.ID), zap.Error(err))
		return
	}
	msg := &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		AggregateID: tx.ID,
		EventType:   domain.EventTypeTransactionCompleted,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.outbox.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to append transaction event to outbox", zap.String("transaction_id", tx.ID), zap.Error(err))
	}
}

func (s *transactionService) GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransientError{Err: err}
	}
	return tx, nil
}

func (s *transactionService) ListByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	txs, err := s.transactions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	return txs, nil
}

func (s *transactionService) DailyTotal(ctx context.Context, accountID string, day time.Time) (decimal.Decimal, error) {
	total, err := s.transactions.SumCompletedStandardDebits(ctx, accountID, day)
	if err != nil {
		return decimal.Zero, &domain.TransientError{Err: err}
	}
	return total, nil
}

func (s *transactionService) loadAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransientError{Err: err}
	}
	return account, nil
}
