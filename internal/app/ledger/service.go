// Package ledger owns account balance state. Every mutation runs as a
// read-modify-write under the account's entity lock and is persisted
// before the lock is released, so no partial update is ever observable.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankcore/internal/domain"
	"bankcore/internal/lock"
	"bankcore/internal/repository/accounts_repo"
	"bankcore/internal/util"
)

type LedgerService interface {
	Open(ctx context.Context, userID string, initialBalance decimal.Decimal) (*domain.Account, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error)
	// ApplyTransfer debits the source by debitAmount and credits the
	// destination by creditAmount as one atomic step: both entity locks
	// are taken in ascending id order and held across both writes.
	ApplyTransfer(ctx context.Context, sourceID, destinationID string, debitAmount, creditAmount decimal.Decimal) error
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	Block(ctx context.Context, accountID string) (*domain.Account, error)
	CloseAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

type ledgerService struct {
	accounts accounts_repo.AccountRepository
	locks    *lock.Keyed
	logger   *zap.Logger
}

func NewLedgerService(accounts accounts_repo.AccountRepository, locks *lock.Keyed, logger *zap.Logger) LedgerService {
	return &ledgerService{
		accounts: accounts,
		locks:    locks,
		logger:   logger,
	}
}

func (s *ledgerService) Open(ctx context.Context, userID string, initialBalance decimal.Decimal) (*domain.Account, error) {
	if initialBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	account := domain.NewAccount(util.GenerateUUID(), userID, initialBalance, time.Now())
	if err := s.accounts.Create(ctx, account); err != nil {
		s.logger.Error("Failed to persist new account", zap.String("user_id", userID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	s.logger.Info("Account opened",
		zap.String("account_id", account.ID),
		zap.String("user_id", userID),
		zap.String("balance", initialBalance.String()))
	return account, nil
}

func (s *ledgerService) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountStatusActive {
		return nil, domain.ErrAccountNotActive
	}
	if account.Balance.LessThan(amount) {
		s.logger.Warn("Debit rejected: insufficient funds",
			zap.String("account_id", accountID),
			zap.String("balance", account.Balance.String()),
			zap.String("amount", amount.String()))
		return nil, domain.ErrInsufficientFunds
	}

	account.Balance = account.Balance.Sub(amount)
	account.UpdatedAt = time.Now()
	if err := s.accounts.Save(ctx, account); err != nil {
		s.logger.Error("Failed to persist debit", zap.String("account_id", accountID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}
	return account, nil
}

func (s *ledgerService) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountStatusActive {
		return nil, domain.ErrAccountNotActive
	}

	account.Balance = account.Balance.Add(amount)
	account.UpdatedAt = time.Now()
	if err := s.accounts.Save(ctx, account); err != nil {
		s.logger.Error("Failed to persist credit", zap.String("account_id", accountID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}
	return account, nil
}

func (s *ledgerService) ApplyTransfer(ctx context.Context, sourceID, destinationID string, debitAmount, creditAmount decimal.Decimal) error {
	if sourceID == destinationID {
		return domain.ErrSameAccount
	}
	if !debitAmount.IsPositive() || !creditAmount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	unlock := s.locks.LockPair(sourceID, destinationID)
	defer unlock()

	source, err := s.load(ctx, sourceID)
	if err != nil {
		return err
	}
	destination, err := s.load(ctx, destinationID)
	if err != nil {
		return err
	}
	if source.Status != domain.AccountStatusActive || destination.Status != domain.AccountStatusActive {
		return domain.ErrAccountNotActive
	}
	if source.Balance.LessThan(debitAmount) {
		s.logger.Warn("Transfer rejected: insufficient funds",
			zap.String("source_account_id", sourceID),
			zap.String("balance", source.Balance.String()),
			zap.String("debit_amount", debitAmount.String()))
		return domain.ErrInsufficientFunds
	}

	originalSourceBalance := source.Balance
	now := time.Now()

	source.Balance = source.Balance.Sub(debitAmount)
	source.UpdatedAt = now
	if err := s.accounts.Save(ctx, source); err != nil {
		s.logger.Error("Failed to persist transfer debit", zap.String("source_account_id", sourceID), zap.Error(err))
		return &domain.TransientError{Err: err}
	}

	destination.Balance = destination.Balance.Add(creditAmount)
	destination.UpdatedAt = now
	if err := s.accounts.Save(ctx, destination); err != nil {
		// Compensate the already-persisted debit so no money disappears.
		source.Balance = originalSourceBalance
		if compErr := s.accounts.Save(ctx, source); compErr != nil {
			s.logger.Error("Failed to compensate debit after credit failure",
				zap.String("source_account_id", sourceID),
				zap.String("destination_account_id", destinationID),
				zap.Error(compErr))
		}
		s.logger.Error("Failed to persist transfer credit", zap.String("destination_account_id", destinationID), zap.Error(err))
		return &domain.TransientError{Err: err}
	}

	return nil
}

func (s *ledgerService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (s *ledgerService) Block(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.setStatus(ctx, accountID, domain.AccountStatusBlocked)
}

func (s *ledgerService) CloseAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	// An account holding money cannot be closed.
	if !account.Balance.IsZero() {
		return nil, domain.ErrInvalidState
	}

	account.Status = domain.AccountStatusClosed
	account.UpdatedAt = time.Now()
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	s.logger.Info("Account closed", zap.String("account_id", accountID))
	return account, nil
}

func (s *ledgerService) setStatus(ctx context.Context, accountID string, status domain.AccountStatus) (*domain.Account, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account.Status = status
	account.UpdatedAt = time.Now()
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	s.logger.Info("Account status changed",
		zap.String("account_id", accountID),
		zap.String("status", string(status)))
	return account, nil
}

func (s *ledgerService) load(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransientError{Err: err}
	}
	return account, nil
}
