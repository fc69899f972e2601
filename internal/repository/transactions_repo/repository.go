package transactions_repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

// TransactionRepository persists transfer records and answers the daily
// debit aggregation.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	Save(ctx context.Context, tx *domain.Transaction) error
	ListByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error)
	// SumCompletedStandardDebits totals COMPLETED STANDARD transfers
	// debited from the account during the calendar day containing day.
	SumCompletedStandardDebits(ctx context.Context, accountID string, day time.Time) (decimal.Decimal, error)
}
