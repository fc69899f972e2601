package loans_repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

// LoanRepository persists loans and answers the aggregate queries the
// eligibility engine and the overdue sweep need.
type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	Save(ctx context.Context, loan *domain.Loan) error
	ListByUser(ctx context.Context, userID string) ([]domain.Loan, error)
	ListByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error)
	// FindActivePastEndDate returns ACTIVE loans whose end date passed
	// before asOf and which still carry a remaining balance.
	FindActivePastEndDate(ctx context.Context, asOf time.Time) ([]domain.Loan, error)
	// SumOpenDebt totals the remaining amounts of the user's PENDING and
	// ACTIVE loans.
	SumOpenDebt(ctx context.Context, userID string) (decimal.Decimal, error)
	// HasOpenLoan reports whether the user has a loan in PENDING or
	// ACTIVE status.
	HasOpenLoan(ctx context.Context, userID string) (bool, error)
	CountByUserAndStatus(ctx context.Context, userID string, status domain.LoanStatus) (int64, error)
}
