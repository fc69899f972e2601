package invoices_repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

// InvoiceRepository persists invoices and serves the due-date sweep and
// pending-amount aggregation.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	Save(ctx context.Context, invoice *domain.Invoice) error
	ListByUser(ctx context.Context, userID string) ([]domain.Invoice, error)
	ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error)
	// FindPendingPastDueDate returns PENDING invoices due strictly before
	// asOf.
	FindPendingPastDueDate(ctx context.Context, asOf time.Time) ([]domain.Invoice, error)
	SumPendingAmount(ctx context.Context, userID string) (decimal.Decimal, error)
	HasOverdue(ctx context.Context, userID string) (bool, error)
}
