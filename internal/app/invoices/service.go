// Package invoices owns the invoice state machine: pending bills are paid
// or swept to overdue once their due date passes.
package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankcore/internal/domain"
	"bankcore/internal/lock"
	"bankcore/internal/repository/invoices_repo"
	"bankcore/internal/repository/outbox_repo"
	"bankcore/internal/util"
)

// CreateRequest is a validated invoice creation request.
type CreateRequest struct {
	UserID    string
	AmountDue decimal.Decimal
	DueDate   time.Time
}

type InvoiceService interface {
	Create(ctx context.Context, req CreateRequest) (*domain.Invoice, error)
	Pay(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	// SweepOverdue moves every PENDING invoice due before asOf to
	// OVERDUE. Idempotent.
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
	GetByID(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Invoice, error)
	ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error)
	TotalPendingAmount(ctx context.Context, userID string) (decimal.Decimal, error)
	HasOverdue(ctx context.Context, userID string) (bool, error)
}

type invoiceService struct {
	invoices invoices_repo.InvoiceRepository
	outbox   outbox_repo.OutboxRepository
	locks    *lock.Keyed
	logger   *zap.Logger
}

func NewInvoiceService(
	invoices invoices_repo.InvoiceRepository,
	outbox outbox_repo.OutboxRepository,
	locks *lock.Keyed,
	logger *zap.Logger,
) InvoiceService {
	return &invoiceService{
		invoices: invoices,
		outbox:   outbox,
		locks:    locks,
		logger:   logger,
	}
}

func (s *invoiceService) Create(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	if !req.AmountDue.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	invoice := domain.NewInvoice(util.GenerateUUID(), req.UserID, req.AmountDue, req.DueDate, time.Now())
	if err := s.invoices.Create(ctx, invoice); err != nil {
		s.logger.Error("Failed to persist invoice", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	s.logger.Info("Invoice created",
		zap.String("invoice_id", invoice.ID),
		zap.String("user_id", invoice.UserID),
		zap.String("amount_due", invoice.AmountDue.String()),
		zap.Time("due_date", invoice.DueDate))
	return invoice, nil
}

func (s *invoiceService) Pay(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	invoice, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	// The source system only accepts payment while PENDING, which also
	// rejects genuinely overdue bills. Flagged for product review; do not
	// widen this without confirmation.
	if invoice.Status != domain.InvoiceStatusPending {
		return nil, domain.ErrInvalidState
	}

	now := time.Now()
	invoice.Status = domain.InvoiceStatusPaid
	invoice.PaidDate = &now
	invoice.UpdatedAt = now
	if err := s.invoices.Save(ctx, invoice); err != nil {
		s.logger.Error("Failed to persist invoice payment", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	s.appendStatusEvent(ctx, invoice)
	s.logger.Info("Invoice paid", zap.String("invoice_id", invoiceID))
	return invoice, nil
}

func (s *invoiceService) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	pending, err := s.invoices.FindPendingPastDueDate(ctx, asOf)
	if err != nil {
		return 0, &domain.TransientError{Err: err}
	}

	marked := 0
	for i := range pending {
		if err := s.markOverdue(ctx, pending[i].ID, asOf); err != nil {
			s.logger.Error("Failed to mark invoice overdue",
				zap.String("invoice_id", pending[i].ID), zap.Error(err))
			continue
		}
		marked++
	}

	if marked > 0 {
		s.logger.Info("Overdue invoice sweep finished",
			zap.Time("as_of", asOf),
			zap.Int("marked", marked))
	}
	return marked, nil
}

// markOverdue re-checks the invoice under its lock so a concurrent payment
// or a repeated sweep run makes it a no-op.
func (s *invoiceService) markOverdue(ctx context.Context, invoiceID string, asOf time.Time) error {
	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	invoice, err := s.load(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status != domain.InvoiceStatusPending || !invoice.DueDate.Before(asOf) {
		return nil
	}

	invoice.Status = domain.InvoiceStatusOverdue
	invoice.UpdatedAt = time.Now()
	if err := s.invoices.Save(ctx, invoice); err != nil {
		return &domain.TransientError{Err: err}
	}
	s.appendStatusEvent(ctx, invoice)
	return nil
}

func (s *invoiceService) GetByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.load(ctx, invoiceID)
}

func (s *invoiceService) ListByUser(ctx context.Context, userID string) ([]domain.Invoice, error) {
	invoices, err := s.invoices.ListByUser(ctx, userID)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	return invoices, nil
}

func (s *invoiceService) ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error) {
	invoices, err := s.invoices.ListByStatus(ctx, status)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	return invoices, nil
}

func (s *invoiceService) TotalPendingAmount(ctx context.Context, userID string) (decimal.Decimal, error) {
	total, err := s.invoices.SumPendingAmount(ctx, userID)
	if err != nil {
		return decimal.Zero, &domain.TransientError{Err: err}
	}
	return total, nil
}

func (s *invoiceService) HasOverdue(ctx context.Context, userID string) (bool, error) {
	overdue, err := s.invoices.HasOverdue(ctx, userID)
	if err != nil {
		return false, &domain.TransientError{Err: err}
	}
	return overdue, nil
}

func (s *invoiceService) appendStatusEvent(ctx context.Context, invoice *domain.Invoice) {
	event := domain.InvoiceStatusChangedEvent{
		InvoiceID: invoice.ID,
		UserID:    invoice.UserID,
		Status:    string(invoice.Status),
		Timestamp: invoice.UpdatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal invoice event", zap.String("invoice_id", invoice.ID), zap.Error(err))
		return
	}
	msg := &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		AggregateID: invoice.ID,
		EventType:   domain.EventTypeInvoiceStatusChanged,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.outbox.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to append invoice event to outbox", zap.String("invoice_id", invoice.ID), zap.Error(err))
	}
}

func (s *invoiceService) load(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransientError{Err: err}
	}
	return invoice, nil
}
