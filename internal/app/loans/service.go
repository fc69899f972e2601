// Package loans owns the loan state machine: apply, approve or reject,
// activate, pay down, and the overdue sweep that defaults loans left
// unpaid past their end date.
package loans

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankcore/internal/app/pricing"
	"bankcore/internal/domain"
	"bankcore/internal/lock"
	"bankcore/internal/repository/loans_repo"
	"bankcore/internal/repository/outbox_repo"
	"bankcore/internal/repository/users_repo"
	"bankcore/internal/util"
)

// ApplyRequest is a validated loan application.
type ApplyRequest struct {
	UserID     string
	Principal  decimal.Decimal
	TermMonths int
}

type LoanService interface {
	Apply(ctx context.Context, req ApplyRequest) (*domain.Loan, error)
	Approve(ctx context.Context, loanID string) (*domain.Loan, error)
	Reject(ctx context.Context, loanID string) (*domain.Loan, error)
	// Activate moves an APPROVED loan to ACTIVE; repayment only runs
	// against ACTIVE loans.
	Activate(ctx context.Context, loanID string) (*domain.Loan, error)
	ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*domain.Loan, error)
	// SweepOverdue defaults every ACTIVE loan whose end date passed
	// before asOf with a balance still outstanding. Idempotent.
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
	GetByID(ctx context.Context, loanID string) (*domain.Loan, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Loan, error)
	ListByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error)
	TotalDebt(ctx context.Context, userID string) (decimal.Decimal, error)
	CountDefaulted(ctx context.Context, userID string) (int64, error)
}

type loanService struct {
	loans       loans_repo.LoanRepository
	users       users_repo.UserAttributesProvider
	outbox      outbox_repo.OutboxRepository
	eligibility *EligibilityEngine
	locks       *lock.Keyed
	logger      *zap.Logger
}

func NewLoanService(
	loans loans_repo.LoanRepository,
	users users_repo.UserAttributesProvider,
	outbox outbox_repo.OutboxRepository,
	eligibility *EligibilityEngine,
	locks *lock.Keyed,
	logger *zap.Logger,
) LoanService {
	return &loanService{
		loans:       loans,
		users:       users,
		outbox:      outbox,
		eligibility: eligibility,
		locks:       locks,
		logger:      logger,
	}
}

func (s *loanService) Apply(ctx context.Context, req ApplyRequest) (*domain.Loan, error) {
	if !req.Principal.IsPositive() || req.TermMonths <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	attrs, err := s.users.GetAttributes(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransientError{Err: err}
	}

	result, err := s.eligibility.Evaluate(ctx, attrs, req.Principal)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		s.logger.Warn("Loan application rejected by eligibility rules",
			zap.String("user_id", req.UserID),
			zap.Strings("reasons", result.Reasons))
		return nil, &domain.EligibilityError{Reasons: result.Reasons}
	}

	rate := pricing.InterestRate(attrs.CreditScore, req.Principal)
	monthlyPayment := pricing.MonthlyPayment(req.Principal, rate, req.TermMonths)
	loan := domain.NewLoan(util.GenerateUUID(), req.UserID, req.Principal, rate, req.TermMonths, monthlyPayment, time.Now())

	if err := s.loans.Create(ctx, loan); err != nil {
		s.logger.Error("Failed to persist loan application", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	s.appendStatusEvent(ctx, loan)
	s.logger.Info("Loan application created",
		zap.String("loan_id", loan.ID),
		zap.String("user_id", loan.UserID),
		zap.String("principal", loan.Principal.String()),
		zap.Float64("interest_rate", loan.InterestRate),
		zap.String("monthly_payment", loan.MonthlyPayment.String()))
	return loan, nil
}

func (s *loanService) Approve(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.transition(ctx, loanID, domain.LoanStatusPending, domain.LoanStatusApproved)
}

func (s *loanService) Reject(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.transition(ctx, loanID, domain.LoanStatusPending, domain.LoanStatusRejected)
}

func (s *loanService) Activate(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.transition(ctx, loanID, domain.LoanStatusApproved, domain.LoanStatusActive)
}

func (s *loanService) transition(ctx context.Context, loanID string, from, to domain.LoanStatus) (*domain.Loan, error) {
	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != from {
		return nil, domain.ErrInvalidState
	}

	loan.Status = to
	loan.UpdatedAt = time.Now()
	if err := s.loans.Save(ctx, loan); err != nil {
		s.logger.Error("Failed to persist loan transition", zap.String("loan_id", loanID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	s.appendStatusEvent(ctx, loan)
	s.logger.Info("Loan status changed",
		zap.String("loan_id", loanID),
		zap.String("status", string(to)))
	return loan, nil
}

func (s *loanService) ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*domain.Loan, error) {
	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, domain.ErrInvalidState
	}
	if !amount.IsPositive() || amount.GreaterThan(loan.RemainingAmount) {
		return nil, domain.ErrInvalidAmount
	}

	loan.RemainingAmount = loan.RemainingAmount.Sub(amount)
	if loan.RemainingAmount.IsZero() {
		loan.Status = domain.LoanStatusCompleted
	}
	loan.UpdatedAt = time.Now()
	if err := s.loans.Save(ctx, loan); err != nil {
		s.logger.Error("Failed to persist loan payment", zap.String("loan_id", loanID), zap.Error(err))
		return nil, &domain.TransientError{Err: err}
	}

	if loan.Status == domain.LoanStatusCompleted {
		s.appendStatusEvent(ctx, loan)
		s.logger.Info("Loan fully repaid", zap.String("loan_id", loanID))
	} else {
		s.logger.Info("Loan payment applied",
			zap.String("loan_id", loanID),
			zap.String("amount", amount.String()),
			zap.String("remaining", loan.RemainingAmount.String()))
	}
	return loan, nil
}

func (s *loanService) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	overdue, err := s.loans.FindActivePastEndDate(ctx, asOf)
	if err != nil {
		return 0, &domain.TransientError{Err: err}
	}

	defaulted := 0
	for i := range overdue {
		if err := s.defaultLoan(ctx, overdue[i].ID, asOf); err != nil {
			// Keep sweeping: a stuck loan must not block the batch.
			s.logger.Error("Failed to default overdue loan",
				zap.String("loan_id", overdue[i].ID), zap.Error(err))
			continue
		}
		defaulted++
	}

	if defaulted > 0 {
		s.logger.Info("Overdue loan sweep finished",
			zap.Time("as_of", asOf),
			zap.Int("defaulted", defaulted))
	}
	return defaulted, nil
}

// defaultLoan re-checks the overdue conditions under the loan's lock so a
// concurrent payoff or a second sweep run makes it a no-op.
func (s *loanService) defaultLoan(ctx context.Context, loanID string, asOf time.Time) error {
	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.load(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != domain.LoanStatusActive || !loan.EndDate.Before(asOf) || !loan.RemainingAmount.IsPositive() {
		return nil
	}

	loan.Status = domain.LoanStatusDefaulted
	loan.UpdatedAt = time.Now()
	if err := s.loans.Save(ctx, loan); err != nil {
		return &domain.TransientError{Err: err}
	}
	s.appendStatusEvent(ctx, loan)
	return nil
}

func (s *loanService) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.load(ctx, loanID)
}

func (s *loanService) ListByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	loans, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	return loans, nil
}

func (s *loanService) ListByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	loans, err := s.loans.ListByStatus(ctx, status)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	return loans, nil
}

func (s *loanService) TotalDebt(ctx context.Context, userID string) (decimal.Decimal, error) {
	total, err := s.loans.SumOpenDebt(ctx, userID)
	if err != nil {
		return decimal.Zero, &domain.TransientError{Err: err}
	}
	return total, nil
}

func (s *loanService) CountDefaulted(ctx context.Context, userID string) (int64, error) {
	count, err := s.loans.CountByUserAndStatus(ctx, userID, domain.LoanStatusDefaulted)
	if err != nil {
		return 0, &domain.TransientError{Err: err}
	}
	return count, nil
}

func (s *loanService) appendStatusEvent(ctx context.Context, loan *domain.Loan) {
	event := domain.LoanStatusChangedEvent{
		LoanID:          loan.ID,
		UserID:          loan.UserID,
		Status:          string(loan.Status),
		RemainingAmount: loan.RemainingAmount.String(),
		Timestamp:       loan.UpdatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal loan event", zap.String("loan_id", loan.ID), zap.Error(err))
		return
	}
	msg := &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		AggregateID: loan.ID,
		EventType:   domain.EventTypeLoanStatusChanged,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.outbox.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to append loan event to outbox", zap.String("loan_id", loan.ID), zap.Error(err))
	}
}

func (s *loanService) load(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransientError{Err: err}
	}
	return loan, nil
}
