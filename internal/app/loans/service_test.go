package loans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bankcore/internal/domain"
	"bankcore/internal/lock"
)

type memLoanRepo struct {
	mu    sync.Mutex
	loans map[string]domain.Loan
}

func newMemLoanRepo() *memLoanRepo {
	return &memLoanRepo{loans: make(map[string]domain.Loan)}
}

func (r *memLoanRepo) Create(ctx context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loans[loan.ID] = *loan
	return nil
}

func (r *memLoanRepo) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := loan
	return &copied, nil
}

func (r *memLoanRepo) Save(ctx context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loans[loan.ID] = *loan
	return nil
}

func (r *memLoanRepo) ListByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Loan
	for _, loan := range r.loans {
		if loan.UserID == userID {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (r *memLoanRepo) ListByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Loan
	for _, loan := range r.loans {
		if loan.Status == status {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (r *memLoanRepo) FindActivePastEndDate(ctx context.Context, asOf time.Time) ([]domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Loan
	for _, loan := range r.loans {
		if loan.Status == domain.LoanStatusActive && loan.EndDate.Before(asOf) && loan.RemainingAmount.IsPositive() {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (r *memLoanRepo) SumOpenDebt(ctx context.Context, userID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, loan := range r.loans {
		if loan.UserID == userID &&
			(loan.Status == domain.LoanStatusPending || loan.Status == domain.LoanStatusActive) {
			total = total.Add(loan.RemainingAmount)
		}
	}
	return total, nil
}

func (r *memLoanRepo) HasOpenLoan(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, loan := range r.loans {
		if loan.UserID == userID &&
			(loan.Status == domain.LoanStatusPending || loan.Status == domain.LoanStatusActive) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLoanRepo) CountByUserAndStatus(ctx context.Context, userID string, status domain.LoanStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, loan := range r.loans {
		if loan.UserID == userID && loan.Status == status {
			count++
		}
	}
	return count, nil
}

type memUserProvider struct {
	users map[string]domain.UserAttributes
}

func (p *memUserProvider) GetAttributes(ctx context.Context, userID string) (*domain.UserAttributes, error) {
	attrs, ok := p.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := attrs
	return &copied, nil
}

type memOutboxRepo struct {
	mu       sync.Mutex
	messages []domain.OutboxMessage
}

func (r *memOutboxRepo) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memOutboxRepo) GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OutboxMessage
	for _, msg := range r.messages {
		if msg.Status == domain.OutboxStatusPending {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOutboxRepo) MarkSent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Status = domain.OutboxStatusSent
			return nil
		}
	}
	return domain.ErrNotFound
}

func goodApplicant() domain.UserAttributes {
	return domain.UserAttributes{
		UserID:        "user-1",
		Age:           35,
		MonthlyIncome: decimal.NewFromInt(5000),
		CreditScore:   720,
	}
}

type fixture struct {
	loans  *memLoanRepo
	users  *memUserProvider
	outbox *memOutboxRepo
	svc    LoanService
}

func newFixture(attrs ...domain.UserAttributes) *fixture {
	loans := newMemLoanRepo()
	users := &memUserProvider{users: make(map[string]domain.UserAttributes)}
	for _, a := range attrs {
		users.users[a.UserID] = a
	}
	outbox := &memOutboxRepo{}
	svc := NewLoanService(loans, users, outbox,
		NewEligibilityEngine(loans), lock.NewKeyed(), zap.NewNop())
	return &fixture{loans: loans, users: users, outbox: outbox, svc: svc}
}

func (f *fixture) apply(t *testing.T, userID string, principal string, termMonths int) *domain.Loan {
	t.Helper()
	loan, err := f.svc.Apply(context.Background(), ApplyRequest{
		UserID:     userID,
		Principal:  decimal.RequireFromString(principal),
		TermMonths: termMonths,
	})
	require.NoError(t, err)
	return loan
}

func TestEvaluateReportsEveryViolatedRule(t *testing.T) {
	f := newFixture()
	engine := NewEligibilityEngine(f.loans)

	attrs := &domain.UserAttributes{
		UserID:        "user-1",
		Age:           17,
		MonthlyIncome: decimal.NewFromInt(1000),
		CreditScore:   500,
	}
	result, err := engine.Evaluate(context.Background(), attrs, decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	// Age, score, income and the debt cap all fail at once.
	assert.Len(t, result.Reasons, 4)
}

func TestEvaluateRejectsSecondOpenLoan(t *testing.T) {
	f := newFixture(goodApplicant())
	f.apply(t, "user-1", "10000", 12)

	engine := NewEligibilityEngine(f.loans)
	attrs := goodApplicant()
	result, err := engine.Evaluate(context.Background(), &attrs, decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.Reasons, "cannot have multiple active loans")
}

func TestApplyCreatesPricedPendingLoan(t *testing.T) {
	f := newFixture(goodApplicant())

	loan := f.apply(t, "user-1", "10000", 12)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	// Credit score 720 and a 10000 principal price at 10 - 2 = 8 percent.
	assert.InDelta(t, 8.0, loan.InterestRate, 1e-9)
	assert.True(t, loan.MonthlyPayment.Equal(decimal.RequireFromString("869.88")),
		"monthly payment: %s", loan.MonthlyPayment)
	assert.True(t, loan.RemainingAmount.Equal(loan.Principal))
}

func TestApplyIneligibleReturnsReasons(t *testing.T) {
	f := newFixture(domain.UserAttributes{
		UserID:        "user-1",
		Age:           35,
		MonthlyIncome: decimal.NewFromInt(5000),
		CreditScore:   600,
	})

	_, err := f.svc.Apply(context.Background(), ApplyRequest{
		UserID:     "user-1",
		Principal:  decimal.NewFromInt(10000),
		TermMonths: 12,
	})
	var eligErr *domain.EligibilityError
	require.ErrorAs(t, err, &eligErr)
	assert.Contains(t, eligErr.Reasons, "minimum credit score required is 650")
}

func TestApplyUnknownUser(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Apply(context.Background(), ApplyRequest{
		UserID:     "missing",
		Principal:  decimal.NewFromInt(10000),
		TermMonths: 12,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoanLifecycleTransitions(t *testing.T) {
	f := newFixture(goodApplicant())
	loan := f.apply(t, "user-1", "10000", 12)

	approved, err := f.svc.Approve(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, approved.Status)

	// Repayment is rejected until the loan is activated.
	_, err = f.svc.ApplyPayment(context.Background(), loan.ID, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	active, err := f.svc.Activate(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, active.Status)
}

func TestTransitionFromWrongStateLeavesLoanUntouched(t *testing.T) {
	f := newFixture(goodApplicant())
	loan := f.apply(t, "user-1", "10000", 12)

	// A PENDING loan cannot be activated directly.
	_, err := f.svc.Activate(context.Background(), loan.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	stored, getErr := f.loans.GetByID(context.Background(), loan.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.LoanStatusPending, stored.Status)

	// Rejecting twice fails the second time.
	_, err = f.svc.Reject(context.Background(), loan.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), loan.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func activateLoan(t *testing.T, f *fixture, loanID string) {
	t.Helper()
	_, err := f.svc.Approve(context.Background(), loanID)
	require.NoError(t, err)
	_, err = f.svc.Activate(context.Background(), loanID)
	require.NoError(t, err)
}

func TestApplyPaymentBounds(t *testing.T) {
	f := newFixture(goodApplicant())
	loan := f.apply(t, "user-1", "10000", 12)
	activateLoan(t, f, loan.ID)

	_, err := f.svc.ApplyPayment(context.Background(), loan.ID, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.ApplyPayment(context.Background(), loan.ID, decimal.NewFromInt(10001))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	paid, err := f.svc.ApplyPayment(context.Background(), loan.ID, decimal.NewFromInt(4000))
	require.NoError(t, err)
	assert.True(t, paid.RemainingAmount.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, domain.LoanStatusActive, paid.Status)
}

func TestExactPayoffCompletesLoan(t *testing.T) {
	f := newFixture(goodApplicant())
	loan := f.apply(t, "user-1", "10000", 12)
	activateLoan(t, f, loan.ID)

	paid, err := f.svc.ApplyPayment(context.Background(), loan.ID, decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusCompleted, paid.Status)
	assert.True(t, paid.RemainingAmount.IsZero())

	// A completed loan takes no further payments.
	_, err = f.svc.ApplyPayment(context.Background(), loan.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestSweepOverdueDefaultsAndIsIdempotent(t *testing.T) {
	f := newFixture(goodApplicant())
	loan := f.apply(t, "user-1", "10000", 12)
	activateLoan(t, f, loan.ID)

	// Not yet past the end date.
	defaulted, err := f.svc.SweepOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, defaulted)

	asOf := time.Now().AddDate(0, 13, 0)
	defaulted, err = f.svc.SweepOverdue(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, defaulted)

	stored, getErr := f.loans.GetByID(context.Background(), loan.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.LoanStatusDefaulted, stored.Status)

	defaulted, err = f.svc.SweepOverdue(context.Background(), asOf)
	require.NoError(t, err)
	assert.Zero(t, defaulted)

	count, err := f.svc.CountDefaulted(context.Background(), "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestTotalDebtSumsOpenLoans(t *testing.T) {
	f := newFixture(goodApplicant())
	loan := f.apply(t, "user-1", "10000", 12)
	activateLoan(t, f, loan.ID)
	_, err := f.svc.ApplyPayment(context.Background(), loan.ID, decimal.NewFromInt(4000))
	require.NoError(t, err)

	total, err := f.svc.TotalDebt(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(6000)), "total: %s", total)
}
