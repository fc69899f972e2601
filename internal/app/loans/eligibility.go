package loans

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
	"bankcore/internal/repository/loans_repo"
)

const (
	minAge               = 18
	minCreditScore       = 650
	loanToIncomeMonths   = 12
	minMonthlyIncomeUnit = 3000
)

var minMonthlyIncome = decimal.NewFromInt(minMonthlyIncomeUnit)

// EligibilityResult lists every violated rule; the applicant is eligible
// iff Reasons is empty.
type EligibilityResult struct {
	Eligible bool
	Reasons  []string
}

// EligibilityEngine evaluates all loan rules without short-circuiting so
// the applicant sees the full list of problems at once.
type EligibilityEngine struct {
	loans loans_repo.LoanRepository
}

func NewEligibilityEngine(loans loans_repo.LoanRepository) *EligibilityEngine {
	return &EligibilityEngine{loans: loans}
}

func (e *EligibilityEngine) Evaluate(ctx context.Context, attrs *domain.UserAttributes, requestedAmount decimal.Decimal) (*EligibilityResult, error) {
	var reasons []string

	if attrs.Age < minAge {
		reasons = append(reasons, fmt.Sprintf("applicant must be at least %d years old", minAge))
	}
	if attrs.CreditScore < minCreditScore {
		reasons = append(reasons, fmt.Sprintf("minimum credit score required is %d", minCreditScore))
	}
	if attrs.MonthlyIncome.LessThan(minMonthlyIncome) {
		reasons = append(reasons, fmt.Sprintf("minimum monthly income required is $%s", minMonthlyIncome.StringFixed(2)))
	}

	hasOpen, err := e.loans.HasOpenLoan(ctx, attrs.UserID)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	if hasOpen {
		reasons = append(reasons, "cannot have multiple active loans")
	}

	existingDebt, err := e.loans.SumOpenDebt(ctx, attrs.UserID)
	if err != nil {
		return nil, &domain.TransientError{Err: err}
	}
	maxLoanAmount := attrs.MonthlyIncome.Mul(decimal.NewFromInt(loanToIncomeMonths))
	if existingDebt.Add(requestedAmount).GreaterThan(maxLoanAmount) {
		reasons = append(reasons, fmt.Sprintf(
			"maximum loan amount exceeded: available limit is $%s",
			maxLoanAmount.Sub(existingDebt).StringFixed(2)))
	}

	return &EligibilityResult{Eligible: len(reasons) == 0, Reasons: reasons}, nil
}
