package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "PENDING"
	LoanStatusApproved  LoanStatus = "APPROVED"
	LoanStatusRejected  LoanStatus = "REJECTED"
	LoanStatusActive    LoanStatus = "ACTIVE"
	LoanStatusCompleted LoanStatus = "COMPLETED"
	LoanStatusDefaulted LoanStatus = "DEFAULTED"
)

// Loan carries its full amortization terms from creation. RemainingAmount
// starts at Principal, decreases only through payments and reaches zero
// exactly when the loan completes.
type Loan struct {
	ID              string
	UserID          string
	Principal       decimal.Decimal
	InterestRate    float64 // annual percent
	TermMonths      int
	MonthlyPayment  decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          LoanStatus
	StartDate       time.Time
	EndDate         time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewLoan returns a priced PENDING loan running from now for termMonths.
func NewLoan(id, userID string, principal decimal.Decimal, interestRate float64, termMonths int, monthlyPayment decimal.Decimal, now time.Time) *Loan {
	return &Loan{
		ID:              id,
		UserID:          userID,
		Principal:       principal,
		InterestRate:    interestRate,
		TermMonths:      termMonths,
		MonthlyPayment:  monthlyPayment,
		RemainingAmount: principal,
		Status:          LoanStatusPending,
		StartDate:       now,
		EndDate:         now.AddDate(0, termMonths, 0),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
