// Package pricing holds the stateless money math: transaction fees, loan
// interest-rate pricing and amortization. Everything here is a pure
// function so both the processors and their tests call it directly.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

var (
	instantFeeRate  = decimal.RequireFromString("0.005")
	standardFeeRate = decimal.RequireFromString("0.001")
)

const (
	baseInterestRate = 10.0
	minInterestRate  = 5.0
)

// Fee returns the transfer fee for the given amount and fee tier. The
// multiplication is exact; no rounding is applied here.
func Fee(amount decimal.Decimal, txType domain.TransactionType) decimal.Decimal {
	if txType == domain.TransactionTypeInstant {
		return amount.Mul(instantFeeRate)
	}
	return amount.Mul(standardFeeRate)
}

// InterestRate prices an annual rate (percent) from the applicant's credit
// score and the requested amount. Deterministic: base 10.0, minus the
// credit-score discount, plus the large-amount surcharge, clamped at 5.0.
func InterestRate(creditScore int, amount decimal.Decimal) float64 {
	rate := baseInterestRate

	switch {
	case creditScore >= 800:
		rate -= 3.0
	case creditScore >= 700:
		rate -= 2.0
	case creditScore >= 650:
		rate -= 1.0
	}

	switch {
	case amount.GreaterThan(decimal.NewFromInt(50000)):
		rate += 1.0
	case amount.GreaterThan(decimal.NewFromInt(25000)):
		rate += 0.5
	}

	return math.Max(rate, minInterestRate)
}

// MonthlyPayment computes the fixed amortized installment
// P*r*(1+r)^n / ((1+r)^n - 1), rounded to cents. A zero rate degenerates
// to principal/termMonths; the pricing table never produces zero, but the
// function is used standalone.
func MonthlyPayment(principal decimal.Decimal, annualRatePercent float64, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}

	monthlyRate := annualRatePercent / 12.0 / 100.0
	if monthlyRate == 0 {
		return principal.DivRound(decimal.NewFromInt(int64(termMonths)), 2)
	}

	p, _ := principal.Float64()
	compound := math.Pow(1+monthlyRate, float64(termMonths))
	payment := p * monthlyRate * compound / (compound - 1)
	return decimal.NewFromFloat(payment).Round(2)
}

// Installment is one row of an amortization schedule.
type Installment struct {
	Month     int
	Payment   decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
	Remaining decimal.Decimal
}

// AmortizationSchedule expands a loan into per-month installments. The
// final installment absorbs the rounding drift so the balance lands on
// exactly zero.
func AmortizationSchedule(principal decimal.Decimal, annualRatePercent float64, termMonths int) []Installment {
	if termMonths <= 0 {
		return nil
	}

	payment := MonthlyPayment(principal, annualRatePercent, termMonths)
	monthlyRate := decimal.NewFromFloat(annualRatePercent / 12.0 / 100.0)

	schedule := make([]Installment, 0, termMonths)
	remaining := principal
	for month := 1; month <= termMonths; month++ {
		interest := remaining.Mul(monthlyRate).Round(2)
		principalPart := payment.Sub(interest)
		if month == termMonths || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)
		schedule = append(schedule, Installment{
			Month:     month,
			Payment:   principalPart.Add(interest),
			Interest:  interest,
			Principal: principalPart,
			Remaining: remaining,
		})
	}
	return schedule
}
