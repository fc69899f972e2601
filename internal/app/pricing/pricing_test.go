package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcore/internal/domain"
)

func TestFee(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		txType domain.TransactionType
		want   string
	}{
		{"standard tier", "100", domain.TransactionTypeStandard, "0.1"},
		{"instant tier", "100", domain.TransactionTypeInstant, "0.5"},
		{"standard fractional", "250.40", domain.TransactionTypeStandard, "0.2504"},
		{"instant fractional", "250.40", domain.TransactionTypeInstant, "1.252"},
		{"zero amount", "0", domain.TransactionTypeInstant, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fee(decimal.RequireFromString(tt.amount), tt.txType)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestInterestRate(t *testing.T) {
	tests := []struct {
		name        string
		creditScore int
		amount      string
		want        float64
	}{
		{"excellent score large amount", 820, "60000", 8.0}, // 10 - 3 + 1
		{"excellent score small amount", 820, "10000", 7.0},
		{"good score mid amount", 720, "30000", 8.5}, // 10 - 2 + 0.5
		{"fair score", 660, "10000", 9.0},
		{"poor score large amount", 600, "60000", 11.0},
		{"boundary 800", 800, "10000", 7.0},
		{"boundary 700", 700, "10000", 8.0},
		{"boundary 650", 650, "10000", 9.0},
		{"amount exactly 50000 gets mid surcharge", 600, "50000", 10.5},
		{"amount exactly 25000 no surcharge", 600, "25000", 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterestRate(tt.creditScore, decimal.RequireFromString(tt.amount))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestInterestRateClampedAtMinimum(t *testing.T) {
	// The discount table cannot currently reach below 7, but the floor
	// must hold if the table ever changes.
	got := InterestRate(820, decimal.NewFromInt(1000))
	assert.GreaterOrEqual(t, got, 5.0)
}

func TestMonthlyPayment(t *testing.T) {
	// 10000 at 8% over 12 months.
	got := MonthlyPayment(decimal.NewFromInt(10000), 8.0, 12)
	want := decimal.RequireFromString("869.88")
	assert.True(t, got.Equal(want), "got %s, want %s", got, want)
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	got := MonthlyPayment(decimal.NewFromInt(12000), 0, 12)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)), "got %s", got)
}

func TestMonthlyPaymentZeroTerm(t *testing.T) {
	got := MonthlyPayment(decimal.NewFromInt(1000), 8.0, 0)
	assert.True(t, got.IsZero())
}

func TestAmortizationSchedule(t *testing.T) {
	principal := decimal.NewFromInt(10000)
	schedule := AmortizationSchedule(principal, 8.0, 12)
	require.Len(t, schedule, 12)

	// The balance must land on exactly zero.
	last := schedule[len(schedule)-1]
	assert.True(t, last.Remaining.IsZero(), "remaining after last installment: %s", last.Remaining)

	// Principal parts sum back to the principal.
	sum := decimal.Zero
	for _, inst := range schedule {
		sum = sum.Add(inst.Principal)
		assert.False(t, inst.Interest.IsNegative())
		assert.False(t, inst.Principal.IsNegative())
	}
	assert.True(t, sum.Equal(principal), "principal parts sum to %s", sum)

	// First month's interest on 10000 at 8%/12 is 66.67.
	assert.True(t, schedule[0].Interest.Equal(decimal.RequireFromString("66.67")),
		"first interest: %s", schedule[0].Interest)
}
