package domain

import "github.com/shopspring/decimal"

// UserAttributes is the read-only slice of a user this core needs for loan
// decisions. It is owned and mutated by the user-management service; we
// only ever load it.
type UserAttributes struct {
	UserID        string
	Age           int
	MonthlyIncome decimal.Decimal
	CreditScore   int
}
