package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

type TransactionType string

const (
	TransactionTypeStandard TransactionType = "STANDARD"
	TransactionTypeInstant  TransactionType = "INSTANT"
)

// Transaction is a two-sided transfer between accounts. It is created
// PENDING and transitions exactly once to COMPLETED or FAILED; balances
// are touched only by that single transition.
type Transaction struct {
	ID                   string
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Fee                  decimal.Decimal
	Type                 TransactionType
	Status               TransactionStatus
	CreatedAt            time.Time
	CompletedAt          *time.Time
}

// NewTransaction returns a PENDING transaction with its fee already fixed,
// so a later fee-schedule change can never alter an in-flight transfer.
func NewTransaction(id, sourceID, destinationID string, amount, fee decimal.Decimal, txType TransactionType, now time.Time) *Transaction {
	return &Transaction{
		ID:                   id,
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Fee:                  fee,
		Type:                 txType,
		Status:               TransactionStatusPending,
		CreatedAt:            now,
	}
}

// Total is the full amount charged to the source account.
func (t *Transaction) Total() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}
