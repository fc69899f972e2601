package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// Invoice is a bill against a user. PENDING moves to PAID on payment or to
// OVERDUE when the due-date sweep passes it.
type Invoice struct {
	ID        string
	UserID    string
	AmountDue decimal.Decimal
	DueDate   time.Time
	PaidDate  *time.Time
	Status    InvoiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInvoice returns a PENDING invoice due at dueDate.
func NewInvoice(id, userID string, amountDue decimal.Decimal, dueDate, now time.Time) *Invoice {
	return &Invoice{
		ID:        id,
		UserID:    userID,
		AmountDue: amountDue,
		DueDate:   dueDate,
		Status:    InvoiceStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
