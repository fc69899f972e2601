package domain

import "time"

const (
	EventTypeTransactionCompleted = "transaction.completed"
	EventTypeLoanStatusChanged    = "loan.status_changed"
	EventTypeInvoiceStatusChanged = "invoice.status_changed"
)

// TransactionCompletedEvent is published after both balances of a transfer
// have been applied and the record marked COMPLETED.
type TransactionCompletedEvent struct {
	TransactionID        string    `json:"transaction_id"`
	SourceAccountID      string    `json:"source_account_id"`
	DestinationAccountID string    `json:"destination_account_id"`
	Amount               string    `json:"amount"`
	Fee                  string    `json:"fee"`
	Type                 string    `json:"type"`
	CompletedAt          time.Time `json:"completed_at"`
}

// LoanStatusChangedEvent is published on every loan state transition.
type LoanStatusChangedEvent struct {
	LoanID          string    `json:"loan_id"`
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	RemainingAmount string    `json:"remaining_amount"`
	Timestamp       time.Time `json:"timestamp"`
}

// InvoiceStatusChangedEvent is published when an invoice is paid or swept
// overdue.
type InvoiceStatusChangedEvent struct {
	InvoiceID string    `json:"invoice_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
