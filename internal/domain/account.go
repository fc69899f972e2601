package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusBlocked AccountStatus = "BLOCKED"
	AccountStatusClosed  AccountStatus = "CLOSED"
)

// Account holds a single user's balance. The balance never goes negative;
// mutation happens only through the ledger service under the account's
// entity lock.
type Account struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount returns a fully initialized ACTIVE account.
func NewAccount(id, userID string, initialBalance decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:        id,
		UserID:    userID,
		Balance:   initialBalance,
		Status:    AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
