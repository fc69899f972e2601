package accounts_repo

import (
	"context"

	"bankcore/internal/domain"
)

// AccountRepository is the persistence facade for accounts. Callers are
// expected to hold the account's entity lock across a Get/Save pair.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
}
