package users_repo

import (
	"context"

	"bankcore/internal/domain"
)

// UserAttributesProvider reads the user facts the loan engine needs. The
// data is owned by the user-management service; this core never writes it.
type UserAttributesProvider interface {
	GetAttributes(ctx context.Context, userID string) (*domain.UserAttributes, error)
}
