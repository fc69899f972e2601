package outbox_repo

import (
	"context"

	"bankcore/internal/domain"
)

// OutboxRepository stores domain events awaiting publication.
type OutboxRepository interface {
	Create(ctx context.Context, msg *domain.OutboxMessage) error
	GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
}
