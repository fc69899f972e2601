package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bankcore/internal/domain"
)

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_id, event_type, payload, status, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var sentAt sql.NullTime
	if msg.SentAt != nil {
		sentAt = sql.NullTime{Time: *msg.SentAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.AggregateID, msg.EventType, msg.Payload, msg.Status, msg.CreatedAt, sentAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, status, created_at, sent_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		var sentAt sql.NullTime
		if err := rows.Scan(
			&msg.ID, &msg.AggregateID, &msg.EventType, &msg.Payload,
			&msg.Status, &msg.CreatedAt, &sentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, domain.OutboxStatusSent, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as sent: %w", id, err)
	}
	return nil
}
