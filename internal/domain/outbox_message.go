package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
)

// OutboxMessage is a domain event waiting to be published to Kafka. Rows
// are appended by the services and drained by the outbox processor.
type OutboxMessage struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	Status      OutboxMessageStatus
	CreatedAt   time.Time
	SentAt      *time.Time
}
