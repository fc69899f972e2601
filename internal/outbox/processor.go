// Package outbox drains domain events appended by the services and
// publishes them to Kafka. A row only moves to SENT after the publish
// succeeds, so delivery is at-least-once.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	kafka_infra "bankcore/internal/infrastructure/kafka"
	"bankcore/internal/repository/outbox_repo"
)

const pollBatchSize = 10

type Processor struct {
	outboxRepo   outbox_repo.OutboxRepository
	producer     kafka_infra.Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func NewProcessor(
	outboxRepo outbox_repo.OutboxRepository,
	producer kafka_infra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		outboxRepo:   outboxRepo,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...")
	ticker := time.NewTicker(p.pollInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Outbox processor stopped.")
				return
			case <-ticker.C:
				p.processPending(ctx)
			}
		}
	}()
}

func (p *Processor) processPending(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	messages, err := p.outboxRepo.GetPending(queryCtx, pollBatchSize)
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := p.producer.Produce(ctx, msg.AggregateID, msg.Payload); err != nil {
			p.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("event_type", msg.EventType),
				zap.Error(err))
			continue
		}
		if err := p.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			// The event may be re-published on the next poll; consumers
			// must de-duplicate by message id.
			p.logger.Error("Failed to mark outbox message as sent",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		p.logger.Debug("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("event_type", msg.EventType))
	}
}
