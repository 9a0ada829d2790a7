package outbox

import (
	"context"
	"time"

	"github.com/harborview/reservations/internal/adapters/crdb"
	"github.com/harborview/reservations/internal/adapters/rabbit"
	"github.com/harborview/reservations/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher drains committed ledger events to the topic exchange. Messages
// carry the outbox dedupe key as MessageId so consumers can drop duplicate
// deliveries after a crash between publish and mark.
type Publisher struct {
	repo      *crdb.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
	batch     int
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, batch: 50}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, p.batch)
	if err != nil {
		p.logger.WithError(err).Error("failed to read outbox")
		return
	}
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			p.logger.WithError(err).WithField("event_type", rec.EventType).Warn("publish failed, will retry next tick")
			continue
		}
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now(), rec.DedupeKey); err != nil {
			p.logger.WithError(err).Error("failed to mark outbox record published")
		}
	}
}
