package consumer

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/broker"
	"github.com/richardliu001/ecommerce-analytics/internal/event"
	"github.com/richardliu001/ecommerce-analytics/internal/projector"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

// Consumer applies broker deliveries to the read model at most once. The
// dedup record and the projection writes share one transaction, so an event
// is either fully reflected in the views or not at all.
type Consumer struct {
	repo repo.ReadRepositoryInterface
	proj *projector.Projector
	sub  broker.Subscriber
	log  *zap.SugaredLogger
}

func NewConsumer(r repo.ReadRepositoryInterface, p *projector.Projector, sub broker.Subscriber, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{repo: r, proj: p, sub: sub, log: logger}
}

// Run consumes deliveries until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Consume(ctx, c.Handle)
}

// Handle processes one delivery and reports its fate.
//
// Decode failures (garbage or an eventType outside the union) are poison:
// dead-letter, never requeue. Store faults are transient: requeue. A dedup
// hit is success: the first delivery already applied the event.
func (c *Consumer) Handle(ctx context.Context, d broker.Delivery) broker.Outcome {
	ev, err := event.Decode(d.Body)
	if err != nil {
		if errors.Is(err, event.ErrUnknownType) {
			c.log.Warnf("unknown event type on %s: %v", d.RoutingKey, err)
		} else {
			c.log.Errorf("undecodable message on %s: %v", d.RoutingKey, err)
		}
		return broker.DeadLetter
	}

	key := ev.DedupKey()
	err = c.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		// claim the identity first; the unique key decides races between
		// concurrent deliveries of the same event
		if err := c.repo.InsertProcessedEvent(ctx, tx, key); err != nil {
			return err
		}
		return c.proj.Apply(ctx, tx, ev)
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEvent) {
			c.log.Infof("event %s already processed, skipping", key)
			return broker.Ack
		}
		c.log.Errorf("apply event %s: %v", key, err)
		return broker.Requeue
	}

	c.log.Infof("processed %s event %s", ev.Type(), key)
	return broker.Ack
}
