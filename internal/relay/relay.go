package relay

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richardliu001/ecommerce-analytics/internal/broker"
	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

// Relay drains the outbox into the broker. It is the only writer of
// published_at. Publishing and marking are separate operations, so a crash
// between them republishes the row on the next tick; consumers dedup.
type Relay struct {
	repo repo.WriteRepositoryInterface
	pub  broker.Publisher
	cfg  config.RelayConfig
	log  *zap.SugaredLogger

	mu      sync.Mutex // guards the in-flight tick
	stopped chan struct{}
	once    sync.Once
}

func NewRelay(r repo.WriteRepositoryInterface, pub broker.Publisher, cfg config.RelayConfig, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		repo:    r,
		pub:     pub,
		cfg:     cfg,
		log:     logger,
		stopped: make(chan struct{}),
	}
}

// Run ticks until ctx is cancelled or Stop is called. An in-flight tick that
// outlives the interval causes the next tick to be skipped, not queued.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval.Std())
	defer ticker.Stop()

	r.log.Infof("relay started (interval=%s batch=%d)", r.cfg.Interval.Std(), r.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping: context cancelled")
			return
		case <-r.stopped:
			r.log.Info("relay stopping: stop requested")
			return
		case <-ticker.C:
			if !r.mu.TryLock() {
				r.log.Warn("previous tick still running, skipping")
				continue
			}
			r.tick(ctx)
			r.mu.Unlock()
		}
	}
}

// Stop prevents further ticks and waits for the in-flight one to drain.
func (r *Relay) Stop() {
	r.once.Do(func() { close(r.stopped) })
	r.mu.Lock()
	r.mu.Unlock()
}

// Tick runs one relay pass; exported for tests and one-shot use.
func (r *Relay) Tick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tick(ctx)
}

func (r *Relay) tick(ctx context.Context) {
	events, err := r.repo.PollOutbox(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		r.log.Errorf("poll outbox: %v", err)
		return
	}
	for _, evt := range events {
		if err := r.publish(ctx, evt); err != nil {
			r.log.Errorf("publish outbox id=%d attempt=%d: %v", evt.ID, evt.Attempts+1, err)
			if err := r.repo.IncrementOutboxAttempts(ctx, evt.ID); err != nil {
				r.log.Errorf("bump attempts id=%d: %v", evt.ID, err)
			}
			if evt.Attempts+1 >= r.cfg.MaxAttempts {
				r.log.Warnf("outbox id=%d quarantined after %d attempts", evt.ID, evt.Attempts+1)
			}
			continue
		}
		if err := r.repo.MarkOutboxPublished(ctx, evt.ID); err != nil {
			// row stays unpublished and is republished next tick;
			// at-least-once
			r.log.Errorf("mark published id=%d: %v", evt.ID, err)
			continue
		}
		r.log.Infof("outbox id=%d published", evt.ID)
	}
}

func (r *Relay) publish(ctx context.Context, evt model.OutboxEvent) error {
	key := []byte(strconv.FormatUint(evt.ID, 10))
	return r.pub.Publish(ctx, evt.Topic, key, []byte(evt.Payload))
}
