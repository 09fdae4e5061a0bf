package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

type fakePublisher struct {
	published []string // payloads in publish order
	fail      bool
}

func (f *fakePublisher) Publish(_ context.Context, _ string, _, payload []byte) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.published = append(f.published, string(payload))
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func newTestRelay(t *testing.T, pub *fakePublisher, cfg config.RelayConfig) (*Relay, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.OutboxEvent{}))

	writeRepo := repo.NewWriteRepository(db, must(logger.NewLogger("test")))
	return NewRelay(writeRepo, pub, cfg, must(logger.NewLogger("test"))), db
}

func seedOutbox(t *testing.T, db *gorm.DB, n int) {
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		evt := model.OutboxEvent{
			Topic:     "order_events",
			Payload:   fmt.Sprintf(`{"seq":%d}`, i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		assert.NoError(t, db.Create(&evt).Error)
	}
}

func TestRelay_BatchesFIFO(t *testing.T) {
	pub := &fakePublisher{}
	r, db := newTestRelay(t, pub, config.RelayConfig{Interval: config.Duration(time.Second), BatchSize: 10, MaxAttempts: 5})
	seedOutbox(t, db, 15)

	r.Tick(context.Background())
	assert.Len(t, pub.published, 10)
	// FIFO by creation time
	assert.Equal(t, `{"seq":0}`, pub.published[0])
	assert.Equal(t, `{"seq":9}`, pub.published[9])

	r.Tick(context.Background())
	assert.Len(t, pub.published, 15)
	assert.Equal(t, `{"seq":14}`, pub.published[14])

	var unpublished int64
	db.Model(&model.OutboxEvent{}).Where("published_at IS NULL").Count(&unpublished)
	assert.Equal(t, int64(0), unpublished)
}

func TestRelay_PublishFailureLeavesRowUnpublished(t *testing.T) {
	pub := &fakePublisher{fail: true}
	r, db := newTestRelay(t, pub, config.RelayConfig{Interval: config.Duration(time.Second), BatchSize: 10, MaxAttempts: 5})
	seedOutbox(t, db, 3)

	r.Tick(context.Background())
	assert.Empty(t, pub.published)

	var evts []model.OutboxEvent
	assert.NoError(t, db.Order("created_at").Find(&evts).Error)
	for _, evt := range evts {
		assert.Nil(t, evt.PublishedAt)
		assert.Equal(t, 1, evt.Attempts)
	}

	// broker recovers; the same rows go out on the next tick
	pub.fail = false
	r.Tick(context.Background())
	assert.Len(t, pub.published, 3)
}

func TestRelay_QuarantinesRowAtAttemptCap(t *testing.T) {
	pub := &fakePublisher{fail: true}
	r, db := newTestRelay(t, pub, config.RelayConfig{Interval: config.Duration(time.Second), BatchSize: 10, MaxAttempts: 2})
	seedOutbox(t, db, 1)

	r.Tick(context.Background())
	r.Tick(context.Background())

	// attempts reached the cap; the row drops out of the poll even after
	// the broker recovers
	pub.fail = false
	r.Tick(context.Background())
	assert.Empty(t, pub.published)

	var evt model.OutboxEvent
	assert.NoError(t, db.First(&evt).Error)
	assert.Equal(t, 2, evt.Attempts)
	assert.Nil(t, evt.PublishedAt)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	r, db := newTestRelay(t, pub, config.RelayConfig{Interval: config.Duration(10 * time.Millisecond), BatchSize: 10, MaxAttempts: 5})
	seedOutbox(t, db, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&model.OutboxEvent{}).Where("published_at IS NOT NULL").Count(&n)
		return n == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
