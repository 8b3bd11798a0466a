// Package historian drains the room event queue from Redis into Postgres.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/babanuki/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Popper is the part of the Redis client the historian reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// StoreFunc persists one batch atomically.
type StoreFunc func(ctx context.Context, recs []models.RoomEventRecord) error

// Options configures a Service.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each BLPop so cancellation is noticed.
	PopTimeout time.Duration
	Logger     *logrus.Logger
}

// Service pops records, accumulates them and flushes a batch when it is
// full or FlushDelay has passed.
type Service struct {
	rdb   Popper
	store StoreFunc
	opts  Options
	log   *logrus.Logger

	batch []models.RoomEventRecord
	// failing is set after a failed flush; size-triggered flushes then wait
	// for the ticker.
	failing bool
}

func NewService(rdb Popper, store StoreFunc, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:   rdb,
		store: store,
		opts:  opts,
		log:   opts.Logger,
		batch: make([]models.RoomEventRecord, 0, opts.BatchSize),
	}
}

// maxPending caps how many records are held while the database is failing.
func (hs *Service) maxPending() int {
	return hs.opts.BatchSize * 50
}

// Run reads the queue until ctx is cancelled, then flushes what it holds.
func (hs *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(hs.opts.FlushDelay)
	defer ticker.Stop()

	hs.log.WithField("queue", hs.opts.Queue).Info("Historian started")
	defer hs.log.Info("Historian stopped")

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			hs.flush(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			hs.flush(ctx)
		default:
			hs.popOne(ctx)
		}
	}
}

func (hs *Service) popOne(ctx context.Context) {
	res, err := hs.rdb.BLPop(ctx, hs.opts.PopTimeout, hs.opts.Queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			hs.log.WithError(err).Error("BLPop failed")
			// Back off so a dead Redis does not spin the loop.
			select {
			case <-ctx.Done():
			case <-time.After(hs.opts.FlushDelay):
			}
		}
		return
	}
	if len(res) < 2 {
		return
	}

	// res[0] is the queue name and res[1] the payload.
	var rec models.RoomEventRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		hs.log.WithError(err).Warn("Invalid room event record")
		return
	}
	hs.batch = append(hs.batch, rec)
	if len(hs.batch) >= hs.opts.BatchSize && !hs.failing {
		hs.flush(ctx)
	}
}

func (hs *Service) flush(ctx context.Context) {
	if len(hs.batch) == 0 {
		return
	}
	if err := hs.store(ctx, hs.batch); err != nil {
		hs.failing = true
		hs.log.WithError(err).WithField("pending", len(hs.batch)).Error("Failed to flush room events")
		if over := len(hs.batch) - hs.maxPending(); over > 0 {
			hs.log.Warnf("Dropping %d oldest room events", over)
			hs.batch = append(hs.batch[:0], hs.batch[over:]...)
		}
		return
	}
	hs.failing = false
	hs.log.Debugf("Flushed %d room events to DB", len(hs.batch))
	hs.batch = hs.batch[:0]
}
