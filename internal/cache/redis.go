// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/babanuki/internal/game"
	"github.com/jason-s-yu/babanuki/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for room event records.
const DefaultQueueName = "babanuki_events"

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Pusher is the part of the Redis client the publisher needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Publisher forwards room events to the historian queue. Enqueue never
// blocks; records are pushed to Redis from Run.
type Publisher struct {
	rdb   Pusher
	queue string
	log   *logrus.Logger
	ch    chan models.RoomEventRecord

	// OnDrop, when set, is called for every record dropped on a full buffer.
	OnDrop func()
}

// NewPublisher returns a publisher with a buffer of size records.
func NewPublisher(rdb Pusher, queue string, size int, logger *logrus.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if size <= 0 {
		size = 256
	}
	return &Publisher{
		rdb:   rdb,
		queue: queue,
		log:   logger,
		ch:    make(chan models.RoomEventRecord, size),
	}
}

// Enqueue converts events of roomID to records and buffers them.
func (p *Publisher) Enqueue(roomID string, events []game.Event) {
	for _, ev := range events {
		rec := models.RoomEventRecord{
			ID:        ev.ID,
			RoomID:    roomID,
			GameID:    ev.GameID,
			Seq:       ev.Seq,
			Action:    string(ev.Type),
			Player:    ev.Player,
			Details:   ev.Details,
			Timestamp: ev.At.UnixMilli(),
		}
		select {
		case p.ch <- rec:
		default:
			p.log.WithFields(logrus.Fields{
				"room": roomID,
				"seq":  ev.Seq,
			}).Warn("Event queue full, dropping record")
			if p.OnDrop != nil {
				p.OnDrop()
			}
		}
	}
}

// Run pushes buffered records until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-p.ch:
			if err := p.push(ctx, rec); err != nil {
				p.log.WithError(err).WithField("room", rec.RoomID).Error("Failed to publish room event")
			}
		}
	}
}

func (p *Publisher) push(ctx context.Context, rec models.RoomEventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEventRecord: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
