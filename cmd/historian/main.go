// cmd/historian/main.go pops room event records from the Redis queue and
// archives them in Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/babanuki/internal/cache"
	"github.com/jason-s-yu/babanuki/internal/config"
	"github.com/jason-s-yu/babanuki/internal/database"
	"github.com/jason-s-yu/babanuki/internal/historian"
	"github.com/jason-s-yu/babanuki/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is required for the historian")
	}
	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required for the historian")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	store := func(ctx context.Context, recs []models.RoomEventRecord) error {
		return database.InsertRoomEvents(ctx, pool, recs)
	}
	hs := historian.NewService(rdb, store, historian.Options{
		Queue:      cfg.Redis.QueueName,
		BatchSize:  cfg.Historian.BatchSize,
		FlushDelay: cfg.Historian.FlushInterval(),
		Logger:     logger,
	})
	hs.Run(ctx)
	logger.Info("Historian shutdown complete.")
}
