// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/babanuki/internal/auth"
	"github.com/jason-s-yu/babanuki/internal/cache"
	"github.com/jason-s-yu/babanuki/internal/config"
	"github.com/jason-s-yu/babanuki/internal/game"
	"github.com/jason-s-yu/babanuki/internal/handlers"
	"github.com/jason-s-yu/babanuki/internal/metrics"
	"github.com/jason-s-yu/babanuki/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := auth.NewIssuer(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("babanuki", reg)

	store := game.NewRoomStore(game.StoreOptions{
		Logger:        logger,
		IdleTimeout:   cfg.RoomIdleTimeout,
		SweepInterval: cfg.RoomSweepInterval,
		SweepRetry:    cfg.RoomSweepRetry,
		OnSweep:       m.ObserveSweep,
	})
	defer store.Close()

	srv := handlers.NewRoomServer(store, issuer, logger)
	srv.Metrics = m

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()

		pub := cache.NewPublisher(rdb, cfg.Redis.QueueName, 1024, logger)
		pub.OnDrop = m.EventsDropped.Inc
		go pub.Run(ctx)
		srv.Events = pub
		logger.Infof("Publishing room events to Redis list %s", cfg.Redis.QueueName)
	}

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)
	mux.Handle("/ws", logged(handlers.RoomWSHandler(srv)))
	mux.Handle("/rooms", logged(handlers.ListRoomsHandler(store)))
	mux.Handle("/healthz", handlers.HealthHandler(store))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
