package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	procurementapp "github.com/corpelima/backend/internal/application/procurement"
	"github.com/corpelima/backend/internal/infrastructure/cache"
	"github.com/corpelima/backend/internal/infrastructure/config"
	"github.com/corpelima/backend/internal/infrastructure/event"
	"github.com/corpelima/backend/internal/infrastructure/logger"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
	"github.com/corpelima/backend/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting procurement backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	metrics, err := event.NewMetrics(otel.GetMeterProvider().Meter("procurement"))
	if err != nil {
		log.Fatal("Failed to register event metrics", zap.Error(err))
	}

	dispatcher := event.NewDispatcher(event.Config{
		Workers:   cfg.Event.Workers,
		QueueSize: cfg.Event.QueueSize,
	}, log, metrics)

	uowm := persistence.NewUnitOfWorkManager(db.DB, dispatcher, log)

	objectStore, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if err := objectStore.EnsureBucket(context.Background()); err != nil {
		log.Fatal("Failed to ensure storage bucket", zap.Error(err))
	}

	var rates procurementapp.RateSource = procurementapp.NewDatabaseRateSource(uowm)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		rates = cache.NewRedisRateCache(redisClient, rates, cfg.Redis.RateTTL, log)
		log.Info("Exchange rate caching enabled")
	}

	consolidationService := procurementapp.NewConsolidationService(uowm, rates, log)
	orderService := procurementapp.NewOrderService(
		uowm,
		dispatcher,
		objectStore,
		procurementapp.NewJSONArtifactGenerator(),
		nil,
		consolidationService,
		log,
	)
	auditService := procurementapp.NewAuditQueryService(uowm)

	// Services are wired here for the transport layer to pick up once one
	// is added. Until then the process runs the dispatcher loop only.
	_ = orderService
	_ = auditService

	log.Info("Procurement backend ready",
		zap.Int("event_workers", cfg.Event.Workers),
		zap.Int("event_queue_size", cfg.Event.QueueSize),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down, draining event dispatcher")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Event.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Warn("Dispatcher did not drain before timeout", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
