package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/config"
	"github.com/kursadbilgin/issuance-engine/internal/events"
	"github.com/kursadbilgin/issuance-engine/internal/handler"
	"github.com/kursadbilgin/issuance-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/issuance-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/issuance-engine/internal/infra/redis"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/printing"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"github.com/kursadbilgin/issuance-engine/internal/sequence"
	"github.com/kursadbilgin/issuance-engine/internal/service"
	"github.com/kursadbilgin/issuance-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout  = 10 * time.Second
	consumerPrefetch = 8
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RenderLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	documentStore, err := infraredis.NewRedisDocumentStore(rdb, time.Duration(cfg.DocumentTTLHours)*time.Hour)
	if err != nil {
		logger.Fatal("document store initialization failed", zap.Error(err))
	}

	rmq, err := events.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()
	publisher := events.NewRabbitMQPublisher(rmq)

	renderer, err := printing.NewHTTPRenderer(cfg.RendererURL)
	if err != nil {
		logger.Fatal("renderer initialization failed", zap.Error(err))
	}

	documents, err := printing.NewTrigger(renderer, documentStore, rateLimiter, logger)
	if err != nil {
		logger.Fatal("document trigger initialization failed", zap.Error(err))
	}

	allocator, err := sequence.NewAllocator(repository.NewGormCounterRepo(db))
	if err != nil {
		logger.Fatal("allocator initialization failed", zap.Error(err))
	}

	txManager := repository.NewGormTxManager(db)
	appRepo := repository.NewGormApplicationRepo(db)
	batchRepo := repository.NewGormBatchRepo(db)
	cardRepo := repository.NewGormCardRepo(db)
	historyRepo := repository.NewGormHistoryRepo(db)

	metrics := observability.NewMetrics()

	applicationService, err := service.NewApplicationService(
		txManager, appRepo, cardRepo, historyRepo, allocator, documents, publisher, metrics, logger)
	if err != nil {
		logger.Fatal("application service initialization failed", zap.Error(err))
	}

	cardService, err := service.NewCardService(
		txManager, cardRepo, appRepo, historyRepo, allocator, publisher, metrics, logger)
	if err != nil {
		logger.Fatal("card service initialization failed", zap.Error(err))
	}

	batchService, err := service.NewBatchService(
		txManager, batchRepo, appRepo, cardService, historyRepo, allocator, documents, publisher, metrics, logger)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "issuance-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	if err := handler.RegisterApplicationRoutes(app, applicationService); err != nil {
		logger.Fatal("application route registration failed", zap.Error(err))
	}
	if err := handler.RegisterBatchRoutes(app, batchService); err != nil {
		logger.Fatal("batch route registration failed", zap.Error(err))
	}
	if err := handler.RegisterCardRoutes(app, cardService); err != nil {
		logger.Fatal("card route registration failed", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := events.NewRabbitMQConsumer(rmq, consumerPrefetch, logger)
	auditHandler := events.NewAuditHandler(logger, metrics.IncStatusEventConsumed)

	logger.Info("status stream consumer starting",
		zap.Strings("queues", events.StreamQueueNames()),
		zap.Strings("deadLetterQueues", events.DLQNames()),
	)

	stream, streamCtx := errgroup.WithContext(ctx)
	for _, queue := range events.StreamQueueNames() {
		queue := queue
		stream.Go(func() error {
			return consumer.Consume(streamCtx, queue, auditHandler)
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("issuance-engine api started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
		if err := stream.Wait(); err != nil {
			logger.Error("status stream consumer failed", zap.Error(err))
		}
	case err := <-serveErr:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}
}
