package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/config"
	"github.com/medvault/medvault-api/internal/repository/postgres"
	auditService "github.com/medvault/medvault-api/internal/service/audit"
	fileService "github.com/medvault/medvault-api/internal/service/file"
	"github.com/medvault/medvault-api/internal/storage"
	internalworker "github.com/medvault/medvault-api/internal/worker"
	"github.com/medvault/medvault-api/pkg/logger"
	redisbroker "github.com/medvault/medvault-api/pkg/messaging/redis"
	"github.com/medvault/medvault-api/pkg/metrics"
	"github.com/medvault/medvault-api/pkg/worker"
)

// metricsAddr serves the worker's prometheus endpoint, separate from the
// API server's port.
const metricsAddr = ":9090"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	brokerLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &brokerLogger)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	defer broker.Close()

	m := metrics.NewMetrics("medvault", "worker")

	userRepo := postgres.NewUserRepository(db)
	fileRepo := postgres.NewFileRepository(db)
	shareRepo := postgres.NewShareRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	auditSvc := auditService.NewService(auditRepo)
	fileSvc := fileService.NewService(fileRepo, shareRepo, userRepo, outboxRepo, blobs, cfg.Storage.Bucket, auditSvc)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.Retries,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, lg, m)

	sweeper := internalworker.NewSweeper(fileSvc, auditSvc, outboxRepo, internalworker.SweeperConfig{
		Interval:       cfg.Cleanup.Interval,
		AuditRetention: cfg.Cleanup.AuditRetention,
	}, lg, m)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("metrics server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("shutting down worker")
	cancel()
	wg.Wait()
}
