package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hotmess/hotmess-backend/internal/cron"
	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/internal/pickups"
	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/pkg/config"
	"github.com/hotmess/hotmess-backend/pkg/db"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/metrics"
	"github.com/hotmess/hotmess-backend/pkg/migrate"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
	"github.com/hotmess/hotmess-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf("%s:%s", lockName, envOrLocal(cfg.App.Env))), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	platformAccount, err := uuid.Parse(cfg.Settlement.PlatformAccountID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", config.EnvPlatformAccountID, err)
	}

	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)
	notificationsRepo := notifications.NewRepository(conn)
	notificationsSvc, err := notifications.NewService(notificationsRepo)
	if err != nil {
		return nil, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	orderRepo := escrow.NewRepository(conn)
	releaser, err := escrow.NewReleaser(escrow.ReleaserParams{
		Orders:            orderRepo,
		Purchases:         purchases.NewRepository(conn),
		Ledger:            ledgerSvc,
		Notifications:     notificationsSvc,
		Outbox:            outboxSvc,
		FeeRate:           cfg.Settlement.FeeRate(),
		PlatformAccountID: platformAccount,
		Logger:            logg,
	})
	if err != nil {
		return nil, err
	}
	pickupSvc, err := pickups.NewService(pickups.ServiceParams{
		TransactionRunner: dbClient,
		Beacons:           pickups.NewRepository(conn),
		Orders:            orderRepo,
		Releaser:          releaser,
		Ledger:            ledgerSvc,
		Outbox:            outboxSvc,
		RadiusMeters:      cfg.Settlement.PickupRadiusMeters,
		BeaconTTL:         cfg.Settlement.BeaconTTL,
		Metrics:           metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Logger:            logg,
	})
	if err != nil {
		return nil, err
	}

	beaconJob, err := cron.NewBeaconExpiryJob(pickupSvc)
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(dbClient, outboxRepo, cfg.Outbox.MaxAttempts)
	if err != nil {
		return nil, err
	}
	notificationJob, err := cron.NewNotificationCleanupJob(notificationsRepo)
	if err != nil {
		return nil, err
	}
	jobs := []cron.Job{beaconJob, outboxJob, notificationJob}

	if cfg.Cron.ReconcileOn {
		reconcileJob, err := cron.NewLedgerReconcileJob(ledgerSvc, logg)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, reconcileJob)
	}

	return cron.NewRegistry(jobs...)
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
