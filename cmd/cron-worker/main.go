package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adisaputra/tokoku-backend/internal/cron"
	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/internal/vouchers"
	"github.com/adisaputra/tokoku-backend/pkg/config"
	"github.com/adisaputra/tokoku-backend/pkg/db"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
	"github.com/adisaputra/tokoku-backend/pkg/metrics"
	"github.com/adisaputra/tokoku-backend/pkg/migrate"
	"github.com/adisaputra/tokoku-backend/pkg/redis"
)

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

	ordersRepo := orders.NewRepository(dbClient.DB())
	voucherRepo := vouchers.NewRepository(dbClient.DB())

	locker, err := cron.NewLocker(redisClient, cfg.Scheduler.LockTTL, hostname())
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	jobs := []func() (cron.Job, error){
		func() (cron.Job, error) { return cron.NewHoldSweepJob(dbClient, logg) },
		func() (cron.Job, error) {
			return cron.NewStaleOrderJob(dbClient, ordersRepo, logg, cfg.Checkout.PendingOrderTTL)
		},
		func() (cron.Job, error) {
			return cron.NewRewardVoucherJob(dbClient, ordersRepo, voucherRepo, logg, cfg.Reward.VoucherCode, cfg.Reward.Window)
		},
	}
	for _, build := range jobs {
		job, err := build()
		if err != nil {
			logg.Error(context.Background(), "failed to build cron job", err)
			os.Exit(1)
		}
		if err := registry.Register(job); err != nil {
			logg.Error(context.Background(), "failed to register cron job", err)
			os.Exit(1)
		}
	}

	collector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	service, err := cron.NewService(registry, locker, collector, logg, cfg.Scheduler.Interval)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func hostname() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "cron-worker"
}
