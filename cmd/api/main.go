package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adisaputra/tokoku-backend/api/routes"
	"github.com/adisaputra/tokoku-backend/internal/cart"
	"github.com/adisaputra/tokoku-backend/internal/cron"
	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/internal/payments"
	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/internal/vouchers"
	"github.com/adisaputra/tokoku-backend/pkg/config"
	"github.com/adisaputra/tokoku-backend/pkg/db"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
	"github.com/adisaputra/tokoku-backend/pkg/metrics"
	"github.com/adisaputra/tokoku-backend/pkg/migrate"
	"github.com/adisaputra/tokoku-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	cartRepo := cart.NewRepository(dbClient.DB())

	holdManager, err := stock.NewHoldManager(dbClient, cfg.Checkout.HoldWindow)
	if err != nil {
		logg.Error(context.Background(), "failed to create hold manager", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(dbClient, ordersRepo, voucherRepo, cartRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(dbClient, ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	cronSvc, err := buildScheduler(cfg, logg, dbClient, redisClient, ordersRepo, voucherRepo, promRegistry)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg,
			dbClient, redisClient,
			holdManager, ordersSvc, ordersRepo, reconciler, cronSvc,
			promRegistry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildScheduler wires the maintenance jobs so the manual trigger endpoint can
// run them in-process. The cron worker binary runs the same set on a timer.
func buildScheduler(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	ordersRepo orders.Repository,
	voucherRepo vouchers.Repository,
	promRegistry *prometheus.Registry,
) (*cron.Service, error) {
	locker, err := cron.NewLocker(redisClient, cfg.Scheduler.LockTTL, "api")
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()

	holdSweep, err := cron.NewHoldSweepJob(dbClient, logg)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(holdSweep); err != nil {
		return nil, err
	}

	staleOrders, err := cron.NewStaleOrderJob(dbClient, ordersRepo, logg, cfg.Checkout.PendingOrderTTL)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(staleOrders); err != nil {
		return nil, err
	}

	reward, err := cron.NewRewardVoucherJob(dbClient, ordersRepo, voucherRepo, logg, cfg.Reward.VoucherCode, cfg.Reward.Window)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(reward); err != nil {
		return nil, err
	}

	return cron.NewService(registry, locker, metrics.NewCronJobMetrics(promRegistry), logg, cfg.Scheduler.Interval)
}
