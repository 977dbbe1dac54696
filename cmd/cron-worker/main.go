package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cardapy-backend/internal/cron"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/payments"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/events"
	"github.com/angelmondragon/cardapy-backend/pkg/gateway"
	"github.com/angelmondragon/cardapy-backend/pkg/instance"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
	"github.com/angelmondragon/cardapy-backend/pkg/migrate"
	"github.com/angelmondragon/cardapy-backend/pkg/redis"
)

const lockName = "payment_reconcile"

func main() {
	once := flag.Bool("once", false, "run a single reconcile cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

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

	platformMetrics := metrics.NewPlatform(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	opener := db.ServerOpener(cfg.DB, cfg.Tenancy)
	if cfg.FeatureFlags.UseSQLite || cfg.DB.Driver == db.DriverSQLite {
		opener = db.SQLiteOpener(cfg.Tenancy.SQLiteDir)
	}
	shards, err := db.NewShardPool(opener)
	if err != nil {
		logg.Error(context.Background(), "failed to create shard pool", err)
		os.Exit(1)
	}
	shards.SetOpenTimeout(cfg.Tenancy.ProvisionTimeout)
	defer func() {
		if err := shards.Close(); err != nil {
			logg.Error(context.Background(), "error closing tenant shards", err)
		}
	}()

	directory, err := tenant.NewDirectory(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create tenant directory", err)
		os.Exit(1)
	}

	// The sweep never provisions: a tenant without a shard has nothing to reconcile.
	binder, err := tenant.NewBinder(tenant.BinderParams{
		Directory: directory,
		Shards:    shards,
		Tenancy:   cfg.Tenancy,
		Storage:   cfg.Storage,
		Metrics:   platformMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tenant binder", err)
		os.Exit(1)
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if cfg.Kafka.Enabled() {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			logg.Error(context.Background(), "failed to create kafka publisher", err)
			os.Exit(1)
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing kafka publisher", err)
			}
		}()
		publisher = kafkaPublisher
	}

	orderService, err := orders.NewService(orders.ServiceParams{Events: publisher, Metrics: platformMetrics, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	gatewayClient, err := gateway.NewClient(
		gateway.WithBaseURL(cfg.Gateway.BaseURL),
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithObserver(platformMetrics.ObserveGateway),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Gateway: gatewayClient,
		Orders:  orderService,
		App:     cfg.App,
		Config:  cfg.Gateway,
		Metrics: platformMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Tenants:  directory,
		Binder:   binder,
		Payments: paymentService,
		Config:   cfg.Reconcile,
		Metrics:  cronMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Reconcile.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(reconcileJob),
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Reconcile.Interval,
		JobTimeout: cfg.Reconcile.LockTTL * 3 / 4,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Reconcile.Interval.String(),
		"once":     *once,
	})

	if *once {
		logg.Info(ctx, "running single reconcile cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "reconcile cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
