package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cardapy-backend/api/routes"
	"github.com/angelmondragon/cardapy-backend/internal/cart"
	"github.com/angelmondragon/cardapy-backend/internal/catalog"
	"github.com/angelmondragon/cardapy-backend/internal/checkout"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/payments"
	"github.com/angelmondragon/cardapy-backend/internal/reviews"
	"github.com/angelmondragon/cardapy-backend/internal/search"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/events"
	"github.com/angelmondragon/cardapy-backend/pkg/gateway"
	"github.com/angelmondragon/cardapy-backend/pkg/instance"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
	"github.com/angelmondragon/cardapy-backend/pkg/migrate"
	"github.com/angelmondragon/cardapy-backend/pkg/pubsub"
	"github.com/angelmondragon/cardapy-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	platformMetrics := metrics.NewPlatform(prometheus.DefaultRegisterer)

	shards, err := newShardPool(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shard pool", err)
		os.Exit(1)
	}
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

	provisioner, err := newProvisioner(cfg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create shard provisioner", err)
		os.Exit(1)
	}

	binder, err := tenant.NewBinder(tenant.BinderParams{
		Directory:      directory,
		Shards:         shards,
		Provisioner:    provisioner,
		Tenancy:        cfg.Tenancy,
		Storage:        cfg.Storage,
		AllowProvision: !cfg.App.IsProd(),
		Metrics:        platformMetrics,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tenant binder", err)
		os.Exit(1)
	}

	sink, closeSink := newSearchSink(cfg, logg)
	defer closeSink()

	publisher, closePublisher := newEventPublisher(cfg, logg)
	defer closePublisher()

	services, err := buildServices(cfg, logg, platformMetrics, redisClient, sink, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:    cfg,
			Logger:    logg,
			Metrics:   platformMetrics,
			Gatherer:  prometheus.DefaultGatherer,
			DB:        dbClient,
			Store:     redisClient,
			Binder:    binder,
			Directory: directory,
			Services:  services,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// newShardPool opens tenant shards next to the platform database. Shards are
// migrated on first use outside production or when auto-migrate is on.
func newShardPool(cfg *config.Config, logg *logger.Logger) (*db.ShardPool, error) {
	opener := db.ServerOpener(cfg.DB, cfg.Tenancy)
	driver := db.DriverPostgres
	if cfg.FeatureFlags.UseSQLite || cfg.DB.Driver == db.DriverSQLite {
		if err := os.MkdirAll(cfg.Tenancy.SQLiteDir, 0o755); err != nil {
			return nil, err
		}
		opener = db.SQLiteOpener(cfg.Tenancy.SQLiteDir)
		driver = db.DriverSQLite
	}
	pool, err := db.NewShardPool(opener)
	if err != nil {
		return nil, err
	}
	pool.SetOpenTimeout(cfg.Tenancy.ProvisionTimeout)
	if !cfg.App.IsProd() || cfg.FeatureFlags.AutoMigrate {
		pool.SetInitializer(migrate.TenantInitializer(driver, logg))
	}
	return pool, nil
}

func newProvisioner(cfg *config.Config, dbClient *db.Client) (db.Provisioner, error) {
	if cfg.FeatureFlags.UseSQLite || cfg.DB.Driver == db.DriverSQLite {
		return db.NoopProvisioner{}, nil
	}
	return db.NewServerProvisioner(dbClient.DB())
}

// newSearchSink publishes menu changes to Pub/Sub when a topic is configured.
func newSearchSink(cfg *config.Config, logg *logger.Logger) (search.Sink, func()) {
	if cfg.PubSub.SearchTopic == "" {
		logg.Info(context.Background(), "search topic not configured, search sync disabled")
		return search.NoopSink{}, func() {}
	}
	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	sink, err := search.NewPubSubSink(client.SearchPublisher(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create search sink", err)
		os.Exit(1)
	}
	return sink, func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}
}

func newEventPublisher(cfg *config.Config, logg *logger.Logger) (events.Publisher, func()) {
	if !cfg.Kafka.Enabled() {
		return events.NoopPublisher{}, func() {}
	}
	publisher, err := events.NewKafkaPublisher(cfg.Kafka)
	if err != nil {
		logg.Error(context.Background(), "failed to create kafka publisher", err)
		os.Exit(1)
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logg.Error(context.Background(), "error closing kafka publisher", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, m *metrics.Platform, redisClient *redis.Client, sink search.Sink, publisher events.Publisher) (routes.Services, error) {
	var out routes.Services

	catalogService, err := catalog.NewService(catalog.ServiceParams{Sink: sink, Logger: logg})
	if err != nil {
		return out, err
	}

	var cartStore cart.Store = cart.NewMemoryStore()
	if !cfg.Cart.UseMemory {
		redisStore, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
		if err != nil {
			return out, err
		}
		cartStore = redisStore
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Store:       cartStore,
		Items:       catalogService,
		MaxQuantity: cfg.Cart.MaxQuantity,
		Logger:      logg,
	})
	if err != nil {
		return out, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{Events: publisher, Metrics: m, Logger: logg})
	if err != nil {
		return out, err
	}

	paymentService, err := newPaymentService(cfg, logg, m, orderService)
	if err != nil {
		return out, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:     cartService,
		Orders:   orderService,
		Payments: paymentService,
		Logger:   logg,
	})
	if err != nil {
		return out, err
	}

	reviewService, err := reviews.NewService(reviews.ServiceParams{Logger: logg})
	if err != nil {
		return out, err
	}

	return routes.Services{
		Catalog:  catalogService,
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Payments: paymentService,
		Reviews:  reviewService,
	}, nil
}

func newPaymentService(cfg *config.Config, logg *logger.Logger, m *metrics.Platform, orderService orders.Service) (payments.Service, error) {
	client, err := gateway.NewClient(
		gateway.WithBaseURL(cfg.Gateway.BaseURL),
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithObserver(m.ObserveGateway),
	)
	if err != nil {
		return nil, err
	}
	return payments.NewService(payments.ServiceParams{
		Gateway: client,
		Orders:  orderService,
		App:     cfg.App,
		Config:  cfg.Gateway,
		Metrics: m,
		Logger:  logg,
	})
}
