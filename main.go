package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	appcart "github.com/zynvolt/storefront/internal/application/cart"
	appcatalog "github.com/zynvolt/storefront/internal/application/catalog"
	apporder "github.com/zynvolt/storefront/internal/application/order"
	appwebhook "github.com/zynvolt/storefront/internal/application/webhook"
	"github.com/zynvolt/storefront/internal/infrastructure/config"
	"github.com/zynvolt/storefront/internal/infrastructure/gateway"
	"github.com/zynvolt/storefront/internal/infrastructure/id"
	inframongo "github.com/zynvolt/storefront/internal/infrastructure/mongo"
	infraobs "github.com/zynvolt/storefront/internal/infrastructure/observability"
	"github.com/zynvolt/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/zynvolt/storefront/internal/infrastructure/observability/prometrics"
	"github.com/zynvolt/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/zynvolt/storefront/internal/infrastructure/outbox"
	"github.com/zynvolt/storefront/internal/infrastructure/postgres"
	infraredis "github.com/zynvolt/storefront/internal/infrastructure/redis"
	"github.com/zynvolt/storefront/internal/observability"
	httppresentation "github.com/zynvolt/storefront/internal/presentation/http"
	"github.com/zynvolt/storefront/internal/presentation/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.ServiceName, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome"),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status"),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests),
			"Total number of outbound provider requests.",
			"target", "outcome", "status"),
		observability.MWebhookEvents: registry.Counter(
			string(observability.MWebhookEvents),
			"Webhook events by outcome.",
			"event", "outcome"),
		observability.MStockConflicts: registry.Counter(
			string(observability.MStockConflicts),
			"Paid orders that hit insufficient stock at decrement time.",
			"product_id"),
		observability.MCatalogOrphans: registry.Counter(
			string(observability.MCatalogOrphans),
			"Cross-store divergences requiring manual reconciliation.",
			"operation"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case"),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status"),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of outbound provider requests in seconds.",
			prometheus.DefBuckets,
			"target"),
	}
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Relational store.
	db, err := postgres.Open(postgres.Credentials{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
	})
	if err != nil {
		logger.Error("postgres_connect_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if err := postgres.RunMigrations(db, cfg.Postgres.MigrationsDirPath); err != nil {
		logger.Error("postgres_migrations_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	stores := postgres.NewStores(db)

	// Document store.
	mongoDB, err := inframongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		logger.Error("mongo_connect_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	catalogRepo := inframongo.NewCatalogRepository(mongoDB)
	if err := catalogRepo.CreateIndexes(ctx); err != nil {
		logger.Error("mongo_indexes_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	categoryRepo := inframongo.NewCategoryRepository(mongoDB)

	// Read cache.
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()
	cache := infraredis.NewCatalogCache(redisClient)

	paymentGateway := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		SuccessURL: cfg.Gateway.SuccessURL,
		CancelURL:  cfg.Gateway.CancelURL,
	}, tel)

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	ids := id.NewUUIDGenerator()
	orderSvc := apporder.NewService(stores, paymentGateway, bus, ids, cfg.Currency, tel)
	cartSvc := appcart.NewService(stores, tel)
	catalogSvc := appcatalog.NewService(stores, catalogRepo, categoryRepo, cache, ids, tel)

	var webhookProc *appwebhook.Processor
	if cfg.WebhookSecret != "" {
		webhookProc = appwebhook.NewProcessor(stores, orderSvc, []byte(cfg.WebhookSecret), tel)
		worker.NewWebhookWorker(bus, webhookProc, tel).Start()
	} else {
		logger.Warn("webhook_secret_missing_route_disabled")
	}
	worker.NewCatalogSyncWorker(bus, catalogSvc, tel).Start()

	handler := httppresentation.NewHandler(orderSvc, cartSvc, catalogSvc, webhookProc, bus, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}
