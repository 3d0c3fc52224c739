package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/depot/cmd/depot/cli"
	"github.com/odyssey-erp/depot/internal/app"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/masterdata"
	"github.com/odyssey-erp/depot/internal/masterdata/products"
	"github.com/odyssey-erp/depot/internal/masterdata/warehouses"
	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/orders"
	"github.com/odyssey-erp/depot/internal/platform/broker"
	"github.com/odyssey-erp/depot/internal/platform/cache"
	"github.com/odyssey-erp/depot/internal/platform/db"
	"github.com/odyssey-erp/depot/internal/shared"
	"github.com/odyssey-erp/depot/jobs"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(os.Args[2:]))
	}

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	tracerProvider, shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    !cfg.IsProduction(),
		ServiceName: cfg.OTELServiceName,
		Version:     version,
	})
	if err != nil {
		logger.Error("setup tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// The stock listing cache is optional; without Redis reads go to Postgres.
	var stockCache *cache.Versioned
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stock listing cache disabled", slog.Any("error", err))
		stockCache = cache.NewVersioned(nil, "depot:stock", cfg.CacheTTL)
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		stockCache = cache.NewVersioned(redisClient, "depot:stock", cfg.CacheTTL)
	}

	var publisher broker.Publisher = broker.Nop{}
	if cfg.KafkaEnabled() {
		kafka := broker.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		}()
		publisher = kafka
	}

	metrics := observability.NewMetrics()
	engineMetrics := observability.NewEngineMetrics(metrics.Registerer())
	notifier := inventory.NewNotifier(stockCache, publisher, engineMetrics, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	recorder := inventory.NewRecorder(inventory.NewLedger())

	warehouseRepo := warehouses.NewRepository(dbpool)
	warehouseService := warehouses.NewService(warehouseRepo)
	productRepo := products.NewRepository(dbpool)
	productService := products.NewService(productRepo, stockCache, logger)
	resolver := masterdata.NewResolver(warehouseRepo, productRepo)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), recorder, inventory.ServiceOptions{
		Idempotency: idempotencyStore,
		Notifier:    notifier,
		Metrics:     engineMetrics,
		Tracer:      tracerProvider.Tracer("depot/inventory"),
		Logger:      logger,
	})
	ordersService := orders.NewService(orders.NewRepository(dbpool), recorder, orders.ServiceOptions{
		Idempotency: idempotencyStore,
		Notifier:    notifier,
		Metrics:     engineMetrics,
		Tracer:      tracerProvider.Tracer("depot/orders"),
		Logger:      logger,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		WarehouseHandler: warehouses.NewHandler(logger, warehouseService),
		ProductHandler:   products.NewHandler(logger, productService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, resolver),
		OrdersHandler:    orders.NewHandler(logger, ordersService, resolver),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Database:         dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobs(args []string) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobs client:", err)
		return 1
	}
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cli.DefaultTimeout)
	defer cancel()
	if err := cli.NewJobsCLI(client, inspector, os.Stdout).Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
