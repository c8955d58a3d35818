package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	webhookcontrollers "github.com/tiendly/tiendly-backend/api/controllers/webhooks"
	"github.com/tiendly/tiendly-backend/api/routes"
	"github.com/tiendly/tiendly-backend/internal/discounts"
	"github.com/tiendly/tiendly-backend/internal/loyalty"
	"github.com/tiendly/tiendly-backend/internal/movements"
	"github.com/tiendly/tiendly-backend/internal/orders"
	"github.com/tiendly/tiendly-backend/pkg/config"
	"github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/metrics"
	"github.com/tiendly/tiendly-backend/pkg/migrate"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/redis"
	"github.com/tiendly/tiendly-backend/pkg/square"
)

// lateBoundCounter lets the discount service depend on the order service
// even though the order service is constructed after it.
type lateBoundCounter struct {
	orders orders.Service
}

func (c *lateBoundCounter) CountCompleted(ctx context.Context, userID *uuid.UUID, email string) (int64, error) {
	if c.orders == nil {
		return 0, errors.New("order counter not bound")
	}
	return c.orders.CountCompleted(ctx, userID, email)
}

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	counter := &lateBoundCounter{}
	discountService, err := discounts.NewService(
		dbClient,
		discounts.NewRepository(dbClient.DB()),
		counter,
		outboxService,
		ledgerMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create discount service", err)
		os.Exit(1)
	}

	loyaltyService, err := loyalty.NewService(
		dbClient,
		loyalty.NewRepository(dbClient.DB()),
		outboxService,
		ledgerMetrics,
		cfg.Loyalty.EarnRatioCents,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty service", err)
		os.Exit(1)
	}

	movementService, err := movements.NewService(
		dbClient,
		movements.NewRepository(dbClient.DB()),
		outboxService,
		ledgerMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create movement service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(
		dbClient,
		orders.NewRepository(dbClient.DB()),
		discountService,
		loyaltyService,
		outboxService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}
	counter.orders = orderService

	webhookGuard := webhookcontrollers.NewEventGuard(redisClient)

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
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			discountService,
			loyaltyService,
			movementService,
			orderService,
			squareClient,
			webhookGuard,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
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
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}
}
