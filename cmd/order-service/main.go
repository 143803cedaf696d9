package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/cart-order-service/internal/config"
	"github.com/dmehra2102/cart-order-service/internal/order/application"
	orderauth "github.com/dmehra2102/cart-order-service/internal/order/infrastructure/auth"
	orderhttp "github.com/dmehra2102/cart-order-service/internal/order/infrastructure/http"
	"github.com/dmehra2102/cart-order-service/internal/order/infrastructure/inventory"
	orderkafka "github.com/dmehra2102/cart-order-service/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/cart-order-service/internal/order/infrastructure/notify"
	orderpg "github.com/dmehra2102/cart-order-service/internal/order/infrastructure/postgres"
	platformpg "github.com/dmehra2102/cart-order-service/internal/platform/postgres"
	"github.com/dmehra2102/cart-order-service/pkg/idempotency"
	"github.com/dmehra2102/cart-order-service/pkg/logging"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
	"github.com/dmehra2102/cart-order-service/pkg/outbox"
	"github.com/dmehra2102/cart-order-service/pkg/shutdown"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("order-service")
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Postgres Setup
	pool, err := platformpg.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := orderpg.Migrate(pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, idempotency keys will be ignored until it recovers", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "order")

	// Kafka producer and outbox relay
	writer := orderkafka.NewWriter(cfg.Kafka)
	if err := orderkafka.EnsureTopic(ctx, cfg.Kafka, cfg.OutboxTopic, 3); err != nil {
		log.Warn("could not ensure outbox topic", "topic", cfg.OutboxTopic, "err", err)
	}
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, cfg.ServiceName+"-relay")

	// Application wiring
	orders := orderpg.NewRepository(log, pool)
	carts := orderpg.NewCartRepository(log, pool)
	gateway := orderauth.NewJWTGateway(cfg.JWTSecret)
	inv := inventory.NewClient(log, cfg.InventoryURL, cfg.InventoryTimeout)
	notifier := notify.NewDispatcher(log, notify.NewEmailClient(cfg.EmailURL, cfg.NotifyTimeout), notify.Options{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueue,
		Timeout:   cfg.NotifyTimeout,
		Metrics:   m,
	})

	orchestrator := application.NewOrchestrator(log, gateway, inv, orders, notifier,
		application.WithMetrics(m),
		application.WithStockSyncTimeout(cfg.StockSyncTimeout),
	)
	cartSvc := application.NewCartService(log, gateway, carts, inv)
	reconciler := application.NewReconciler(log, orders, orchestrator, cfg.ReconcileInterval, cfg.ReconcileGrace)

	handler := orderhttp.NewHandler(log, orchestrator, cartSvc,
		orderhttp.WithIdempotency(idempotency.NewStore(rdb, cfg.IdempotencyTTL)),
		orderhttp.WithMetrics(m),
		orderhttp.WithCheckoutRateLimit(cfg.CheckoutRPS, int(cfg.CheckoutRPS)),
	)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown.Drain(15*time.Second,
			srv.Shutdown,
			orchestrator.Close,
			notifier.Close,
			writer.Close,
			tp.Shutdown,
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("order-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}
