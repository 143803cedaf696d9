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
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/cart-order-service/internal/config"
	"github.com/dmehra2102/cart-order-service/internal/inventory/application"
	invhttp "github.com/dmehra2102/cart-order-service/internal/inventory/infrastructure/http"
	inventoryKafka "github.com/dmehra2102/cart-order-service/internal/inventory/infrastructure/kafka"
	inventoryDB "github.com/dmehra2102/cart-order-service/internal/inventory/infrastructure/postgres"
	platformpg "github.com/dmehra2102/cart-order-service/internal/platform/postgres"
	"github.com/dmehra2102/cart-order-service/pkg/logging"
	"github.com/dmehra2102/cart-order-service/pkg/metrics"
	"github.com/dmehra2102/cart-order-service/pkg/shutdown"
	"github.com/dmehra2102/cart-order-service/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("inventory-service")
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	pool, err := platformpg.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := inventoryDB.Migrate(pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "inventory")

	repo := inventoryDB.NewRepository(log, pool)
	svc := application.NewService(log, repo, repo, m)
	handler := invhttp.NewHandler(log, svc, m)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(cfg.Kafka) > 0 {
		reader := inventoryKafka.NewReader(cfg.Kafka, cfg.OutboxTopic, cfg.GroupID)
		consumer := inventoryKafka.NewConsumer(log, reader, svc)
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown.Drain(10*time.Second, srv.Shutdown, tp.Shutdown)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("inventory-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("inventory-service shutdown complete")
}
