package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bvcregistry/internal/platform/config"
	"bvcregistry/internal/platform/httpserver"
	"bvcregistry/internal/platform/logger"
	"bvcregistry/internal/platform/metrics"
	platformredis "bvcregistry/internal/platform/redis"
	"bvcregistry/internal/registry/content"
	"bvcregistry/internal/registry/handler"
	"bvcregistry/internal/registry/ledger"
	regmetrics "bvcregistry/internal/registry/metrics"
	"bvcregistry/internal/registry/service"
	"bvcregistry/internal/registry/store/dedupe"
	"bvcregistry/pkg/platform/audit"
	"bvcregistry/pkg/platform/audit/publisher"
	auditkafka "bvcregistry/pkg/platform/audit/sink/kafka"
	auditmemory "bvcregistry/pkg/platform/audit/sink/memory"
)

// main wires collaborators, exposes the HTTP router, and keeps the server
// lifecycle small. Business logic lives in internal/registry.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	appMetrics := metrics.New()
	registryMetrics := regmetrics.New()

	// The duplicate-content guard is optional: without Redis the service
	// runs with the ledger as the only source of truth.
	var guard dedupe.Guard
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		guard = dedupe.NewRedisGuard(redisClient.Client)
		defer redisClient.Close()
		log.Info("duplicate guard enabled", "store", "redis")
	}

	var sink audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err = auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka audit sink failed", "error", err)
			os.Exit(1)
		}
		log.Info("audit trail enabled", "sink", "kafka", "topic", cfg.Kafka.Topic)
	} else {
		sink = auditmemory.New()
	}
	auditPub := publisher.New(sink, log, publisher.WithAsyncBuffer(256))
	defer auditPub.Close()

	svc := service.New(service.Options{
		Ledger:           ledger.NewHTTPClient(cfg.LedgerURL, log),
		Content:          content.NewIPFSClient(cfg.ContentAPIURL, cfg.ContentFetchTimeout, log),
		Guard:            guard,
		Audit:            auditPub,
		Logger:           log,
		AppMetrics:       appMetrics,
		RegistryMetrics:  registryMetrics,
		GatewayURL:       cfg.ContentGatewayURL,
		FetchConcurrency: cfg.FetchConcurrency,
	})

	router := chi.NewRouter()
	handler.New(svc, log, appMetrics).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting bvc registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
