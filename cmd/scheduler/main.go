package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ErlanBelekov/journey-engine/config"
	"github.com/ErlanBelekov/journey-engine/internal/bootstrap"
	"github.com/ErlanBelekov/journey-engine/internal/health"
	"github.com/ErlanBelekov/journey-engine/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.QueueBackend == config.BackendMemory {
		log.Fatal("config: the scheduler needs a shared queue, set QUEUE_BACKEND to postgres or redis")
	}

	logger := bootstrap.Logger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.Open(ctx, cfg, logger)
	defer stores.Close()
	if err != nil {
		stop()
		log.Fatalf("storage: %v", err)
	}

	channels, err := bootstrap.Channels(cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("channels: %v", err)
	}
	logger.Info("channels registered", "channels", channels.Channels())

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(stores.Pingers, logger, prometheus.DefaultRegisterer)
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bootstrap.RunEngine(gctx, cfg, stores, channels, logger)
	})

	g.Go(func() error {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("scheduler exited", "error", err)
		stop()
		stores.Close()
		os.Exit(1)
	}
	logger.Info("scheduler shut down")
}
