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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ErlanBelekov/journey-engine/config"
	"github.com/ErlanBelekov/journey-engine/internal/bootstrap"
	"github.com/ErlanBelekov/journey-engine/internal/health"
	"github.com/ErlanBelekov/journey-engine/internal/metrics"
	httptransport "github.com/ErlanBelekov/journey-engine/internal/transport/http"
	"github.com/ErlanBelekov/journey-engine/internal/transport/http/handler"
	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := bootstrap.Logger(cfg)

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.Open(ctx, cfg, logger)
	defer stores.Close()
	if err != nil {
		stop()
		log.Fatalf("storage: %v", err)
	}

	templates := usecase.NewTemplateUsecase(stores.Templates)
	employees := usecase.NewEmployeeUsecase(stores.Employees)
	journeys := usecase.NewJourneyUsecase(stores.Employees, stores.Templates, stores.Instances, stores.Queue)
	jobs := usecase.NewQueueUsecase(stores.Queue, stores.Attempts)

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(stores.Pingers, logger, prometheus.DefaultRegisterer)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, httptransport.Handlers{
			Templates: handler.NewTemplateHandler(templates, logger),
			Employees: handler.NewEmployeeHandler(employees, journeys, logger),
			Instances: handler.NewInstanceHandler(journeys, logger),
			Jobs:      handler.NewJobHandler(jobs, logger),
		}, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
		return nil
	})

	// The in-memory queue can only be served from this process.
	if cfg.RunProcessor {
		channels, err := bootstrap.Channels(cfg, logger)
		if err != nil {
			stop()
			log.Fatalf("channels: %v", err)
		}
		g.Go(func() error {
			return bootstrap.RunEngine(gctx, cfg, stores, channels, logger)
		})
	} else if cfg.QueueBackend == config.BackendMemory {
		logger.Warn("RUN_PROCESSOR is off with an in-memory queue; jobs will never run")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		stop()
		stores.Close()
		os.Exit(1)
	}
	logger.Info("server shut down")
}
