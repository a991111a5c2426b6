package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"signup-go/internal/app"
	"signup-go/internal/config"
	"signup-go/internal/logging"
	"signup-go/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := logging.NewLogger("info")
		fields := logrus.Fields{}
		var missing *config.MissingError
		if errors.As(err, &missing) {
			fields["missing"] = missing.Keys
		}
		logger.WithFields(fields).WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.NewLogger(cfg.LogLevel)

	tp, err := telemetry.InitTracing(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize tracing")
	}
	defer func() {
		if err := telemetry.ShutdownTracing(context.Background(), tp); err != nil {
			logger.WithError(err).Error("Error shutting down tracer provider")
		}
	}()

	healthCache, releaseCache, err := app.NewHealthCache(cfg.HealthCheck)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create health cache")
	}
	defer releaseCache()

	appConfig := app.FromSettings(cfg, logger, otel.GetTracerProvider())
	appConfig.HealthCache = healthCache

	application := app.Build(appConfig)

	logger.WithFields(logrus.Fields{
		"service":          cfg.ServiceName,
		"version":          cfg.ServiceVersion,
		"list_id":          cfg.Mailchimp.ListID,
		"server_prefix":    cfg.Mailchimp.ServerPrefix,
		"health_check_ttl": cfg.HealthCheck.TTL.String(),
		"health_store":     cfg.HealthCheck.CacheStore,
	}).Info("Configuration loaded")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("Server failed")
			os.Exit(1)
		}
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
