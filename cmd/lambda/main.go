package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.opentelemetry.io/otel"

	"signup-go/internal/app"
	"signup-go/internal/config"
	"signup-go/internal/logging"
	"signup-go/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.NewLogger(cfg.LogLevel)

	tp, err := telemetry.InitTracingTo(os.Stderr, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize tracing")
	}
	defer func() {
		_ = telemetry.ShutdownTracing(context.Background(), tp)
	}()

	healthCache, releaseCache, err := app.NewHealthCache(cfg.HealthCheck)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create health cache")
	}
	defer releaseCache()

	appConfig := app.FromSettings(cfg, logger, otel.GetTracerProvider())
	appConfig.HealthCache = healthCache

	gw := app.NewGateway(appConfig)
	lambda.Start(gw.HandleAPIGateway)
}
