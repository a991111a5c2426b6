package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"signup-go/internal/cache"
	"signup-go/internal/config"
	"signup-go/internal/gateway"
	"signup-go/internal/handlers"
	"signup-go/internal/logging"
	"signup-go/internal/mailchimp"
	"signup-go/internal/metrics"
	"signup-go/internal/service"
)

const SubscribePath = "/api/subscribe"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string
	Logger         *logging.ContextLogger
	TracerProvider trace.TracerProvider
	GinMode        string
	Mailchimp      config.MailchimpConfig
	HealthCheck    config.HealthCheckConfig
	Metrics        *metrics.Metrics
	Provider       service.Provider // Allow injecting any provider implementation
	HealthCache    cache.Cache      // Defaults to in-memory when HealthCheck.TTL is set
}

// FromSettings maps the environment configuration onto an application Config.
func FromSettings(cfg *config.Config, logger *logging.ContextLogger, tp trace.TracerProvider) *Config {
	return &Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Port:           cfg.Port,
		Logger:         logger,
		TracerProvider: tp,
		GinMode:        cfg.GinMode,
		Mailchimp:      cfg.Mailchimp,
		HealthCheck:    cfg.HealthCheck,
	}
}

type Application struct {
	server  *http.Server
	config  *Config
	router  *gin.Engine
	gateway *gateway.Gateway
	handler *handlers.SubscribeHandler
}

// NewGateway wires provider, health cache and service into a gateway. It
// fills in defaults on config, so Build and the Lambda entrypoint share one
// assembly path.
func NewGateway(config *Config) *gateway.Gateway {
	if config.Metrics == nil {
		config.Metrics = metrics.New()
	}
	if config.Provider == nil {
		config.Provider = mailchimp.NewClient(config.Mailchimp, mailchimp.WithMetrics(config.Metrics))
	}
	if config.HealthCache == nil && config.HealthCheck.TTL > 0 {
		config.HealthCache = cache.NewInMemoryCache()
	}

	subscriptionService := service.NewSubscriptionService(config.Provider, config.HealthCache, config.Logger, service.Options{
		ListID:         config.Mailchimp.ListID,
		HealthCheckTTL: config.HealthCheck.TTL,
		Metrics:        config.Metrics,
	})
	return gateway.New(subscriptionService, config.Logger, config.Metrics)
}

func Build(config *Config) *Application {
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}

	gw := NewGateway(config)
	subscribeHandler := handlers.NewSubscribeHandler(gw, config.Logger)

	var otelOpts []otelgin.Option
	if config.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(config.TracerProvider))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(config.ServiceName, otelOpts...))
	router.Use(handlers.RequestID())
	router.Use(handlers.RequestLogger(config.Logger))

	router.Any(SubscribePath, subscribeHandler.Subscribe)
	router.NoRoute(subscribeHandler.NoRoute)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   config.ServiceName,
		})
	})
	router.GET("/metrics", gin.WrapH(config.Metrics.Handler()))

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		server:  server,
		config:  config,
		router:  router,
		gateway: gw,
		handler: subscribeHandler,
	}
}

func (app *Application) Run() error {
	app.config.Logger.Info("Starting server on :" + app.config.Port)
	if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (app *Application) Shutdown(ctx context.Context) error {
	app.config.Logger.Info("Shutting down server...")
	return app.server.Shutdown(ctx)
}

func (app *Application) GetGateway() *gateway.Gateway {
	return app.gateway
}

func (app *Application) GetHealthCache() cache.Cache {
	return app.config.HealthCache
}

func (app *Application) GetRouter() *gin.Engine {
	return app.router
}
