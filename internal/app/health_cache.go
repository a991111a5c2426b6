package app

import (
	"fmt"

	dapr "github.com/dapr/go-sdk/client"

	"signup-go/internal/cache"
	"signup-go/internal/config"
)

// NewHealthCache returns the cache backing provider health verdicts and a
// function releasing it. With no TTL configured there is nothing to cache and
// both return values are nil-safe no-ops. A configured store name selects the
// Dapr state store reached through the local sidecar.
func NewHealthCache(cfg config.HealthCheckConfig) (cache.Cache, func(), error) {
	if cfg.TTL <= 0 {
		return nil, func() {}, nil
	}

	if cfg.CacheStore == "" {
		c := cache.NewInMemoryCache()
		return c, c.Close, nil
	}

	client, err := dapr.NewClient()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to dapr sidecar: %w", err)
	}
	return cache.NewDaprCache(client, cfg.CacheStore), client.Close, nil
}
