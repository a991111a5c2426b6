package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrMiss = errors.New("key not found in cache")

// HealthStatus is the outcome of a provider verification for one list.
type HealthStatus struct {
	ListID    string    `json:"list_id"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
}

type Cache interface {
	Get(ctx context.Context, key string) (*HealthStatus, error)
	Set(ctx context.Context, key string, status *HealthStatus, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cacheItem struct {
	status   *HealthStatus
	expireAt time.Time
}

type InMemoryCache struct {
	mu     sync.RWMutex
	items  map[string]*cacheItem
	tracer trace.Tracer
	stop   chan struct{}
	once   sync.Once
}

func NewInMemoryCache() *InMemoryCache {
	cache := &InMemoryCache{
		items:  make(map[string]*cacheItem),
		tracer: otel.Tracer("cache"),
		stop:   make(chan struct{}),
	}

	go cache.cleanup(time.Minute)
	return cache
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (*HealthStatus, error) {
	_, span := c.tracer.Start(ctx, "cache.get",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.read"),
		))
	defer span.End()

	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		span.SetAttributes(
			attribute.Bool("cache.hit", false),
			attribute.String("cache.result", "miss"),
		)
		return nil, ErrMiss
	}

	if time.Now().After(item.expireAt) {
		span.SetAttributes(
			attribute.Bool("cache.hit", false),
			attribute.String("cache.result", "expired"),
		)
		return nil, ErrMiss
	}

	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.String("cache.result", "hit"),
	)
	return item.status, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, status *HealthStatus, ttl time.Duration) error {
	_, span := c.tracer.Start(ctx, "cache.set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
			attribute.String("ttl", ttl.String()),
		))
	defer span.End()

	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		status:   status,
		expireAt: time.Now().Add(ttl),
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	_, span := c.tracer.Start(ctx, "cache.delete",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
		))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	delete(c.items, key)

	span.SetAttributes(
		attribute.Bool("key.existed", exists),
		attribute.Bool("success", true),
	)
	return nil
}

// Close stops the background cleanup loop.
func (c *InMemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *InMemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *InMemoryCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if now.After(item.expireAt) {
			delete(c.items, key)
		}
	}
}

func HealthKey(listID string) string {
	return fmt.Sprintf("mailchimp-health:%s", listID)
}
