package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StateStore is the subset of the Dapr client used by DaprCache.
type StateStore interface {
	GetState(ctx context.Context, storeName, key string, meta map[string]string) (*dapr.StateItem, error)
	SaveState(ctx context.Context, storeName, key string, data []byte, meta map[string]string, so ...dapr.StateOption) error
	DeleteState(ctx context.Context, storeName, key string, meta map[string]string) error
}

// DaprCache keeps verdicts in a Dapr state store so that every gateway
// replica shares them. Expiry is enforced by the store through ttlInSeconds
// and again on read, for stores that ignore TTL metadata.
type DaprCache struct {
	client    StateStore
	tracer    trace.Tracer
	storeName string
}

type daprEntry struct {
	Status   *HealthStatus `json:"status"`
	ExpireAt time.Time     `json:"expire_at"`
}

func NewDaprCache(client StateStore, storeName string) *DaprCache {
	return &DaprCache{
		client:    client,
		tracer:    otel.Tracer("dapr.cache"),
		storeName: storeName,
	}
}

func (c *DaprCache) Get(ctx context.Context, key string) (*HealthStatus, error) {
	ctx, span := c.tracer.Start(ctx, "cache.get",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.read"),
			attribute.String("dapr.store", c.storeName),
		))
	defer span.End()

	item, err := c.client.GetState(ctx, c.storeName, key, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get %s from dapr state store: %w", key, err)
	}

	if item == nil || len(item.Value) == 0 {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrMiss
	}

	var entry daprEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if entry.Status == nil || time.Now().After(entry.ExpireAt) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrMiss
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return entry.Status, nil
}

func (c *DaprCache) Set(ctx context.Context, key string, status *HealthStatus, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "cache.set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
			attribute.String("dapr.store", c.storeName),
			attribute.String("ttl", ttl.String()),
		))
	defer span.End()

	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	data, err := json.Marshal(daprEntry{Status: status, ExpireAt: time.Now().Add(ttl)})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	seconds := int(ttl.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	meta := map[string]string{"ttlInSeconds": strconv.Itoa(seconds)}

	if err := c.client.SaveState(ctx, c.storeName, key, data, meta); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save %s to dapr state store: %w", key, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (c *DaprCache) Delete(ctx context.Context, key string) error {
	ctx, span := c.tracer.Start(ctx, "cache.delete",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("operation", "cache.write"),
			attribute.String("dapr.store", c.storeName),
		))
	defer span.End()

	if err := c.client.DeleteState(ctx, c.storeName, key, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete %s from dapr state store: %w", key, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}
