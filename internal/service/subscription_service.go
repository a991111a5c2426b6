package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signup-go/internal/cache"
	"signup-go/internal/logging"
	"signup-go/internal/mailchimp"
	"signup-go/internal/metrics"
	"signup-go/internal/models"
)

const (
	DefaultDisplayName = "Subscriber"
	SignupTag          = "Website Signup"
	SuccessMessage     = "Thanks for subscribing! You'll hear from us soon."

	MsgAlreadySubscribed  = "This email is already subscribed"
	MsgInvalidEmail       = "Please provide a valid email address"
	MsgInvalidAPIConfig   = "Invalid API configuration"
	MsgServiceUnavailable = "Mailchimp service is temporarily unavailable"
	MsgUnableToSubscribe  = "Unable to subscribe at this time"
)

// Provider is the mailing list API as seen by the service.
type Provider interface {
	Ping(ctx context.Context) (*mailchimp.PingResponse, error)
	GetList(ctx context.Context, listID string) (*mailchimp.List, error)
	AddListMember(ctx context.Context, listID string, member mailchimp.MemberRequest) (*mailchimp.Member, error)
}

type Options struct {
	ListID string
	// HealthCheckTTL is how long a healthy verdict is reused. Zero verifies
	// the provider before every subscription.
	HealthCheckTTL time.Duration
	Metrics        *metrics.Metrics
}

type SubscriptionService struct {
	provider    Provider
	healthCache cache.Cache
	opts        Options
	logger      *logging.ContextLogger
	tracer      trace.Tracer
}

func NewSubscriptionService(provider Provider, healthCache cache.Cache, logger *logging.ContextLogger, opts Options) *SubscriptionService {
	return &SubscriptionService{
		provider:    provider,
		healthCache: healthCache,
		opts:        opts,
		logger:      logger,
		tracer:      otel.Tracer("subscription-service"),
	}
}

// Subscribe verifies the provider and adds email to the configured list.
// Provider rejections come back as *models.ProviderError with a message that
// is safe to show; an unhealthy provider as models.ErrInvalidConfiguration.
func (s *SubscriptionService) Subscribe(ctx context.Context, email, name string) (*models.SubscribeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "subscription.service.subscribe",
		trace.WithAttributes(
			attribute.String("mailchimp.list_id", s.opts.ListID),
		))
	defer span.End()

	if name == "" {
		name = DefaultDisplayName
	}

	if err := s.VerifyProvider(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	member, err := s.provider.AddListMember(ctx, s.opts.ListID, mailchimp.MemberRequest{
		EmailAddress: email,
		Status:       mailchimp.MemberStatusSubscribed,
		MergeFields:  map[string]string{mailchimp.MergeFieldFirstName: name},
		Tags:         []string{SignupTag},
	})
	if err != nil {
		span.RecordError(err)

		var apiErr *mailchimp.APIError
		if !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("adding list member: %w", err)
		}

		message := ClassifyProviderError(apiErr)
		if message == MsgInvalidAPIConfig {
			s.logger.ErrorWithTracing(ctx, "Mailchimp rejected the configured API key", nil, logrus.Fields{
				"list_id": s.opts.ListID,
			})
		}
		if message == MsgInvalidAPIConfig || apiErr.Status >= 500 {
			s.forgetHealth(ctx)
		}
		s.logger.ErrorWithTracing(ctx, "Mailchimp API error", apiErr, logrus.Fields{
			"status":       apiErr.Status,
			"title":        apiErr.Title,
			"user_message": message,
			"detail":       apiErr.Detail,
		})
		return nil, models.NewProviderError(message, apiErr.Status)
	}

	s.logger.InfoWithTracing(ctx, "Subscribed list member", logrus.Fields{
		"email":     email,
		"member_id": member.ID,
		"list_id":   s.opts.ListID,
	})

	span.SetAttributes(
		attribute.String("mailchimp.member_id", member.ID),
		attribute.Bool("success", true),
	)

	resp := models.Success(SuccessMessage, member.ID)
	return &resp, nil
}

// VerifyProvider checks that the provider answers a ping with a healthy
// status and that the configured list exists. A healthy verdict is cached
// when HealthCheckTTL is positive; failures are never cached.
func (s *SubscriptionService) VerifyProvider(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "subscription.service.verify_provider")
	defer span.End()

	key := cache.HealthKey(s.opts.ListID)
	if s.cachingEnabled() {
		status, err := s.healthCache.Get(ctx, key)
		switch {
		case err == nil && status.Healthy:
			s.opts.Metrics.ObserveHealthCheck("cache")
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return nil
		case err != nil && !errors.Is(err, cache.ErrMiss):
			s.logger.WarnWithTracing(ctx, "Failed to read provider health from cache", logrus.Fields{
				"error": err.Error(),
			})
		}
	}

	s.opts.Metrics.ObserveHealthCheck("live")

	ping, err := s.provider.Ping(ctx)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Mailchimp configuration validation failed", err, logrus.Fields{
			"step": "ping",
		})
		span.RecordError(err)
		return fmt.Errorf("%w: ping: %w", models.ErrInvalidConfiguration, err)
	}
	if !ping.IsHealthy() {
		s.logger.ErrorWithTracing(ctx, "Mailchimp API is not healthy", nil, logrus.Fields{
			"health_status": ping.HealthStatus,
		})
		return fmt.Errorf("%w: health status %q", models.ErrInvalidConfiguration, ping.HealthStatus)
	}

	if _, err := s.provider.GetList(ctx, s.opts.ListID); err != nil {
		s.logger.ErrorWithTracing(ctx, "Mailchimp configuration validation failed", err, logrus.Fields{
			"step":    "get_list",
			"list_id": s.opts.ListID,
		})
		span.RecordError(err)
		return fmt.Errorf("%w: list %s: %w", models.ErrInvalidConfiguration, s.opts.ListID, err)
	}

	if s.cachingEnabled() {
		status := &cache.HealthStatus{ListID: s.opts.ListID, Healthy: true, CheckedAt: time.Now().UTC()}
		if err := s.healthCache.Set(ctx, key, status, s.opts.HealthCheckTTL); err != nil {
			s.logger.WarnWithTracing(ctx, "Failed to cache provider health", logrus.Fields{
				"error": err.Error(),
			})
		}
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

// forgetHealth drops a cached healthy verdict so the next request verifies
// the provider again.
func (s *SubscriptionService) forgetHealth(ctx context.Context) {
	if !s.cachingEnabled() {
		return
	}
	if err := s.healthCache.Delete(ctx, cache.HealthKey(s.opts.ListID)); err != nil {
		s.logger.WarnWithTracing(ctx, "Failed to invalidate cached provider health", logrus.Fields{
			"error": err.Error(),
		})
		return
	}
	s.logger.DebugWithTracing(ctx, "Invalidated cached provider health", logrus.Fields{
		"list_id": s.opts.ListID,
	})
}

func (s *SubscriptionService) cachingEnabled() bool {
	return s.healthCache != nil && s.opts.HealthCheckTTL > 0
}

// ClassifyProviderError turns a provider problem document into a short
// message for the end user. Credentials and internal identifiers never leak
// through it; only the provider's detail sentence is passed on when nothing
// more specific matches.
func ClassifyProviderError(apiErr *mailchimp.APIError) string {
	switch {
	case strings.Contains(apiErr.Title, "Member Exists"):
		return MsgAlreadySubscribed
	case strings.Contains(apiErr.Title, "Invalid Resource"):
		return MsgInvalidEmail
	case strings.Contains(apiErr.Title, "API Key Invalid"):
		return MsgInvalidAPIConfig
	case apiErr.Status >= 500:
		return MsgServiceUnavailable
	case apiErr.Detail != "":
		return apiErr.Detail
	default:
		return MsgUnableToSubscribe
	}
}
