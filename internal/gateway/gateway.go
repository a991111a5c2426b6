// Package gateway implements the subscribe endpoint independently of the
// transport that carries it. The HTTP server and the Lambda function both
// hand raw method and body to Gateway.Handle.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signup-go/internal/logging"
	"signup-go/internal/metrics"
	"signup-go/internal/models"
)

const (
	MsgMethodNotAllowed = "Method Not Allowed"
	MsgBodyRequired     = "Request body is required"
	MsgInvalidJSON      = "Invalid JSON in request body"
	MsgEmailRequired    = "Please provide an email address"
	MsgInvalidConfig    = "Invalid Mailchimp configuration. Please check your API key and server prefix."
	MsgUnexpected       = "An unexpected error occurred. Please try again later."
	MsgNotFound         = "Not Found"
)

// Subscriber performs the provider side of a subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, email, name string) (*models.SubscribeResponse, error)
}

type Result struct {
	StatusCode int
	Body       models.SubscribeResponse
}

// Headers returns the headers every gateway response carries.
func Headers() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Cache-Control":                "no-store",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

func (r Result) JSON() []byte {
	data, err := json.Marshal(r.Body)
	if err != nil {
		return []byte(`{"status":"error","error":"` + MsgUnexpected + `"}`)
	}
	return data
}

// ErrorResult builds an error response with the given status.
func ErrorResult(status int, message string) Result {
	return Result{StatusCode: status, Body: models.Failure(message)}
}

func NotFound() Result {
	return ErrorResult(http.StatusNotFound, MsgNotFound)
}

func MethodNotAllowed() Result {
	return ErrorResult(http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

type Gateway struct {
	subscriber Subscriber
	logger     *logging.ContextLogger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func New(subscriber Subscriber, logger *logging.ContextLogger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		subscriber: subscriber,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("subscribe-gateway"),
	}
}

// Handle runs one request through method check, body parsing, input
// validation and the provider call. The first failing step decides the
// response; nothing is retried.
func (g *Gateway) Handle(ctx context.Context, method string, body []byte) (result Result) {
	ctx, span := g.tracer.Start(ctx, "subscribe.gateway.handle",
		trace.WithAttributes(attribute.String("http.method", method)))
	defer span.End()

	outcome := "unexpected"
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			g.logger.ErrorWithTracing(ctx, "Unexpected server error", err, nil)
			span.RecordError(err)
			result = ErrorResult(http.StatusInternalServerError, MsgUnexpected)
			outcome = "unexpected"
		}
		g.metrics.ObserveSubscribe(outcome)
		span.SetAttributes(
			attribute.Int("http.status_code", result.StatusCode),
			attribute.String("subscribe.outcome", outcome),
		)
	}()

	if method != http.MethodPost {
		outcome = "method_not_allowed"
		return MethodNotAllowed()
	}

	if len(body) == 0 {
		outcome = "bad_request"
		return ErrorResult(http.StatusBadRequest, MsgBodyRequired)
	}

	req, err := parseBody(body)
	if err != nil {
		g.logger.WarnWithTracing(ctx, "Rejected subscribe request body", logrus.Fields{
			"error": err.Error(),
		})
		outcome = "bad_request"
		return ErrorResult(http.StatusBadRequest, MsgInvalidJSON)
	}

	if req.Email == "" {
		outcome = "bad_request"
		return ErrorResult(http.StatusBadRequest, MsgEmailRequired)
	}

	resp, err := g.subscriber.Subscribe(ctx, req.Email, req.Name)
	if err != nil {
		span.RecordError(err)
		result, outcome = g.mapError(ctx, err)
		return result
	}

	outcome = "success"
	return Result{StatusCode: http.StatusOK, Body: *resp}
}

func (g *Gateway) mapError(ctx context.Context, err error) (Result, string) {
	var providerErr *models.ProviderError

	switch {
	case errors.Is(err, models.ErrInvalidConfiguration):
		g.logger.ErrorWithTracing(ctx, "Mailchimp configuration check failed", err, nil)
		return ErrorResult(http.StatusInternalServerError, MsgInvalidConfig), "config_error"
	case errors.As(err, &providerErr):
		return ErrorResult(http.StatusBadRequest, providerErr.Message), "provider_error"
	default:
		g.logger.ErrorWithTracing(ctx, "Unexpected server error", err, nil)
		return ErrorResult(http.StatusInternalServerError, MsgUnexpected), "unexpected"
	}
}

// parseBody accepts any JSON document. Only a string "email" and "name"
// inside an object are used; every other shape yields an empty request.
func parseBody(body []byte) (models.SubscribeRequest, error) {
	if !json.Valid(body) {
		return models.SubscribeRequest{}, errors.New("body is not valid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return models.SubscribeRequest{}, nil
	}

	return models.SubscribeRequest{
		Email: stringField(fields, "email"),
		Name:  stringField(fields, "name"),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
