// Package client calls the subscribe endpoint on behalf of a sign-up form.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signup-go/internal/models"
	"signup-go/internal/validation"
)

const (
	DefaultName    = "Subscriber"
	DefaultTimeout = 10 * time.Second

	MsgConnectFailed   = "Failed to connect to the subscription service"
	MsgReadFailed      = "Failed to read response from subscription service"
	MsgUnparsable      = "Unable to process the subscription response"
	MsgNotAnObject     = "Invalid response from server"
	MsgMissingStatus   = "Server returned an invalid response format"
	MsgSubscribeFailed = "Subscription failed"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	endpoint   string
	httpClient HTTPDoer
	tracer     trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// New returns a client posting to endpoint, the full URL of the subscribe
// route.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tracer:     otel.Tracer("subscription-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe validates email locally and then makes a single POST to the
// endpoint. Failures are *models.ValidationError, *models.NetworkError or
// *models.ProviderError.
func (c *Client) Subscribe(ctx context.Context, email string) (*models.SubscribeResponse, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "subscription.client.subscribe",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	payload, err := json.Marshal(models.SubscribeRequest{Email: email, Name: DefaultName})
	if err != nil {
		return nil, fmt.Errorf("marshaling subscribe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, models.NewNetworkError(MsgConnectFailed, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, models.NewNetworkError(MsgConnectFailed, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, models.NewNetworkError(MsgReadFailed, err)
	}

	return parseResponse(resp.StatusCode, body)
}

func parseResponse(statusCode int, body []byte) (*models.SubscribeResponse, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, models.NewProviderError(MsgUnparsable, statusCode)
	}
	var fields map[string]interface{}
	switch v := raw.(type) {
	case map[string]interface{}:
		fields = v
	case []interface{}:
		// Arrays are objects without a status field.
		return nil, models.NewProviderError(MsgMissingStatus, statusCode)
	default:
		return nil, models.NewProviderError(MsgNotAnObject, statusCode)
	}

	status, ok := fields["status"].(string)
	if !ok {
		return nil, models.NewProviderError(MsgMissingStatus, statusCode)
	}

	if status == models.StatusError {
		message, _ := fields["error"].(string)
		if message == "" {
			message = MsgSubscribeFailed
		}
		return nil, models.NewProviderError(message, statusCode)
	}

	resp := models.SubscribeResponse{Status: status}
	resp.Message, _ = fields["message"].(string)
	resp.Error, _ = fields["error"].(string)
	resp.ID, _ = fields["id"].(string)
	return &resp, nil
}
