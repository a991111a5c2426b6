package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signup-go/internal/config"
	"signup-go/internal/metrics"
	"signup-go/internal/models"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Mailchimp Marketing API v3. It only implements the
// calls the signup flow needs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(cfg config.MailchimpConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    cfg.Endpoint(),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("mailchimp-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var out PingResponse
	if err := c.do(ctx, "ping", http.MethodGet, "/ping", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetList(ctx context.Context, listID string) (*List, error) {
	var out List
	path := "/lists/" + url.PathEscape(listID)
	if err := c.do(ctx, "get_list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddListMember(ctx context.Context, listID string, member MemberRequest) (*Member, error) {
	var out Member
	path := "/lists/" + url.PathEscape(listID) + "/members"
	if err := c.do(ctx, "add_list_member", http.MethodPost, path, member, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one API call. Non-2xx responses come back as *APIError and a
// call that never got a response as *models.NetworkError.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) (err error) {
	ctx, span := c.tracer.Start(ctx, "mailchimp."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("operation", "provider.call"),
			attribute.String("http.method", method),
			attribute.String("mailchimp.path", path),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
		}
		c.metrics.ObserveProvider(operation, result, time.Since(start).Seconds())
	}()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth("anystring", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewNetworkError("Failed to connect to Mailchimp", fmt.Errorf("executing %s request: %w", operation, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", operation, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", operation, err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr = &APIError{}
	}
	if apiErr.Status == 0 {
		apiErr.Status = status
	}
	if apiErr.Title == "" {
		apiErr.Title = http.StatusText(status)
	}
	return apiErr
}
