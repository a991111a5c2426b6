package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"

	"signup-go/internal/config"
	"signup-go/internal/logging"
	"signup-go/internal/models"
	"signup-go/internal/telemetry"
)

const (
	testAPIKey = "0123456789abcdef-us21"
	testListID = "list123"
)

// fakeMailchimp serves the three API calls the gateway makes. Members added
// once are answered with "Member Exists" on the next attempt.
type fakeMailchimp struct {
	mu          sync.Mutex
	members     map[string]bool
	pingStatus  string
	rejectAuth  bool
	memberCalls int
	pingCalls   int
}

func (f *fakeMailchimp) RejectCredentials() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAuth = true
}

func (f *fakeMailchimp) Calls() (ping, member int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingCalls, f.memberCalls
}

func newFakeMailchimp() *fakeMailchimp {
	return &fakeMailchimp{
		members:    make(map[string]bool),
		pingStatus: "Everything's Chimpy!",
	}
}

func (f *fakeMailchimp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if _, key, ok := r.BasicAuth(); !ok || key != testAPIKey || f.rejectAuth {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"API Key Invalid","status":401,"detail":"Your API key may be invalid."}`))
		return
	}

	switch {
	case r.URL.Path == "/3.0/ping":
		f.pingCalls++
		_, _ = w.Write([]byte(`{"health_status":"` + f.pingStatus + `"}`))
	case r.URL.Path == "/3.0/lists/"+testListID && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"id":"` + testListID + `","name":"Newsletter"}`))
	case r.URL.Path == "/3.0/lists/"+testListID+"/members" && r.Method == http.MethodPost:
		f.memberCalls++
		var member struct {
			EmailAddress string `json:"email_address"`
		}
		_ = json.NewDecoder(r.Body).Decode(&member)
		if f.members[member.EmailAddress] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"title":"Member Exists","status":400,"detail":"` + member.EmailAddress + ` is already a list member."}`))
			return
		}
		f.members[member.EmailAddress] = true
		_, _ = w.Write([]byte(`{"id":"abc123","email_address":"` + member.EmailAddress + `","status":"subscribed"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Resource Not Found","status":404,"detail":"The requested resource could not be found."}`))
	}
}

// syncBuffer lets the test read logs written by server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type TestApp struct {
	server      *httptest.Server
	mailchimp   *fakeMailchimp
	provider    *httptest.Server
	recorder    *telemetry.SpanRecorder
	tp          *trace.TracerProvider
	logs        *syncBuffer
	application *Application
}

func SpawnTestApp(t *testing.T, configure ...func(*Config)) *TestApp {
	t.Helper()

	logger := logging.NewLogger("debug")
	logs := &syncBuffer{}
	logger.SetOutput(logs)

	recorder := telemetry.NewSpanRecorder()
	tp := telemetry.InitTestTracing("test-signup-api", "1.0.0", recorder)

	mailchimp := newFakeMailchimp()
	provider := httptest.NewServer(mailchimp)

	cfg := &Config{
		ServiceName:    "test-signup-api",
		ServiceVersion: "1.0.0",
		Port:           "0", // Let httptest.Server choose the port
		Logger:         logger,
		TracerProvider: tp,
		GinMode:        gin.TestMode,
		Mailchimp: config.MailchimpConfig{
			APIKey:       testAPIKey,
			ServerPrefix: "us21",
			ListID:       testListID,
			BaseURL:      provider.URL + "/3.0",
			Timeout:      2 * time.Second,
		},
	}
	for _, fn := range configure {
		fn(cfg)
	}

	application := Build(cfg)
	server := httptest.NewServer(application.GetRouter())

	return &TestApp{
		server:      server,
		mailchimp:   mailchimp,
		provider:    provider,
		recorder:    recorder,
		tp:          tp,
		logs:        logs,
		application: application,
	}
}

func (app *TestApp) Close() {
	app.server.Close()
	app.provider.Close()
	_ = app.tp.Shutdown(context.Background())
}

func (app *TestApp) Subscribe(t *testing.T, body string) (int, models.SubscribeResponse) {
	t.Helper()
	resp, err := http.Post(app.server.URL+SubscribePath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out models.SubscribeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSubscribeSuccess(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	status, resp := app.Subscribe(t, `{"email":"jane@example.com","name":"Jane"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Success("Thanks for subscribing! You'll hear from us soon.", "abc123"), resp)
}

func TestSubscribeTwiceReportsAlreadySubscribed(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	status, _ := app.Subscribe(t, `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, status)

	status, resp := app.Subscribe(t, `{"email":"jane@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.Failure("This email is already subscribed"), resp)

	status, resp = app.Subscribe(t, `{"email":"jane@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.Failure("This email is already subscribed"), resp)
}

func TestSubscribeRejectsBadRequestsWithoutProviderCalls(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	status, resp := app.Subscribe(t, `{"name":"Jane"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Please provide an email address", resp.Error)

	res, err := http.Get(app.server.URL + SubscribePath)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	pingCalls, memberCalls := app.mailchimp.Calls()
	assert.Zero(t, pingCalls)
	assert.Zero(t, memberCalls)
}

func TestSubscribeWithInvalidCredentials(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()
	app.mailchimp.RejectCredentials()

	status, resp := app.Subscribe(t, `{"email":"jane@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, models.Failure("Invalid Mailchimp configuration. Please check your API key and server prefix."), resp)
	_, memberCalls := app.mailchimp.Calls()
	assert.Zero(t, memberCalls)
	assert.NotContains(t, app.logs.String(), testAPIKey)
}

func TestSubscribeWithUnreachableProvider(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()
	app.provider.Close()

	status, resp := app.Subscribe(t, `{"email":"jane@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.NotContains(t, app.logs.String(), testAPIKey)
}

func TestHealthCheckTTLSkipsRepeatedPings(t *testing.T) {
	app := SpawnTestApp(t, func(cfg *Config) {
		cfg.HealthCheck.TTL = time.Minute
	})
	defer app.Close()

	app.Subscribe(t, `{"email":"a@example.com"}`)
	app.Subscribe(t, `{"email":"b@example.com"}`)

	pingCalls, memberCalls := app.mailchimp.Calls()
	assert.Equal(t, 1, pingCalls)
	assert.Equal(t, 2, memberCalls)
	assert.NotNil(t, app.application.GetHealthCache())
}

func TestHealthCheckRunsEveryRequestByDefault(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	app.Subscribe(t, `{"email":"a@example.com"}`)
	app.Subscribe(t, `{"email":"b@example.com"}`)

	pingCalls, _ := app.mailchimp.Calls()
	assert.Equal(t, 2, pingCalls)
	assert.Nil(t, app.application.GetHealthCache())
}

func TestSubscribeSpans(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	app.Subscribe(t, `{"email":"jane@example.com"}`)

	assert.Len(t, app.recorder.SpansByName("subscribe.gateway.handle"), 1)
	assert.Len(t, app.recorder.SpansByName("subscription.service.verify_provider"), 1)
	assert.Len(t, app.recorder.SpansWithAttribute("operation", "provider.call"), 3)

	addSpans := app.recorder.SpansByName("mailchimp.add_list_member")
	require.Len(t, addSpans, 1)
	for _, attr := range addSpans[0].Attributes() {
		assert.NotContains(t, attr.Value.Emit(), "jane@example.com")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	app.Subscribe(t, `{"email":"jane@example.com"}`)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test-signup-api", health["service"])

	metricsResp, err := http.Get(app.server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `signup_subscribe_requests_total{outcome="success"} 1`)
}

func TestNewHealthCache(t *testing.T) {
	c, release, err := NewHealthCache(config.HealthCheckConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
	release()

	c, release, err = NewHealthCache(config.HealthCheckConfig{TTL: time.Minute})
	require.NoError(t, err)
	assert.NotNil(t, c)
	release()
}

func TestLambdaAndHTTPAgree(t *testing.T) {
	app := SpawnTestApp(t)
	defer app.Close()

	body := `{"email":"jane@example.com"}`
	resp, err := http.Post(app.server.URL+SubscribePath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	httpBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	proxyResp, err := app.application.GetGateway().HandleAPIGateway(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       body,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusBadRequest, proxyResp.StatusCode)
	assert.JSONEq(t, `{"status":"error","error":"This email is already subscribed"}`, proxyResp.Body)
	assert.JSONEq(t, `{"status":"success","message":"Thanks for subscribing! You'll hear from us soon.","id":"abc123"}`, string(httpBody))
	for key, value := range proxyResp.Headers {
		assert.Equal(t, value, resp.Header.Get(key), key)
	}
}
