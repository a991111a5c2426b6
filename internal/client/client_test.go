package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup-go/internal/models"
	"signup-go/internal/validation"
)

func newTestServer(t *testing.T, status int, body string) (*Client, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"email":"jane@example.com","name":"Subscriber"}`, string(payload))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return New(server.URL + "/api/subscribe"), calls
}

func TestSubscribeSuccess(t *testing.T) {
	c, calls := newTestServer(t, http.StatusOK,
		`{"status":"success","message":"Thanks for subscribing! You'll hear from us soon.","id":"abc123"}`)

	resp, err := c.Subscribe(context.Background(), "jane@example.com")

	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "abc123", resp.ID)
	assert.Equal(t, "Thanks for subscribing! You'll hear from us soon.", resp.Message)
}

func TestSubscribeValidatesBeforeCalling(t *testing.T) {
	c, calls := newTestServer(t, http.StatusOK, `{"status":"success"}`)

	for _, email := range []string{"", "not-an-email"} {
		_, err := c.Subscribe(context.Background(), email)

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
	}
	_, err := c.Subscribe(context.Background(), "")
	assert.EqualError(t, err, validation.MsgEmailRequired)
	assert.Zero(t, calls.Load())
}

func TestSubscribeProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantStatus int
	}{
		{"already subscribed", 400, `{"status":"error","error":"This email is already subscribed"}`, "This email is already subscribed", 400},
		{"error without message", 500, `{"status":"error"}`, MsgSubscribeFailed, 500},
		{"not json", 502, `<html>Bad Gateway</html>`, MsgUnparsable, 502},
		{"array", 200, `["success"]`, MsgMissingStatus, 200},
		{"empty array", 200, `[]`, MsgMissingStatus, 200},
		{"json null", 200, `null`, MsgNotAnObject, 200},
		{"json number", 200, `42`, MsgNotAnObject, 200},
		{"json string", 200, `"success"`, MsgNotAnObject, 200},
		{"missing status", 200, `{"message":"ok"}`, MsgMissingStatus, 200},
		{"empty body", 200, ``, MsgMissingStatus, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, tt.body)

			resp, err := c.Subscribe(context.Background(), "jane@example.com")

			assert.Nil(t, resp)
			var providerErr *models.ProviderError
			require.ErrorAs(t, err, &providerErr)
			assert.Equal(t, tt.wantMsg, providerErr.Message)
			assert.Equal(t, tt.wantStatus, providerErr.StatusCode)
			assert.Equal(t, tt.wantMsg, models.UserMessage(err))
		})
	}
}

func TestSubscribeConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	c := New("http://" + addr + "/api/subscribe")
	_, err = c.Subscribe(context.Background(), "jane@example.com")

	var networkErr *models.NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, MsgConnectFailed, networkErr.Message)

	var providerErr *models.ProviderError
	assert.False(t, errors.As(err, &providerErr))
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestSubscribeBodyReadFailure(t *testing.T) {
	c := New("http://gateway.test/api/subscribe", WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: failingBody{}}, nil
	})))

	_, err := c.Subscribe(context.Background(), "jane@example.com")

	var networkErr *models.NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, MsgReadFailed, networkErr.Message)
	assert.True(t, strings.Contains(networkErr.Err.Error(), "connection reset"))
}
