package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/pkg/logger"
	"github.com/wonny/xcelerator/pkg/redis"
)

func TestNewDefaults(t *testing.T) {
	client := New("test", logger.Nop())

	assert.Equal(t, 3, client.retryConfig.MaxRetries)
	assert.True(t, client.retryConfig.Enabled)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Equal(t, "closed", client.BreakerState())
}

func TestOptions(t *testing.T) {
	client := New("test", logger.Nop()).
		WithTimeout(5*time.Second).
		WithRetry(5, 2*time.Second).
		WithRateLimit(10, 1)

	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 5, client.retryConfig.MaxRetries)
	assert.Equal(t, 2*time.Second, client.retryConfig.InitialDelay)
	require.NotNil(t, client.limiter)

	assert.False(t, client.DisableRetry().retryConfig.Enabled)
}

func TestGetSendsDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "xcelerator", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New("test", logger.Nop()).WithHeader("User-Agent", "xcelerator")

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)

	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"symbol":"TCS","qty":3}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New("test", logger.Nop())

	resp, err := client.PostJSON(context.Background(), server.URL, map[string]interface{}{"symbol": "TCS", "qty": 3})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New("test", logger.Nop()).WithRetry(3, 10*time.Millisecond)

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New("flaky", logger.Nop()).DisableRetry()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Get(ctx, server.URL)
		require.Error(t, err)
	}

	_, err := client.Get(ctx, server.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, "open", client.BreakerState())
}

func TestSharedRateLimitDisabledRedis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := New("test", logger.Nop()).
		WithSharedRateLimit(redis.NewRateLimiter(redis.Disabled(), "test"), redis.KiteOrderLimit)

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestReadBodyRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))
	defer server.Close()

	resp, err := New("test", logger.Nop()).Get(context.Background(), server.URL)
	require.NoError(t, err)

	_, err = ReadBody(resp)
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableStatus(tt.statusCode))
		})
	}
}
