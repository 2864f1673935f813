package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/redis"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	args := m.Called(key, limit, window)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockRedis) Health() error {
	return m.Called().Error(0)
}

func TestDistributedLimiter_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	limiter, err := New(Config{Enabled: true, Requests: 2, Window: time.Minute, Type: BackendDistributed}, client)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "5.6.7.8"))
	assert.True(t, mr.Exists("ratelimit:1.2.3.4"))
	assert.NoError(t, limiter.Health())
}

func TestDistributedLimiter_FailsOpen(t *testing.T) {
	m := &mockRedis{}
	m.On("CheckRateLimit", "ratelimit:k", 1, time.Second).Return(false, 0, fmt.Errorf("connection refused"))

	limiter, err := NewDistributedLimiter(Config{Enabled: true, Requests: 1, Window: time.Second}, m)
	require.NoError(t, err)

	assert.True(t, limiter.Allow(context.Background(), "k"))
	m.AssertExpectations(t)
}

func TestNew_RequiresRedisForDistributed(t *testing.T) {
	_, err := New(Config{Enabled: true, Requests: 1, Window: time.Second, Type: BackendDistributed}, nil)
	assert.Error(t, err)
}

func TestHTTPMiddleware(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: true, Requests: 1, Window: time.Hour})
	require.NoError(t, err)

	handler := HTTPMiddleware(limiter, IPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/abc", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call().Code)

	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, rec.Body.String(), `"type":"rate_limit"`)
}

func TestIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:4000"
	assert.Equal(t, "192.168.1.9", IPKey(req))

	req.RemoteAddr = "[::1]:4000"
	assert.Equal(t, "::1", IPKey(req))

	req.Header.Set("X-Real-IP", "172.16.0.2")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "::1", IPKey(req), "forwarding headers need a trusted proxy")
}

func TestClientIPKey(t *testing.T) {
	key, err := ClientIPKey([]string{"10.0.0.0/8", "::1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  []string
		realIP     string
		want       string
	}{
		{"untrusted peer spoofing", "198.51.100.4:5000", []string{"203.0.113.7"}, "", "198.51.100.4"},
		{"trusted proxy", "10.1.2.3:5000", []string{"203.0.113.7"}, "", "203.0.113.7"},
		{"right-most untrusted hop", "10.1.2.3:5000", []string{"1.1.1.1, 203.0.113.7, 10.0.0.9"}, "", "203.0.113.7"},
		{"repeated headers", "[::1]:5000", []string{"1.1.1.1", "203.0.113.8"}, "", "203.0.113.8"},
		{"real ip fallback", "10.1.2.3:5000", nil, "203.0.113.9", "203.0.113.9"},
		{"only proxies", "10.1.2.3:5000", []string{"10.0.0.7"}, "", "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/abc", nil)
			req.RemoteAddr = tt.remoteAddr
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, key(req))
		})
	}
}

func TestClientIPKey_RotatingHeaderStillLimited(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: true, Requests: 1, Window: time.Hour})
	require.NoError(t, err)
	key, err := ClientIPKey(nil)
	require.NoError(t, err)

	handler := HTTPMiddleware(limiter, key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook/abc", nil)
		req.RemoteAddr = "198.51.100.4:5000"
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.1 ", "", "::1"})
	require.NoError(t, err)
	assert.Len(t, prefixes, 3)

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}
