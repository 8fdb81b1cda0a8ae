package ratelimit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": " 10.0.0.1 , 10.0.0.2"}, "10.0.0.1"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "10.0.0.1", "X-Real-IP": "10.9.9.9"}, "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.9.9.9"}, "10.9.9.9"},
		{"none", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ratelimit.ClientIdentifier(r))
		})
	}
}

type countingRecorder struct{ hits map[string]int }

func (c *countingRecorder) IncrRateLimited(endpoint string) {
	if c.hits == nil {
		c.hits = map[string]int{}
	}
	c.hits[endpoint]++
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.WithClock(clock.Now))
	rec := &countingRecorder{}
	cfg := ratelimit.Config{Window: time.Minute, MaxRequests: 2}

	h := ratelimit.Middleware(l, "pdf", cfg, rec, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/v1/estimates/1/pdf", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	first := do()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusNoContent, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	clock.Advance(20500 * time.Millisecond)
	third := do()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "40", third.Header().Get("Retry-After"))
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(third.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC).UnixMilli(), reset)

	var body struct {
		Error      string `json:"error"`
		RetryAfter int64  `json:"retryAfter"`
	}
	require.NoError(t, json.NewDecoder(third.Body).Decode(&body))
	assert.Equal(t, "Too many requests", body.Error)
	assert.Equal(t, int64(40), body.RetryAfter)
	assert.Equal(t, 1, rec.hits["pdf"])
}

func TestMiddleware_FailsOpenOnStoreError(t *testing.T) {
	l := ratelimit.New(&failingStore{})
	h := ratelimit.Middleware(l, "api", perMinute5, nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRetryAfter(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, int64(1), ratelimit.RetryAfter(now.Add(time.Millisecond), now))
	assert.Equal(t, int64(60), ratelimit.RetryAfter(now.Add(time.Minute), now))
	assert.Equal(t, int64(0), ratelimit.RetryAfter(now.Add(-time.Second), now))
}
