package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UnknownClient is the bucket shared by callers without forwarding headers.
const UnknownClient = "unknown"

// ClientIdentifier resolves the caller: first X-Forwarded-For hop, then
// X-Real-IP, then UnknownClient.
func ClientIdentifier(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownClient
}

// Recorder receives a callback for each rejected request.
type Recorder interface {
	IncrRateLimited(endpoint string)
}

type limitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
}

// Middleware rejects requests over cfg for endpoint with 429. Store
// failures are logged and the request is let through.
func Middleware(l *Limiter, endpoint string, cfg Config, rec Recorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ClientIdentifier(r)
			res, err := l.Check(r.Context(), id, endpoint, cfg)
			if err != nil {
				logger.Error("ratelimit: check failed, allowing request",
					zap.String("endpoint", endpoint),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				logger.Warn("ratelimit: request rejected",
					zap.String("endpoint", endpoint),
					zap.String("client", id),
					zap.Time("reset", res.ResetTime),
				)
				if rec != nil {
					rec.IncrRateLimited(endpoint)
				}
				WriteLimited(w, res, l.Now())
				return
			}

			SetHeaders(w, res)
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes the X-RateLimit-* headers for res.
func SetHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.UnixMilli(), 10))
}

// RetryAfter is the whole number of seconds until reset, rounded up.
func RetryAfter(reset, now time.Time) int64 {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// WriteLimited writes the 429 response for a denied result.
func WriteLimited(w http.ResponseWriter, res Result, now time.Time) {
	retry := RetryAfter(res.ResetTime, now)

	SetHeaders(w, res)
	w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(limitedResponse{Error: "Too many requests", RetryAfter: retry})
}
