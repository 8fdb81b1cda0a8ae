package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/ratelimit"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const userKey contextKey = "user"

// authFailuresEndpoint buckets failed token validations per caller.
const authFailuresEndpoint = "auth"

// AuthMiddleware validates Bearer tokens and injects the user into the
// request context. Failed validations count against the auth tier; once it
// is exhausted the caller gets 429 instead of 401.
func AuthMiddleware(authSvc *service.AuthService, limiter *ratelimit.Limiter, tier ratelimit.Config, rec ratelimit.Recorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, reason := authenticate(authSvc, r)
			if user == nil {
				logger.Warn("auth: rejected",
					zap.String("reason", reason),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				if limiter != nil {
					res, err := limiter.Check(r.Context(), ratelimit.ClientIdentifier(r), authFailuresEndpoint, tier)
					if err != nil {
						logger.Error("auth: failure counter unavailable", zap.Error(err))
					} else if !res.Allowed {
						if rec != nil {
							rec.IncrRateLimited(authFailuresEndpoint)
						}
						ratelimit.WriteLimited(w, res, limiter.Now())
						return
					}
				}
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(authSvc *service.AuthService, r *http.Request) (*domain.User, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "missing token"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, "invalid token format"
	}
	if authSvc == nil {
		return nil, "auth not configured"
	}
	user, err := authSvc.ValidateAccessToken(strings.TrimSpace(token))
	if err != nil {
		return nil, "invalid or expired token"
	}
	return user, ""
}

// UserFromContext returns the authenticated user set by AuthMiddleware.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey).(*domain.User)
	return u
}
