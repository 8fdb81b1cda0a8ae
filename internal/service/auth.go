// Package service holds the application use cases. Services depend only on
// ports and never on a concrete backend.
package service

import (
	"fmt"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SupabaseAudience is the aud claim of tokens issued to signed-in users.
const SupabaseAudience = "authenticated"

// JWTClaims are the claims of a Supabase access token that we use.
type JWTClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService validates access tokens issued by Supabase Auth.
type AuthService struct {
	jwtSecret []byte
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// ValidateAccessToken checks signature, audience and expiry and returns
// the user the token was issued to.
func (s *AuthService) ValidateAccessToken(tokenString string) (*domain.User, error) {
	if len(s.jwtSecret) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "Unauthorized"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithAudience(SupabaseAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		s.logger.Debug("auth: token rejected", zap.Error(err))
		return nil, &domain.ErrUnauthorized{Message: "Unauthorized"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Unauthorized"}
	}

	return &domain.User{ID: claims.Subject, Email: claims.Email}, nil
}
