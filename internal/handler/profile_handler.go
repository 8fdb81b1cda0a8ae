package handler

import (
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Profile: /v1/profile
// ============================================================

func getProfileHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profile")
		defer span.End()

		user := UserFromContext(ctx)
		p, err := svc.Get(ctx, user.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func updateProfileHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/profile")
		defer span.End()

		var upd domain.ProfileUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		p, err := svc.Update(ctx, user.ID, &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
