package handler

import (
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Materials: /v1/materials, /v1/catalog
// ============================================================

func listMaterialsHandler(svc *service.MaterialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/materials")
		defer span.End()

		user := UserFromContext(ctx)
		items, err := svc.List(ctx, user.ID, r.URL.Query().Get("trade"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func createMaterialHandler(svc *service.MaterialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/materials")
		defer span.End()

		var in domain.MaterialInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		m, err := svc.Create(ctx, user.ID, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func updateMaterialHandler(svc *service.MaterialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/materials/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("material.id", id))

		var upd domain.MaterialUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		m, err := svc.Update(ctx, user.ID, id, &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func deleteMaterialHandler(svc *service.MaterialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/materials/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("material.id", id))

		user := UserFromContext(ctx)
		if err := svc.Delete(ctx, user.ID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true, ID: id})
	}
}

func catalogHandler(svc *service.MaterialService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/catalog")
		defer span.End()

		q := r.URL.Query()
		items, err := svc.Catalog(q.Get("trade"), q.Get("search"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}
