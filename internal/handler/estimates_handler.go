package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Estimates: /v1/estimates
// ============================================================

func listEstimatesHandler(svc *service.EstimateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/estimates")
		defer span.End()

		q, err := parseEstimateQuery(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		list, err := svc.List(ctx, user.ID, q)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func createEstimateHandler(svc *service.EstimateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/estimates")
		defer span.End()

		var req domain.CreateEstimateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		estimate, err := svc.Create(ctx, user.ID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("estimate.id", estimate.ID))
		writeJSON(w, http.StatusCreated, estimate)
	}
}

func getEstimateHandler(svc *service.EstimateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/estimates/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("estimate.id", id))

		user := UserFromContext(ctx)
		estimate, err := svc.Get(ctx, user.ID, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, estimate)
	}
}

func updateEstimateHandler(svc *service.EstimateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/estimates/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("estimate.id", id))

		var upd domain.EstimateUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		estimate, err := svc.Update(ctx, user.ID, id, &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, estimate)
	}
}

func deleteEstimateHandler(svc *service.EstimateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/estimates/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("estimate.id", id))

		user := UserFromContext(ctx)
		if err := svc.Delete(ctx, user.ID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true, ID: id})
	}
}

func dashboardHandler(svc *service.EstimateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		user := UserFromContext(ctx)
		stats, err := svc.Stats(ctx, user.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// ============================================================
// PDF export: GET /v1/estimates/{id}/pdf
// ============================================================

func estimatePDFHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/estimates/{id}/pdf")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("estimate.id", id))

		user := UserFromContext(ctx)
		doc, err := svc.Export(ctx, user.ID, id)
		if err != nil {
			if isRenderFailure(err) {
				writeError(w, http.StatusInternalServerError, "Failed to generate PDF")
				return
			}
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
		w.WriteHeader(http.StatusOK)
		w.Write(doc.Body)
	}
}

func isRenderFailure(err error) bool {
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) && ext.Service == "pdf" {
		return true
	}
	var timeout *domain.ErrTimeout
	return errors.As(err, &timeout) && timeout.Operation == "pdf render"
}
