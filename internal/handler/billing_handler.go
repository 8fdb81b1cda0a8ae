package handler

import (
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Billing: /v1/billing
// ============================================================

func plansHandler(svc *service.BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Plans())
	}
}

func checkoutHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/billing/checkout")
		defer span.End()

		var req domain.CheckoutRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := svc.Checkout(ctx, UserFromContext(ctx), req.Plan)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func portalHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/billing/portal")
		defer span.End()

		resp, err := svc.Portal(ctx, UserFromContext(ctx).ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
