package storefront

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/foliopress/folio/pkg/logger"
	"github.com/foliopress/folio/pkg/subscription"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps core errors onto HTTP statuses. Business-rule
// rejections are the client's problem (422), missing resources are 404,
// contention is 409, gateway trouble is 502, and a partial operation is a
// 500 that must reach an operator through the log before anything else.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if pe, ok := subscription.AsPartialError(err); ok {
		h.log.ErrorContext(r.Context(), "partial operation",
			logger.Component("storefront"),
			logger.Error(pe),
		)
		writeError(w, http.StatusInternalServerError, "partial_operation",
			"operation partially completed; support has been notified")
		return
	}

	switch {
	case errors.Is(err, subscription.ErrTierNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, subscription.ErrInactiveTier),
		errors.Is(err, subscription.ErrAddonCountMismatch),
		errors.Is(err, subscription.ErrPriceNotFound),
		errors.Is(err, subscription.ErrNotPendingCancellation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())

	case errors.Is(err, subscription.ErrSubscriptionBusy):
		writeError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, subscription.ErrGatewayOutcomeUnknown):
		// Not the same as unavailable: the mutation may have been applied.
		// The client must not retry as if nothing happened.
		h.log.ErrorContext(r.Context(), "gateway outcome unknown",
			logger.Component("storefront"),
			logger.Error(err),
		)
		writeError(w, http.StatusBadGateway, "gateway_outcome_unknown",
			"the payment gateway did not confirm the operation; do not retry, contact support")

	case errors.Is(err, subscription.ErrGatewayUnavailable):
		h.log.ErrorContext(r.Context(), "gateway failure",
			logger.Component("storefront"),
			logger.Error(err),
		)
		writeError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway unavailable")

	default:
		h.log.ErrorContext(r.Context(), "unhandled service error",
			logger.Component("storefront"),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
