package storefront

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foliopress/folio/pkg/logger"
	"github.com/foliopress/folio/pkg/subscription"
)

// maxWebhookBody bounds the raw webhook payload read into memory.
const maxWebhookBody = 1 << 20 // 1 MiB

type checkoutRequest struct {
	TierID          uuid.UUID   `json:"tier_id"`
	Interval        string      `json:"interval"`
	AddonProductIDs []uuid.UUID `json:"addon_product_ids"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	SuccessURL      string      `json:"success_url"`
	CancelURL       string      `json:"cancel_url"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func (h *handlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	session, err := h.svc.CreateCheckoutSession(r.Context(), subscription.CheckoutParams{
		TierID:          req.TierID,
		Interval:        subscription.BillingInterval(req.Interval),
		AddonProductIDs: req.AddonProductIDs,
		CustomerEmail:   req.CustomerEmail,
		SuccessURL:      req.SuccessURL,
		CancelURL:       req.CancelURL,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		SessionID: session.SessionID,
		URL:       session.URL,
	})
}

// receiveWebhook verifies the raw payload signature, then hands the
// normalized event to the core. An unsupported event type is acknowledged
// with 200 so the gateway stops redelivering it.
func (h *handlers) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unreadable payload")
		return
	}

	ev, err := h.webhooks.ParseWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, subscription.ErrUnsupportedEvent) {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.log.WarnContext(r.Context(), "webhook rejected",
			logger.Component("storefront"), logger.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_signature", "webhook verification failed")
		return
	}

	if err := h.svc.HandleEvent(r.Context(), *ev); err != nil {
		// A 5xx makes the gateway redeliver; processing is idempotent, so a
		// retry is the right recovery for transient failures. Partial
		// operations are logged loudly first: redelivery will not repair them.
		if pe, ok := subscription.AsPartialError(err); ok {
			h.log.ErrorContext(r.Context(), "partial webhook projection",
				logger.Component("storefront"),
				logger.EventID(ev.ID),
				logger.Error(pe),
			)
		}
		writeError(w, http.StatusInternalServerError, "processing_failed", "event processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Reactivate(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeTierRequest struct {
	TierID          uuid.UUID   `json:"tier_id"`
	Interval        string      `json:"interval"`
	AddonProductIDs []uuid.UUID `json:"addon_product_ids"`
}

func (h *handlers) changeTier(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionIDParam(w, r)
	if !ok {
		return
	}

	var req changeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := h.svc.ChangeTier(r.Context(), id, subscription.ChangeTierParams{
		TierID:          req.TierID,
		Interval:        subscription.BillingInterval(req.Interval),
		AddonProductIDs: req.AddonProductIDs,
	}); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addonSelectionResponse struct {
	AddonProductIDs []uuid.UUID `json:"addon_product_ids"`
}

func (h *handlers) listAddons(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionIDParam(w, r)
	if !ok {
		return
	}

	ids, err := h.svc.ListAddons(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, addonSelectionResponse{AddonProductIDs: ids})
}

type swapAddonsRequest struct {
	AddonProductIDs []uuid.UUID `json:"addon_product_ids"`
}

func (h *handlers) swapAddons(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionIDParam(w, r)
	if !ok {
		return
	}

	var req swapAddonsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := h.svc.SwapAddons(r.Context(), id, req.AddonProductIDs); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.check(r.Context()); err != nil {
			h.log.ErrorContext(r.Context(), "healthcheck failed",
				logger.Component("storefront"),
				logger.Error(err),
			)
			writeError(w, http.StatusServiceUnavailable, "unhealthy", c.name+" unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func subscriptionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed subscription id")
		return uuid.Nil, false
	}
	return id, true
}
