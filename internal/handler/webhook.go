package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mdwarren/curlshop/internal/payment"
	"github.com/mdwarren/curlshop/internal/reconcile"
)

// maxWebhookBody bounds what we read from the payment provider; real
// events are a few KB.
const maxWebhookBody = 64 * 1024

type WebhookHandler struct {
	payments   *payment.Client
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(payments *payment.Client, reconciler *reconcile.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{payments: payments, reconciler: reconciler, logger: logger}
}

// Handle verifies the event signature and hands the event to the
// reconciler. Returning non-2xx makes the provider redeliver, so only
// store failures (worth retrying) get a 500.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	event, err := h.payments.ConstructWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		respondError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	if err := h.reconciler.HandleEvent(event); err != nil {
		h.logger.Error("handle webhook event", "event_id", event.ID, "type", event.Type, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
