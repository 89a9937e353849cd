package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/mdwarren/curlshop/internal/model"
	"github.com/mdwarren/curlshop/internal/portal"
	"github.com/mdwarren/curlshop/internal/reconcile"
)

type OrderHandler struct {
	reconciler *reconcile.Reconciler
	portal     *portal.Service
	logger     *slog.Logger
}

func NewOrderHandler(reconciler *reconcile.Reconciler, portal *portal.Service, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{reconciler: reconciler, portal: portal, logger: logger}
}

type orderView struct {
	ID                 string     `json:"id"`
	ProductType        string     `json:"productType"`
	AmountCents        int64      `json:"amountCents"`
	PurchaseDate       *time.Time `json:"purchaseDate,omitempty"`
	DownloadToken      string     `json:"downloadToken,omitempty"`
	DownloadExpiry     *time.Time `json:"downloadExpiry,omitempty"`
	DownloadsRemaining int        `json:"downloadsRemaining"`
}

func newOrderView(order model.Order, token *model.DownloadToken) orderView {
	view := orderView{
		ID:           order.Reference,
		ProductType:  order.ProductType,
		AmountCents:  order.AmountCents,
		PurchaseDate: order.CompletedAt,
	}
	if token != nil {
		view.DownloadToken = token.Token
		view.DownloadExpiry = &token.ExpiresAt
		view.DownloadsRemaining = token.Remaining()
	}
	return view
}

// Confirm is the success-page poll: it checks the payment status with
// the provider and, when paid, completes the order before responding.
// GET /api/order?session_id=...
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "Missing session_id")
		return
	}

	order, status, err := h.reconciler.ConfirmSession(sessionID)
	if err != nil {
		h.logger.Error("confirm session", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to look up order")
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if !status.Paid {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":       false,
			"paymentStatus": status.PaymentStatus,
		})
		return
	}

	token, err := h.reconciler.ActiveToken(order.ID)
	if err != nil {
		h.logger.Error("load download token", "order_id", order.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to look up order")
		return
	}

	resp := map[string]any{
		"success": true,
		"order":   newOrderView(*order, nil),
	}
	if token != nil {
		resp["downloadToken"] = token.Token
		resp["downloadExpiry"] = token.ExpiresAt
		resp["downloadsRemaining"] = token.Remaining()
	}
	respondJSON(w, http.StatusOK, resp)
}

type lookupRequest struct {
	Email string `json:"email"`
}

// Lookup returns the completed purchases for an email, each with its
// live download link state. POST /api/orders
func (h *OrderHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	found, views, err := h.portal.Lookup(req.Email)
	if err != nil {
		h.logger.Error("portal lookup", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to look up orders")
		return
	}
	if !found {
		respondJSON(w, http.StatusOK, map[string]any{
			"found":  false,
			"orders": []orderView{},
		})
		return
	}

	orders := make([]orderView, 0, len(views))
	for _, v := range views {
		orders = append(orders, newOrderView(v.Order, v.Token))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"found":  true,
		"orders": orders,
	})
}
