package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/mdwarren/curlshop/internal/catalog"
	"github.com/mdwarren/curlshop/internal/payment"
	"github.com/mdwarren/curlshop/internal/store"
)

type CheckoutHandler struct {
	payments  *payment.Client
	customers *store.CustomerStore
	orders    *store.OrderStore
	logger    *slog.Logger
}

func NewCheckoutHandler(payments *payment.Client, customers *store.CustomerStore, orders *store.OrderStore, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		payments:  payments,
		customers: customers,
		orders:    orders,
		logger:    logger,
	}
}

type checkoutRequest struct {
	ProductID string `json:"productId"`
	Email     string `json:"email"`
	Coupon    string `json:"coupon"`
}

type checkoutResponse struct {
	SessionID   string `json:"sessionId"`
	URL         string `json:"url"`
	AmountCents int64  `json:"amountCents"`
}

// Create starts a checkout: it creates the provider session, then
// records the pending order against it.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	product, err := catalog.Get(req.ProductID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown product")
		return
	}

	intent, err := h.payments.CreateCheckoutSession(req.Email, product, req.Coupon)
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			respondError(w, http.StatusServiceUnavailable, "Checkout is not available right now")
			return
		}
		h.logger.Error("create checkout session", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to start checkout")
		return
	}

	customer, err := h.customers.GetOrCreate(req.Email, "")
	if err != nil {
		h.logger.Error("create customer", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to start checkout")
		return
	}
	if _, err := h.orders.Create(store.CreateParams{
		CustomerID:  customer.ID,
		SessionID:   intent.SessionID,
		ProductType: product.Type,
		AmountCents: intent.AmountCents,
		Currency:    product.Currency,
		Coupon:      req.Coupon,
	}); err != nil {
		h.logger.Error("create order", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to start checkout")
		return
	}

	respondJSON(w, http.StatusOK, checkoutResponse{
		SessionID:   intent.SessionID,
		URL:         intent.URL,
		AmountCents: intent.AmountCents,
	})
}
