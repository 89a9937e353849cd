package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mdwarren/curlshop/internal/payment"
	"github.com/mdwarren/curlshop/internal/store"
)

func setupCheckout(t *testing.T) *CheckoutHandler {
	t.Helper()
	db := setupDB(t)
	payments := payment.NewClient(payment.Config{}, testLogger())
	return NewCheckoutHandler(payments, store.NewCustomerStore(db), store.NewOrderStore(db), testLogger())
}

func postCheckout(h *CheckoutHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCheckoutInvalidEmail(t *testing.T) {
	h := setupCheckout(t)
	rec := postCheckout(h, `{"productId":"ebook","email":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	h := setupCheckout(t)
	rec := postCheckout(h, `{"productId":"audiobook","email":"buyer@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown product") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCheckoutMalformedBody(t *testing.T) {
	h := setupCheckout(t)
	rec := postCheckout(h, `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCheckoutUnconfiguredStripe(t *testing.T) {
	h := setupCheckout(t)
	rec := postCheckout(h, `{"productId":"ebook","email":"buyer@example.com"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
