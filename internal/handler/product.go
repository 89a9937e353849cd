package handler

import (
	"net/http"

	"github.com/mdwarren/curlshop/internal/catalog"
)

type ProductHandler struct{}

func NewProductHandler() *ProductHandler {
	return &ProductHandler{}
}

// List returns the purchasable catalog. GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"products": catalog.All()})
}
