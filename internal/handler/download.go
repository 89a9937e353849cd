package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mdwarren/curlshop/internal/catalog"
	"github.com/mdwarren/curlshop/internal/store"
)

type DownloadHandler struct {
	tokens        *store.TokenStore
	orders        *store.OrderStore
	filesDir      string
	tokenTTL      time.Duration
	maxExtensions int
	logger        *slog.Logger
}

func NewDownloadHandler(tokens *store.TokenStore, orders *store.OrderStore, filesDir string, tokenTTL time.Duration, maxExtensions int, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		tokens:        tokens,
		orders:        orders,
		filesDir:      filesDir,
		tokenTTL:      tokenTTL,
		maxExtensions: maxExtensions,
		logger:        logger,
	}
}

// Serve redeems a token and streams the file. Redemption is a single
// conditional update, so concurrent requests on the last remaining
// download cannot both succeed. GET /api/download?token=...&format=...
func (h *DownloadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.URL.Query().Get("token")
	if tokenValue == "" {
		respondError(w, http.StatusBadRequest, "Missing token")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = catalog.DefaultFormat
	}

	token, err := h.tokens.Redeem(tokenValue)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTokenNotFound):
			respondError(w, http.StatusNotFound, "Download link not found")
		case errors.Is(err, store.ErrTokenExpired):
			respondJSON(w, http.StatusForbidden, map[string]any{
				"error":   "This download link has expired",
				"expired": true,
			})
		case errors.Is(err, store.ErrDownloadLimit):
			respondJSON(w, http.StatusForbidden, map[string]any{
				"error":        "Download limit reached for this link",
				"limitReached": true,
			})
		default:
			h.logger.Error("redeem token", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to process download")
		}
		return
	}

	order, err := h.orders.GetByID(token.OrderID)
	if err != nil || order == nil {
		h.logger.Error("load order for token", "order_id", token.OrderID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to process download")
		return
	}
	product, err := catalog.ByType(order.ProductType)
	if err != nil {
		h.logger.Error("product lookup", "product_type", order.ProductType, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to process download")
		return
	}
	filename, ok := product.Files[format]
	if !ok {
		respondError(w, http.StatusBadRequest, "Unknown format")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, filepath.Join(h.filesDir, filename))
}

type extendRequest struct {
	Token string `json:"token"`
}

// Extend pushes a token's expiry out by one TTL window. A capped
// number of extensions is allowed per token; the download count is
// left untouched. POST /api/download/extend
func (h *DownloadHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "Missing token")
		return
	}

	token, err := h.tokens.Extend(req.Token, h.tokenTTL, h.maxExtensions)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTokenNotFound):
			respondError(w, http.StatusNotFound, "Download link not found")
		case errors.Is(err, store.ErrExtendLimit):
			respondError(w, http.StatusForbidden, "This link cannot be extended again")
		default:
			h.logger.Error("extend token", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to extend download link")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":              token.Token,
		"downloadExpiry":     token.ExpiresAt,
		"downloadsRemaining": token.Remaining(),
	})
}
