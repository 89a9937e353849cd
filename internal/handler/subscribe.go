package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/mdwarren/curlshop/internal/email"
	"github.com/mdwarren/curlshop/internal/store"
)

type SubscribeHandler struct {
	subscribers *store.SubscriberStore
	mailchimp   *email.MailchimpClient
	logger      *slog.Logger
}

func NewSubscribeHandler(subscribers *store.SubscriberStore, mailchimp *email.MailchimpClient, logger *slog.Logger) *SubscribeHandler {
	return &SubscribeHandler{subscribers: subscribers, mailchimp: mailchimp, logger: logger}
}

type subscribeRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

// Subscribe records a mailing-list signup locally, then mirrors it to
// the list provider. The provider sync is best effort; a failure there
// never fails the signup.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	sub, created, err := h.subscribers.Add(req.Email, req.Source)
	if err != nil {
		h.logger.Error("add subscriber", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}
	if !created {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Already subscribed"})
		return
	}

	if h.mailchimp.Configured() {
		if err := h.mailchimp.Subscribe(sub.Email, sub.Source); err != nil {
			h.logger.Warn("mailing list sync failed", "error", err)
		}
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":              "Check your inbox to confirm your subscription",
		"requiresConfirmation": true,
	})
}
