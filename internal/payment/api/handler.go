package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-songrequest/internal/payment"
	"ms-songrequest/internal/utils"
)

type Handler struct {
	Payments *payment.Service
}

// CreateCheckout opens a Stripe Checkout session for a support donation
// and returns the redirect URL.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req payment.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sess, err := h.Payments.CreateCheckoutSession(req)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Could not create checkout session", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Checkout session created", sess))
}

// HandleWebhook receives Stripe's signed event notifications.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.Payments.HandleWebhook(r); err != nil {
		var whErr *payment.WebhookError
		if errors.As(err, &whErr) {
			http.Error(w, whErr.PublicError, whErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
