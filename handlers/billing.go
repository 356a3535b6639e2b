package handlers

import (
	"errors"
	"io"
	"net/http"

	"ledgerly/backend/services"
)

// maxWebhookBody bounds the webhook payload.
const maxWebhookBody = 65536

// BillingWebhook verifies and applies a payment processor event. Anything other than
// a signature failure answers 200; processing failures are queued for retry.
func (h *Handlers) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	// Read the raw body, the signature covers the exact bytes
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	err = h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, services.ErrInvalidSignature) {
		h.logger.Warn("Rejected billing webhook", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}
	// Processing failures are already dead-lettered, so acknowledge anyway
	if err != nil {
		h.logger.Error("Billing webhook failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// CreateCheckout opens a subscription checkout for the caller and returns its URL.
func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	profile, err := h.profiles.Get(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	url, err := h.billing.CreateCheckoutSession(r.Context(), profile)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
