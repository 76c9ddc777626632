package order_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gameday-ticketing/internal/payment"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBytes = 64 << 10

type captureRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// CaptureOrder is called by the checkout page once the buyer has confirmed
// their card. The body must carry the intent the card was confirmed against.
func (h *Handler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req captureRequest
	if err := utils.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	// Only the signed webhook may capture without naming the intent.
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		utils.WriteError(w, http.StatusBadRequest, "payment_intent_id is required", "")
		return
	}

	result, err := h.OrderService.CaptureOrder(r.Context(), orderID, req.PaymentIntentID)
	if err != nil {
		h.writeOrderError(w, "CaptureOrder", "Payment could not be completed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Payment complete, %d tickets issued", len(result.Tickets)), result)
}

// StripeWebhook handles webhook events from Stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.WebhookSecret == "" {
		h.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		utils.WriteError(w, http.StatusInternalServerError, "Webhook processing error", "")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid webhook payload", "")
		return
	}

	evt, err := payment.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		if errors.Is(err, payment.ErrWebhookSignature) {
			h.Logger.LogSecurity("WEBHOOK_SIGNATURE", err.Error())
		} else {
			h.Logger.Warn("WEBHOOK", err.Error())
		}
		utils.WriteError(w, http.StatusBadRequest, "Invalid webhook", "")
		return
	}

	if evt.Kind == payment.WebhookIgnored {
		h.Logger.Debug("WEBHOOK", "Ignoring "+evt.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.Logger.LogPayment("WEBHOOK_"+string(evt.Kind), evt.OrderID, evt.Type)
	if err := h.OrderService.HandlePaymentWebhook(r.Context(), evt); err != nil {
		// Non-2xx makes Stripe redeliver.
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to handle %s for order %s: %v", evt.Type, evt.OrderID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Webhook processing error", "")
		return
	}
	w.WriteHeader(http.StatusOK)
}
