package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrWebhookSignature = errors.New("webhook signature verification failed")
	ErrWebhookPayload   = errors.New("invalid webhook payload")
)

type WebhookEventKind string

const (
	WebhookAuthorized WebhookEventKind = "authorized"
	WebhookFailed     WebhookEventKind = "failed"
	WebhookCanceled   WebhookEventKind = "canceled"
	WebhookIgnored    WebhookEventKind = "ignored"
)

type WebhookEvent struct {
	Kind      WebhookEventKind
	Type      string
	OrderID   string
	Reference string
	Message   string
}

// ParseWebhook verifies a Stripe webhook and reduces it to the payment
// intent transitions the order pipeline reacts to.
func ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	out := &WebhookEvent{Type: string(event.Type), Kind: WebhookIgnored}

	switch event.Type {
	case stripe.EventTypePaymentIntentAmountCapturableUpdated:
		out.Kind = WebhookAuthorized
	case stripe.EventTypePaymentIntentPaymentFailed:
		out.Kind = WebhookFailed
	case stripe.EventTypePaymentIntentCanceled:
		out.Kind = WebhookCanceled
	default:
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}

	orderID, ok := pi.Metadata["order_id"]
	if !ok || orderID == "" {
		return nil, fmt.Errorf("%w: payment intent %s has no order_id", ErrWebhookPayload, pi.ID)
	}

	out.OrderID = orderID
	out.Reference = pi.ID
	if pi.LastPaymentError != nil {
		out.Message = pi.LastPaymentError.Msg
	}
	return out, nil
}
