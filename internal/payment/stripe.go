package payment

import (
	"context"
	"errors"
	"fmt"

	"gameday-ticketing/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway authorizes with a manual-capture PaymentIntent and captures
// it when the order is confirmed.
type StripeGateway struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

func NewStripeGateway(secretKey, currency string, backends *stripe.Backends, log *logger.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, backends)
	if sc == nil {
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized")
	return &StripeGateway{client: sc, currency: currency, log: log}, nil
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.BuyerEmail != "" {
		params.ReceiptEmail = stripe.String(req.BuyerEmail)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("event_id", req.EventID)
	params.Context = ctx
	params.SetIdempotencyKey(AuthorizeKey(req.OrderID))

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent for order %s: %v", req.OrderID, err))
		return nil, translateError(err)
	}

	g.log.LogPayment("AUTHORIZE", req.OrderID, fmt.Sprintf("payment intent %s (%s)", pi.ID, pi.Status))
	return &Authorization{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *StripeGateway) Capture(ctx context.Context, reference, idempotencyKey string) (string, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := g.client.PaymentIntents.Capture(reference, params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to capture payment intent %s: %v", reference, err))
		return "", translateError(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", &DeclinedError{Code: string(pi.Status), Message: "Payment was not completed"}
	}

	transactionID := pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		transactionID = pi.LatestCharge.ID
	}

	g.log.Info("STRIPE", fmt.Sprintf("Captured payment intent %s as %s", reference, transactionID))
	return transactionID, nil
}

func (g *StripeGateway) Cancel(ctx context.Context, reference string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := g.client.PaymentIntents.Cancel(reference, params); err != nil {
		g.log.Warn("STRIPE", fmt.Sprintf("Failed to cancel payment intent %s: %v", reference, err))
		return translateError(err)
	}
	return nil
}

// translateError turns card and request errors into DeclinedError and leaves
// transport or API failures retryable.
func translateError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
		code := string(stripeErr.Code)
		if stripeErr.DeclineCode != "" {
			code = string(stripeErr.DeclineCode)
		}
		return &DeclinedError{Code: code, Message: stripeErr.Msg}
	default:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}
