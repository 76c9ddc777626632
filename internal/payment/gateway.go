package payment

import (
	"context"
	"errors"
	"fmt"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type AuthorizationRequest struct {
	OrderID     string
	EventID     string
	BuyerEmail  string
	Description string
	Amount      int64
	Currency    string
}

type Authorization struct {
	Reference    string
	ClientSecret string
	Status       string
}

// Gateway authorizes a charge at order time and captures it once the buyer
// confirms. Idempotency keys are derived from the order id so a retried call
// never charges twice.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
	Capture(ctx context.Context, reference, idempotencyKey string) (string, error)
	Cancel(ctx context.Context, reference string) error
}

// DeclinedError is a definitive refusal from the processor. Its Message is
// safe to show the buyer and it is never retried.
type DeclinedError struct {
	Code    string
	Message string
}

func (e *DeclinedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Message)
	}
	return "payment declined: " + e.Message
}

func IsDeclined(err error) bool {
	var d *DeclinedError
	return errors.As(err, &d)
}

// PublicMessage returns text suitable for the buyer.
func PublicMessage(err error) string {
	var d *DeclinedError
	if errors.As(err, &d) && d.Message != "" {
		return d.Message
	}
	return "Payment could not be processed, please try again"
}

func AuthorizeKey(orderID string) string { return "authorize-" + orderID }
func CaptureKey(orderID string) string   { return "capture-" + orderID }
