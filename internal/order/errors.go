package order

import (
	"errors"
	"net/http"
)

// Kinds of order failure, matchable with errors.Is against an *OrderError.
var (
	ErrInvalidRequest           = errors.New("invalid order request")
	ErrEventNotConfigured       = errors.New("ticketing not configured for event")
	ErrSalesDisabled            = errors.New("ticket sales disabled")
	ErrSalesNotOpen             = errors.New("ticket sales window closed")
	ErrQuantityExceedsLimit     = errors.New("quantity exceeds per-order limit")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrPaymentFailed            = errors.New("payment failed")
	ErrOrderNotFound            = errors.New("order not found")
	ErrCaptureInProgress        = errors.New("capture already in progress")
	ErrOrderNotPending          = errors.New("order is not pending")
	ErrPaymentReferenceMismatch = errors.New("payment reference mismatch")
)

// OrderError carries a client-safe message next to the detail that only
// goes to the logs.
type OrderError struct {
	Kind          error
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string
	OriginalErr   error
}

func (e *OrderError) Error() string {
	if e.InternalError != "" {
		return e.InternalError
	}
	return e.PublicError
}

func (e *OrderError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *OrderError) Unwrap() error {
	return e.OriginalErr
}

func newOrderError(kind error, status int, public, internal string, cause error) *OrderError {
	if internal == "" {
		internal = public
	}
	return &OrderError{
		Kind:          kind,
		StatusCode:    status,
		PublicError:   public,
		InternalError: internal,
		OriginalErr:   cause,
	}
}

func invalidRequest(public string, cause error) *OrderError {
	return newOrderError(ErrInvalidRequest, http.StatusBadRequest, public, "", cause)
}

func orderNotFound(orderID string) *OrderError {
	return newOrderError(ErrOrderNotFound, http.StatusNotFound, "Order not found", "order "+orderID+" not found", nil)
}

// StatusCode maps any error returned by OrderService to an HTTP status.
func StatusCode(err error) int {
	var oe *OrderError
	if errors.As(err, &oe) && oe.StatusCode != 0 {
		return oe.StatusCode
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-safe text for err.
func PublicMessage(err error) string {
	var oe *OrderError
	if errors.As(err, &oe) && oe.PublicError != "" {
		return oe.PublicError
	}
	return "Internal server error"
}
