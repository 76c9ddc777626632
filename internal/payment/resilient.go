package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/metrics"

	"github.com/cenkalti/backoff/v4"
)

// Resilient bounds every gateway call with a timeout and retries transient
// failures once. Declines are returned immediately.
type Resilient struct {
	Next       Gateway
	Timeout    time.Duration
	RetryDelay time.Duration
	Retries    uint64
	Log        *logger.Logger
}

func NewResilient(next Gateway, timeout, retryDelay time.Duration, log *logger.Logger) *Resilient {
	return &Resilient{Next: next, Timeout: timeout, RetryDelay: retryDelay, Retries: 1, Log: log}
}

func (r *Resilient) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	var auth *Authorization
	err := r.do(ctx, "authorize", req.OrderID, func(ctx context.Context) error {
		a, err := r.Next.Authorize(ctx, req)
		if err != nil {
			return err
		}
		auth = a
		return nil
	})
	return auth, err
}

func (r *Resilient) Capture(ctx context.Context, reference, idempotencyKey string) (string, error) {
	var transactionID string
	err := r.do(ctx, "capture", reference, func(ctx context.Context) error {
		id, err := r.Next.Capture(ctx, reference, idempotencyKey)
		if err != nil {
			return err
		}
		transactionID = id
		return nil
	})
	return transactionID, err
}

func (r *Resilient) Cancel(ctx context.Context, reference string) error {
	return r.do(ctx, "cancel", reference, func(ctx context.Context) error {
		return r.Next.Cancel(ctx, reference)
	})
}

func (r *Resilient) do(ctx context.Context, op, ref string, call func(context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		callCtx := ctx
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}

		started := time.Now()
		err := call(callCtx)
		metrics.PaymentCall(op, started, err)
		if err == nil {
			return nil
		}
		if IsDeclined(err) {
			return backoff.Permanent(err)
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %s timed out after %s", ErrGatewayUnavailable, op, r.Timeout)
		}
		if r.Log != nil {
			r.Log.Warn("PAYMENT", fmt.Sprintf("%s %s attempt %d failed: %v", op, ref, attempt, err))
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.RetryDelay), r.Retries), ctx)
	return backoff.Retry(operation, b)
}
