package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/metrics"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/payment"

	"github.com/google/uuid"
)

const expiredReason = "Payment not completed in time"

// FailOrder abandons a pending order and releases its seats. It reports
// false when the order had already completed or failed.
func (s *OrderService) FailOrder(ctx context.Context, orderID, reason string) (bool, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return false, orderNotFound(orderID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	failed, err := s.DB.FailOrder(ctx, orderID, reason, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to fail order %s: %w", orderID, err)
	}
	if failed {
		s.logger.LogOrder("FAIL", orderID, reason)
		s.publishFailed(ctx, order, reason)
	}
	return failed, nil
}

// ExpireStalePendingOrders fails pending orders older than ttl, releasing
// their seats and cancelling their authorizations. Orders whose capture is
// running right now are skipped and picked up on a later sweep.
func (s *OrderService) ExpireStalePendingOrders(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		ttl = s.Settings.PendingOrderTTL
	}
	stale, err := s.DB.ListStalePendingOrders(ctx, s.now().Add(-ttl), s.Settings.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale orders: %w", err)
	}

	expired := 0
	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.expire(ctx, &stale[i])
		if err != nil {
			s.logger.Error("SWEEP", fmt.Sprintf("Failed to expire order %s: %v", stale[i].OrderID, err))
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		metrics.OrdersExpired(expired)
		s.logger.Info("SWEEP", fmt.Sprintf("Expired %d of %d stale pending orders", expired, len(stale)))
	}
	return expired, nil
}

func (s *OrderService) expire(ctx context.Context, order *models.TicketOrder) (bool, error) {
	token := uuid.New().String()
	locked, err := s.Locks.LockCapture(ctx, order.OrderID, token)
	if err != nil {
		return false, err
	}
	if !locked {
		return false, nil
	}
	defer func() {
		if err := s.Locks.UnlockCapture(context.Background(), order.OrderID, token); err != nil {
			s.logger.Warn("REDIS", fmt.Sprintf("Failed to release capture lock for order %s: %v", order.OrderID, err))
		}
	}()

	failed, err := s.DB.FailOrder(ctx, order.OrderID, expiredReason, s.now())
	if err != nil || !failed {
		return false, err
	}

	s.logger.LogOrder("EXPIRE", order.OrderID, fmt.Sprintf("released %d held tickets", order.TicketCount))
	s.publishFailed(ctx, order, expiredReason)

	if order.PaymentIntentID != "" {
		if err := s.Payments.Cancel(ctx, order.PaymentIntentID); err != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to cancel authorization %s for expired order %s: %v", order.PaymentIntentID, order.OrderID, err))
		}
	}
	return true, nil
}

// RunSweeper expires stale orders every interval until ctx is done.
func (s *OrderService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("SWEEP", fmt.Sprintf("Pending order sweeper running every %s (ttl %s)", interval, s.Settings.PendingOrderTTL))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SWEEP", "Pending order sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.ExpireStalePendingOrders(ctx, s.Settings.PendingOrderTTL); err != nil {
				s.logger.Error("SWEEP", err.Error())
			}
		}
	}
}

// HandlePaymentWebhook reacts to processor-side transitions. An authorized
// intent is captured server side so the order completes even if the buyer's
// client never calls back.
func (s *OrderService) HandlePaymentWebhook(ctx context.Context, evt *payment.WebhookEvent) error {
	switch evt.Kind {
	case payment.WebhookAuthorized:
		_, err := s.CaptureOrder(ctx, evt.OrderID, evt.Reference)
		if errors.Is(err, ErrCaptureInProgress) || errors.Is(err, ErrOrderNotPending) {
			return nil
		}
		return err
	case payment.WebhookCanceled:
		_, err := s.FailOrder(ctx, evt.OrderID, "Payment was cancelled")
		if errors.Is(err, ErrOrderNotFound) {
			return nil
		}
		return err
	case payment.WebhookFailed:
		// The intent can still be confirmed with another card; the sweeper
		// releases the seats if it never is.
		s.logger.LogPayment("CARD_DECLINED", evt.OrderID, evt.Message)
		return nil
	default:
		return nil
	}
}
