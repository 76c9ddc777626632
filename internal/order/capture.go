package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gameday-ticketing/internal/metrics"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/payment"

	"github.com/google/uuid"
)

type CaptureResult struct {
	Order         *models.TicketOrder `json:"order"`
	TransactionID string              `json:"transaction_id"`
	Tickets       []models.Ticket     `json:"tickets"`
}

// CaptureOrder charges an authorized order and issues its tickets. Calling it
// again for a completed order returns the same tickets without touching the
// processor or the counters.
func (s *OrderService) CaptureOrder(ctx context.Context, orderID, paymentRef string) (*CaptureResult, error) {
	token := uuid.New().String()
	locked, err := s.Locks.LockCapture(ctx, orderID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %s for capture: %w", orderID, err)
	}
	if !locked {
		metrics.Capture("in_progress")
		return nil, newOrderError(ErrCaptureInProgress, http.StatusConflict, "Payment capture already in progress", "", nil)
	}
	defer func() {
		if err := s.Locks.UnlockCapture(context.Background(), orderID, token); err != nil {
			s.logger.Warn("REDIS", fmt.Sprintf("Failed to release capture lock for order %s: %v", orderID, err))
		}
	}()

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	switch order.PaymentStatus {
	case models.PaymentCompleted:
		metrics.Capture("already_completed")
		return s.completedResult(ctx, order)
	case models.PaymentFailed:
		metrics.Capture("rejected")
		public := "Order can no longer be paid"
		if order.FailureReason != "" {
			public = order.FailureReason
		}
		return nil, newOrderError(ErrOrderNotPending, http.StatusConflict, public, "capture on failed order "+orderID, nil)
	}

	if order.PaymentIntentID != "" && paymentRef != order.PaymentIntentID {
		metrics.Capture("rejected")
		s.logger.LogSecurity("REFERENCE_MISMATCH", fmt.Sprintf("order %s captured with foreign reference %s", orderID, paymentRef))
		return nil, newOrderError(ErrPaymentReferenceMismatch, http.StatusBadRequest, "Payment does not belong to this order", "", nil)
	}
	if order.PaymentIntentID == "" {
		metrics.Capture("rejected")
		return nil, newOrderError(ErrOrderNotPending, http.StatusConflict, "Order has no payment to capture", "order "+orderID+" has no authorization", nil)
	}

	transactionID, err := s.Payments.Capture(ctx, order.PaymentIntentID, payment.CaptureKey(orderID))
	if err != nil {
		// The order stays pending; the buyer may retry the capture.
		metrics.Capture("failed")
		s.logger.LogPayment("CAPTURE_FAILED", orderID, err.Error())
		return nil, newOrderError(ErrPaymentFailed, http.StatusPaymentRequired, payment.PublicMessage(err),
			fmt.Sprintf("capture for order %s failed: %v", orderID, err), err)
	}

	tickets, err := s.Tickets.IssueTickets(order)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tickets for order %s: %w", orderID, err)
	}

	now := s.now()
	err = s.DB.CompleteOrder(ctx, orderID, transactionID, tickets, now)
	if errors.Is(err, models.ErrOrderNotPending) {
		// Another completion won the guarded transition.
		current, loadErr := s.DB.GetOrderByID(ctx, orderID)
		if loadErr != nil {
			return nil, fmt.Errorf("failed to reload order %s: %w", orderID, loadErr)
		}
		if current.PaymentStatus == models.PaymentCompleted {
			metrics.Capture("already_completed")
			return s.completedResult(ctx, current)
		}
		return nil, newOrderError(ErrOrderNotPending, http.StatusConflict, "Order can no longer be paid",
			fmt.Sprintf("order %s left pending as %s during capture", orderID, current.PaymentStatus), err)
	}
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Captured order %s (tx %s) but failed to complete it: %v", orderID, transactionID, err))
		return nil, fmt.Errorf("failed to complete order %s: %w", orderID, err)
	}

	order.PaymentStatus = models.PaymentCompleted
	order.TransactionID = transactionID
	order.CompletedAt = now
	order.UpdatedAt = now

	metrics.Capture("completed")
	metrics.TicketsIssued(len(tickets))
	s.logger.LogOrder("COMPLETE", orderID, fmt.Sprintf("captured %s, issued %d tickets", transactionID, len(tickets)))
	s.publishCompleted(ctx, order)

	return &CaptureResult{Order: order, TransactionID: transactionID, Tickets: tickets}, nil
}

func (s *OrderService) completedResult(ctx context.Context, order *models.TicketOrder) (*CaptureResult, error) {
	tickets, err := s.Tickets.GetTicketsByOrder(ctx, order.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets for order %s: %w", order.OrderID, err)
	}
	return &CaptureResult{Order: order, TransactionID: order.TransactionID, Tickets: tickets}, nil
}
