package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gameday-ticketing/internal/models"
)

var ErrNotifierUnavailable = errors.New("ticket delivery is not configured")

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.TicketOrder, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

// GetOrderTickets returns the tickets of a completed order. Pending and
// failed orders have none.
func (s *OrderService) GetOrderTickets(ctx context.Context, orderID string) ([]models.Ticket, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.PaymentCompleted {
		return []models.Ticket{}, nil
	}
	return s.Tickets.GetTicketsByOrder(ctx, orderID)
}

// SendTickets emails a completed order's tickets through the notification
// service and records it on the order. Already-sent orders are skipped
// unless force is set.
func (s *OrderService) SendTickets(ctx context.Context, orderID string, force bool) error {
	if s.Notifier == nil {
		return ErrNotifierUnavailable
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus != models.PaymentCompleted {
		return newOrderError(ErrOrderNotPending, http.StatusConflict, "Order is not completed",
			fmt.Sprintf("cannot send tickets for %s order %s", order.PaymentStatus, orderID), nil)
	}
	if order.EmailSent && !force {
		s.logger.LogOrder("DELIVERY_SKIPPED", orderID, "tickets already sent")
		return nil
	}

	tickets, err := s.Tickets.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load tickets for order %s: %w", orderID, err)
	}

	delivery := models.TicketDelivery{
		OrderID:    order.OrderID,
		EventID:    order.EventID,
		BuyerName:  order.BuyerName,
		BuyerEmail: order.BuyerEmail,
		GrandTotal: order.GrandTotal,
		Currency:   order.Currency,
		Tickets:    tickets,
	}
	if cfg, err := s.Configs.GetConfig(ctx, order.EventID); err == nil {
		delivery.EventName = cfg.EventName
		delivery.Venue = cfg.Venue
		delivery.EventDate = cfg.EventDate
	}

	if err := s.Notifier.SendTickets(ctx, delivery); err != nil {
		s.logger.Error("DELIVERY", fmt.Sprintf("Failed to send tickets for order %s: %v", orderID, err))
		return fmt.Errorf("failed to send tickets for order %s: %w", orderID, err)
	}

	if err := s.DB.MarkEmailSent(ctx, orderID); err != nil {
		return fmt.Errorf("tickets sent but failed to record delivery for order %s: %w", orderID, err)
	}
	s.logger.LogOrder("DELIVERED", orderID, fmt.Sprintf("%d tickets sent to %s", len(tickets), order.BuyerEmail))
	return nil
}
