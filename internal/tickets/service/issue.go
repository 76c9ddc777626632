package tickets

import (
	"fmt"

	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/tickets/identifier"

	"github.com/google/uuid"
)

// IssueTickets mints one ticket per unit of each line item. Nothing is
// persisted here; the caller stores the batch together with the order's
// completion.
func (s *TicketService) IssueTickets(order *models.TicketOrder) ([]models.Ticket, error) {
	total := 0
	for _, item := range order.LineItems {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("order %s has a line item with quantity %d", order.OrderID, item.Quantity)
		}
		if item.Quantity > order.TicketCount-total {
			return nil, fmt.Errorf("order %s line items exceed its ticket count of %d", order.OrderID, order.TicketCount)
		}
		total += item.Quantity
	}
	if total <= 0 {
		return nil, fmt.Errorf("order %s has no tickets to issue", order.OrderID)
	}
	if total != order.TicketCount {
		return nil, fmt.Errorf("order %s line items add up to %d, expected %d", order.OrderID, total, order.TicketCount)
	}

	issuedAt := s.now()
	tickets := make([]models.Ticket, 0, total)
	for _, item := range order.LineItems {
		for i := 0; i < item.Quantity; i++ {
			id := uuid.New().String()
			number := identifier.GenerateTicketNumber()
			tickets = append(tickets, models.Ticket{
				TicketID:     id,
				OrderID:      order.OrderID,
				EventID:      order.EventID,
				TicketNumber: number,
				QRCode:       identifier.GenerateQRCode(id, number),
				OwnerName:    order.BuyerName,
				OwnerEmail:   order.BuyerEmail,
				Status:       models.TicketValid,
				TierName:     item.TierName,
				Price:        item.UnitPrice,
				IssuedAt:     issuedAt,
			})
		}
	}

	s.logger.LogOrder("ISSUE", order.OrderID, fmt.Sprintf("minted %d tickets", len(tickets)))
	return tickets, nil
}
