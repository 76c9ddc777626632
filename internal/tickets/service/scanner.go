package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gameday-ticketing/internal/metrics"
	"gameday-ticketing/internal/models"
)

var ErrInvalidScanRequest = errors.New("qr code and event are required")

type ScanResponse struct {
	Result  models.ScanResult `json:"result"`
	Message string            `json:"message"`
	Ticket  *models.Ticket    `json:"ticket,omitempty"`
	ScanID  string            `json:"scan_id"`
}

// ScanTicket validates a code presented at eventID's gate and, when valid,
// admits it. Outcomes are results, not errors; an error means the scan could
// not be recorded at all.
func (s *TicketService) ScanTicket(ctx context.Context, qrCode, eventID, scannerID string) (*ScanResponse, error) {
	qrCode = strings.TrimSpace(qrCode)
	if qrCode == "" || eventID == "" {
		return nil, ErrInvalidScanRequest
	}

	scan, ticket, err := s.DB.RedeemTicket(ctx, qrCode, eventID, scannerID, s.now())
	if err != nil {
		s.logger.Error("SCAN", fmt.Sprintf("Scan at %s failed: %v", eventID, err))
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}

	resp := &ScanResponse{
		Result:  scan.Result,
		Message: s.scanMessage(scan.Result, ticket, eventID),
		ScanID:  scan.ScanID,
	}
	if ticket != nil && ticket.EventID == eventID {
		resp.Ticket = ticket
	}

	metrics.Scan(string(scan.Result))
	s.logger.LogScan(string(scan.Result), eventID, fmt.Sprintf("scanner=%s ticket=%s", scannerID, scan.TicketNumber))
	s.announce(ctx, scan, resp.Message)

	return resp, nil
}

func (s *TicketService) scanMessage(result models.ScanResult, ticket *models.Ticket, eventID string) string {
	switch result {
	case models.ScanValid:
		if ticket.OwnerName != "" {
			return fmt.Sprintf("Welcome, %s", ticket.OwnerName)
		}
		return "Ticket admitted"
	case models.ScanAlreadyUsed:
		return "Already used at " + ticket.UsedAt.In(s.Location).Format("3:04 PM")
	case models.ScanExpired:
		return "Ticket is no longer valid"
	default:
		if ticket != nil && ticket.EventID != eventID {
			return "Ticket is for a different event"
		}
		return "Ticket not found"
	}
}

func (s *TicketService) announce(ctx context.Context, scan *models.TicketScan, message string) {
	evt := models.ScanEvent{
		ScanID:       scan.ScanID,
		EventID:      scan.EventID,
		TicketID:     scan.TicketID,
		TicketNumber: scan.TicketNumber,
		OwnerName:    scan.OwnerName,
		Result:       scan.Result,
		Message:      message,
		ScannedBy:    scan.ScannedBy,
		ScannedAt:    scan.ScannedAt,
	}

	if s.Broadcaster != nil {
		s.Broadcaster.Emit(evt)
	}
	if s.Events != nil && s.ScanTopic != "" {
		if err := s.Events.PublishJSON(ctx, s.ScanTopic, scan.EventID, evt); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish scan %s: %v", scan.ScanID, err))
		}
	}
}
