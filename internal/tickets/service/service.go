package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/tickets/identifier"
)

var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrUnsupportedPlatform = errors.New("unsupported wallet platform")
	ErrWalletUnavailable   = errors.New("wallet pass not available")
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	RedeemTicket(ctx context.Context, qrCode, eventID, scannerID string, now time.Time) (*models.TicketScan, *models.Ticket, error)
	ListScans(ctx context.Context, eventID string, limit int) ([]models.TicketScan, error)
}

// ScanBroadcaster receives every scan after it is committed.
type ScanBroadcaster interface {
	Emit(evt models.ScanEvent)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, v interface{}) error
}

type WalletProvider interface {
	PassURL(ctx context.Context, ticketID, platform string) (string, error)
}

type TicketService struct {
	DB          TicketDBLayer
	Broadcaster ScanBroadcaster
	Events      EventPublisher
	Wallet      WalletProvider
	ScanTopic   string
	Location    *time.Location

	logger *logger.Logger
	now    func() time.Time
}

func NewTicketService(db TicketDBLayer, log *logger.Logger, loc *time.Location) *TicketService {
	if loc == nil {
		loc = time.UTC
	}
	return &TicketService{
		DB:       db,
		Location: loc,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrTicketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %s: %w", ticketID, err)
	}
	return ticket, nil
}

// GetTicketByQRCode resolves a scanned token back to its ticket.
func (s *TicketService) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByQRCode(ctx, qrCode)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up qr code: %w", err)
	}
	return ticket, nil
}

func (s *TicketService) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets for order %s: %w", orderID, err)
	}
	return tickets, nil
}

// QRImage renders the ticket's QR token as a PNG.
func (s *TicketService) QRImage(ctx context.Context, ticketID string, size int) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return identifier.RenderPNG(ticket.QRCode, size)
}

// WalletPass asks the wallet collaborator for a pass URL. An empty URL with a
// nil error means the provider has no pass for this ticket.
func (s *TicketService) WalletPass(ctx context.Context, ticketID, platform string) (string, error) {
	if platform != "apple" && platform != "google" {
		return "", ErrUnsupportedPlatform
	}
	if s.Wallet == nil {
		return "", ErrWalletUnavailable
	}
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return "", err
	}

	url, err := s.Wallet.PassURL(ctx, ticketID, platform)
	if err != nil {
		s.logger.Warn("WALLET", fmt.Sprintf("Pass lookup failed for ticket %s (%s): %v", ticketID, platform, err))
		return "", fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return url, nil
}

func (s *TicketService) ListScans(ctx context.Context, eventID string, limit int) ([]models.TicketScan, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.DB.ListScans(ctx, eventID, limit)
}
