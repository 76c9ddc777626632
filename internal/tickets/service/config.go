package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
)

var (
	ErrConfigNotFound = errors.New("ticketing is not configured for this event")
	ErrInvalidConfig  = errors.New("invalid ticket configuration")
)

type ConfigDBLayer interface {
	GetConfig(ctx context.Context, eventID string) (*models.TicketConfig, error)
	UpsertConfig(ctx context.Context, cfg *models.TicketConfig) (*models.TicketConfig, error)
}

type ConfigService struct {
	DB                 ConfigDBLayer
	DefaultMaxPerOrder int

	logger *logger.Logger
	now    func() time.Time
}

func NewConfigService(db ConfigDBLayer, defaultMaxPerOrder int, log *logger.Logger) *ConfigService {
	return &ConfigService{
		DB:                 db,
		DefaultMaxPerOrder: defaultMaxPerOrder,
		logger:             log,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConfigService) GetConfig(ctx context.Context, eventID string) (*models.TicketConfig, error) {
	cfg, err := s.DB.GetConfig(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrConfigNotFound
	}
	return cfg, err
}

func (s *ConfigService) GetAvailability(ctx context.Context, eventID string) (*models.Availability, error) {
	cfg, err := s.GetConfig(ctx, eventID)
	if err != nil {
		return nil, err
	}

	maxPerOrder := cfg.MaxPerOrder
	if maxPerOrder <= 0 {
		maxPerOrder = s.DefaultMaxPerOrder
	}

	return &models.Availability{
		EventID:       cfg.EventID,
		Enabled:       cfg.Enabled,
		Price:         cfg.Price,
		TotalCapacity: cfg.TotalCapacity,
		Sold:          cfg.SoldCount,
		Reserved:      cfg.ReservedCount,
		Available:     cfg.Available(),
		MaxPerOrder:   maxPerOrder,
		SalesOpen:     cfg.Enabled && cfg.SalesWindow(s.now()) == models.SalesOpen,
	}, nil
}

// UpsertConfig saves an organizer's settings for an event.
func (s *ConfigService) UpsertConfig(ctx context.Context, cfg *models.TicketConfig) (*models.TicketConfig, error) {
	switch {
	case cfg.EventID == "":
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidConfig)
	case cfg.Price < 0:
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidConfig)
	case cfg.TotalCapacity < 0:
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidConfig)
	case cfg.MaxPerOrder < 0:
		return nil, fmt.Errorf("%w: max per order must not be negative", ErrInvalidConfig)
	case !cfg.SalesStart.IsZero() && !cfg.SalesEnd.IsZero() && !cfg.SalesEnd.After(cfg.SalesStart):
		return nil, fmt.Errorf("%w: sales must end after they start", ErrInvalidConfig)
	}

	saved, err := s.DB.UpsertConfig(ctx, cfg)
	if errors.Is(err, models.ErrCapacityExceeded) {
		return nil, fmt.Errorf("%w: capacity is below tickets already sold or held", ErrInvalidConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save ticket config: %w", err)
	}

	s.logger.Info("CONFIG", fmt.Sprintf("Ticket config saved for event %s (capacity %d, price %d)", saved.EventID, saved.TotalCapacity, saved.Price))
	return saved, nil
}
