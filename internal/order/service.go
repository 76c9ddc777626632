package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gameday-ticketing/internal/fees"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/metrics"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/payment"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.TicketOrder, error)
	CreatePendingOrder(ctx context.Context, order *models.TicketOrder) error
	CreateCompletedOrder(ctx context.Context, order *models.TicketOrder, tickets []models.Ticket) error
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	CompleteOrder(ctx context.Context, orderID, transactionID string, tickets []models.Ticket, now time.Time) error
	FailOrder(ctx context.Context, orderID, reason string, now time.Time) (bool, error)
	ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.TicketOrder, error)
	MarkEmailSent(ctx context.Context, orderID string) error
}

type ConfigReader interface {
	GetConfig(ctx context.Context, eventID string) (*models.TicketConfig, error)
}

type TicketIssuer interface {
	IssueTickets(order *models.TicketOrder) ([]models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
}

// CaptureLocker serializes capture attempts per order across instances.
type CaptureLocker interface {
	LockCapture(ctx context.Context, orderID, token string) (bool, error)
	UnlockCapture(ctx context.Context, orderID, token string) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, v interface{}) error
}

type Notifier interface {
	SendTickets(ctx context.Context, delivery models.TicketDelivery) error
}

type Settings struct {
	Currency           string
	DefaultMaxPerOrder int
	PendingOrderTTL    time.Duration
	SweepBatchSize     int
	CompletedTopic     string
	FailedTopic        string
}

type OrderService struct {
	DB       DBLayer
	Configs  ConfigReader
	Tickets  TicketIssuer
	Payments payment.Gateway
	Locks    CaptureLocker
	Fees     *fees.Calculator
	Events   EventPublisher
	Notifier Notifier
	Settings Settings

	logger   *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewOrderService(db DBLayer, configs ConfigReader, tickets TicketIssuer, payments payment.Gateway, locks CaptureLocker, calc *fees.Calculator, settings Settings, log *logger.Logger) *OrderService {
	if settings.DefaultMaxPerOrder <= 0 {
		settings.DefaultMaxPerOrder = 10
	}
	if settings.Currency == "" {
		settings.Currency = "usd"
	}
	return &OrderService{
		DB:       db,
		Configs:  configs,
		Tickets:  tickets,
		Payments: payments,
		Locks:    locks,
		Fees:     calc,
		Settings: settings,
		logger:   log,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type OrderItem struct {
	TierName string `json:"tier_name" validate:"max=100"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=1000"`
}

type CreateOrderRequest struct {
	EventID    string      `json:"event_id" validate:"required"`
	BuyerName  string      `json:"buyer_name" validate:"required,max=200"`
	BuyerEmail string      `json:"buyer_email" validate:"required,email"`
	UserID     string      `json:"-"`
	Items      []OrderItem `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResult struct {
	Order *models.TicketOrder `json:"order"`
	// Set only on the paid path; the client confirms the card with it.
	ClientSecret string `json:"client_secret,omitempty"`
	// Set only on the free path, where the order completes immediately.
	Tickets []models.Ticket `json:"tickets,omitempty"`
}

// ---------------- CREATE ----------------

// CreateOrder prices and opens an order. Free orders complete immediately;
// paid orders hold their seats and come back pending with an authorization
// for the client to confirm.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := s.validate.Struct(req); err != nil {
		metrics.OrderRejected("invalid")
		return nil, invalidRequest("Invalid order request: "+validationSummary(err), err)
	}

	cfg, err := s.Configs.GetConfig(ctx, req.EventID)
	if errors.Is(err, models.ErrNotFound) {
		metrics.OrderRejected("not_configured")
		return nil, newOrderError(ErrEventNotConfigured, http.StatusNotFound, "Tickets are not available for this event", "", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket config for %s: %w", req.EventID, err)
	}

	// The running total stops one past the limit so it can never wrap.
	limit := s.maxPerOrder(cfg)
	quantity := 0
	for _, item := range req.Items {
		quantity += item.Quantity
		if quantity > limit {
			quantity = limit + 1
			break
		}
	}
	if err := s.checkSellable(cfg, quantity); err != nil {
		return nil, err
	}

	order := s.buildOrder(req, cfg, quantity)

	if order.GrandTotal == 0 {
		return s.createFreeOrder(ctx, order)
	}
	return s.createPaidOrder(ctx, order, cfg)
}

// checkSellable runs every rejection before anything is written.
func (s *OrderService) checkSellable(cfg *models.TicketConfig, quantity int) error {
	if !cfg.Enabled {
		metrics.OrderRejected("disabled")
		return newOrderError(ErrSalesDisabled, http.StatusConflict, "Ticket sales are not enabled for this event", "", nil)
	}

	switch cfg.SalesWindow(s.now()) {
	case models.SalesNotStarted:
		metrics.OrderRejected("not_open")
		return newOrderError(ErrSalesNotOpen, http.StatusConflict, "Ticket sales have not started yet", "", nil)
	case models.SalesEnded:
		metrics.OrderRejected("not_open")
		return newOrderError(ErrSalesNotOpen, http.StatusConflict, "Ticket sales have ended", "", nil)
	}

	maxPerOrder := s.maxPerOrder(cfg)
	if quantity <= 0 || quantity > maxPerOrder {
		metrics.OrderRejected("limit")
		return newOrderError(ErrQuantityExceedsLimit, http.StatusBadRequest,
			fmt.Sprintf("Maximum %d tickets per order", maxPerOrder), "", nil)
	}

	if available := cfg.Available(); quantity > available {
		metrics.OrderRejected("sold_out")
		return insufficient(available)
	}
	return nil
}

func (s *OrderService) maxPerOrder(cfg *models.TicketConfig) int {
	if cfg.MaxPerOrder > 0 {
		return cfg.MaxPerOrder
	}
	return s.Settings.DefaultMaxPerOrder
}

func insufficient(available int) *OrderError {
	public := fmt.Sprintf("Only %d tickets remaining", available)
	if available <= 0 {
		public = "Sold out"
	}
	return newOrderError(ErrInsufficientAvailability, http.StatusConflict, public, "", nil)
}

func (s *OrderService) buildOrder(req CreateOrderRequest, cfg *models.TicketConfig, quantity int) *models.TicketOrder {
	items := make([]models.LineItem, 0, len(req.Items))
	var subtotal int64
	for _, item := range req.Items {
		tier := strings.TrimSpace(item.TierName)
		if tier == "" {
			tier = models.DefaultTierName
		}
		// Price always comes from the event's config, never the client.
		items = append(items, models.LineItem{TierName: tier, Quantity: item.Quantity, UnitPrice: cfg.Price})
		subtotal += cfg.Price * int64(item.Quantity)
	}

	quote := s.Fees.Quote(subtotal, quantity)
	now := s.now()

	return &models.TicketOrder{
		OrderID:       uuid.New().String(),
		EventID:       cfg.EventID,
		UserID:        req.UserID,
		BuyerEmail:    strings.TrimSpace(req.BuyerEmail),
		BuyerName:     strings.TrimSpace(req.BuyerName),
		LineItems:     items,
		TicketCount:   quantity,
		Subtotal:      quote.Subtotal,
		ProcessingFee: quote.ProcessingFee,
		GrandTotal:    quote.GrandTotal,
		Currency:      s.Settings.Currency,
		PaymentMethod: models.PaymentMethodCard,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *OrderService) createFreeOrder(ctx context.Context, order *models.TicketOrder) (*CreateOrderResult, error) {
	now := s.now()
	order.PaymentMethod = models.PaymentMethodFree
	order.PaymentStatus = models.PaymentCompleted
	order.CompletedAt = now

	tickets, err := s.Tickets.IssueTickets(order)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tickets for order %s: %w", order.OrderID, err)
	}

	if err := s.DB.CreateCompletedOrder(ctx, order, tickets); err != nil {
		if errors.Is(err, models.ErrCapacityExceeded) {
			metrics.OrderRejected("sold_out")
			return nil, s.capacityLost(ctx, order.EventID)
		}
		return nil, fmt.Errorf("failed to store free order: %w", err)
	}

	metrics.OrderCreated("free")
	metrics.TicketsIssued(len(tickets))
	s.logger.LogOrder("CREATE", order.OrderID, fmt.Sprintf("free order completed with %d tickets", len(tickets)))
	s.publishCompleted(ctx, order)

	return &CreateOrderResult{Order: order, Tickets: tickets}, nil
}

func (s *OrderService) createPaidOrder(ctx context.Context, order *models.TicketOrder, cfg *models.TicketConfig) (*CreateOrderResult, error) {
	if err := s.DB.CreatePendingOrder(ctx, order); err != nil {
		if errors.Is(err, models.ErrCapacityExceeded) {
			metrics.OrderRejected("sold_out")
			return nil, s.capacityLost(ctx, order.EventID)
		}
		return nil, fmt.Errorf("failed to store pending order: %w", err)
	}
	s.logger.LogOrder("CREATE", order.OrderID, fmt.Sprintf("pending order for %d tickets, total %d", order.TicketCount, order.GrandTotal))

	auth, err := s.Payments.Authorize(ctx, payment.AuthorizationRequest{
		OrderID:     order.OrderID,
		EventID:     order.EventID,
		BuyerEmail:  order.BuyerEmail,
		Description: fmt.Sprintf("%d x %s", order.TicketCount, eventLabel(cfg)),
		Amount:      order.GrandTotal,
		Currency:    order.Currency,
	})
	if err != nil {
		s.logger.LogPayment("AUTHORIZE_FAILED", order.OrderID, err.Error())
		reason := payment.PublicMessage(err)
		if _, failErr := s.DB.FailOrder(ctx, order.OrderID, reason, s.now()); failErr != nil {
			s.logger.Error("ORDER", fmt.Sprintf("Failed to mark order %s failed: %v", order.OrderID, failErr))
		} else {
			s.publishFailed(ctx, order, reason)
		}
		metrics.OrderRejected("payment")
		return nil, newOrderError(ErrPaymentFailed, http.StatusPaymentRequired, reason,
			fmt.Sprintf("authorization for order %s failed: %v", order.OrderID, err), err)
	}

	if err := s.DB.SetPaymentIntent(ctx, order.OrderID, auth.Reference); err != nil {
		return nil, fmt.Errorf("failed to store payment reference for order %s: %w", order.OrderID, err)
	}
	order.PaymentIntentID = auth.Reference

	metrics.OrderCreated("paid")
	s.logger.LogPayment("AUTHORIZED", order.OrderID, "reference "+auth.Reference)

	return &CreateOrderResult{Order: order, ClientSecret: auth.ClientSecret}, nil
}

// capacityLost builds the rejection for a buyer who passed the advisory check
// but lost the seats to a concurrent order.
func (s *OrderService) capacityLost(ctx context.Context, eventID string) error {
	available := 0
	if cfg, err := s.Configs.GetConfig(ctx, eventID); err == nil {
		available = cfg.Available()
	}
	return insufficient(available)
}

func eventLabel(cfg *models.TicketConfig) string {
	if cfg.EventName != "" {
		return cfg.EventName
	}
	return "tickets for event " + cfg.EventID
}

func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

// ---------------- EVENTS ----------------

func (s *OrderService) publishCompleted(ctx context.Context, order *models.TicketOrder) {
	if s.Events == nil || s.Settings.CompletedTopic == "" {
		return
	}
	evt := models.OrderCompletedEvent{
		OrderID:     order.OrderID,
		EventID:     order.EventID,
		BuyerEmail:  order.BuyerEmail,
		TicketCount: order.TicketCount,
		GrandTotal:  order.GrandTotal,
		CompletedAt: order.CompletedAt,
	}
	if err := s.Events.PublishJSON(ctx, s.Settings.CompletedTopic, order.OrderID, evt); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish completion of order %s: %v", order.OrderID, err))
	}
}

func (s *OrderService) publishFailed(ctx context.Context, order *models.TicketOrder, reason string) {
	if s.Events == nil || s.Settings.FailedTopic == "" {
		return
	}
	evt := models.OrderFailedEvent{
		OrderID:  order.OrderID,
		EventID:  order.EventID,
		Reason:   reason,
		FailedAt: s.now(),
	}
	if err := s.Events.PublishJSON(ctx, s.Settings.FailedTopic, order.OrderID, evt); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish failure of order %s: %v", order.OrderID, err))
	}
}
