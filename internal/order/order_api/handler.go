package order_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gameday-ticketing/internal/auth"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/order"
	"gameday-ticketing/internal/payment"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

// OrderService is the slice of *order.OrderService the handlers call.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.CreateOrderResult, error)
	CaptureOrder(ctx context.Context, orderID, paymentRef string) (*order.CaptureResult, error)
	GetOrder(ctx context.Context, orderID string) (*models.TicketOrder, error)
	GetOrderTickets(ctx context.Context, orderID string) ([]models.Ticket, error)
	SendTickets(ctx context.Context, orderID string, force bool) error
	HandlePaymentWebhook(ctx context.Context, evt *payment.WebhookEvent) error
}

type Handler struct {
	OrderService  OrderService
	Logger        *logger.Logger
	WebhookSecret string
}

func NewHandler(orderService OrderService, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, WebhookSecret: webhookSecret, Logger: log}
}

// PublicRoutes are reachable by anonymous buyers. Order ids are unguessable
// uuids and act as the buyer's handle on their order.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{orderId}", h.GetOrder)
	r.Get("/orders/{orderId}/tickets", h.GetOrderTickets)
	r.Post("/orders/{orderId}/capture", h.CaptureOrder)
}

func (h *Handler) OrganizerRoutes(r chi.Router) {
	r.Post("/orders/{orderId}/resend", h.ResendTickets)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateOrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: bad body: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req.UserID = auth.UserID(r.Context())

	result, err := h.OrderService.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeOrderError(w, "CreateOrder", "Order could not be created", err)
		return
	}

	message := "Order created, awaiting payment"
	if result.Order.PaymentStatus == models.PaymentCompleted {
		message = "Order completed"
	}
	utils.WriteSuccess(w, http.StatusCreated, message, result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(w, "GetOrder", "Order lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order retrieved", orderData)
}

func (h *Handler) GetOrderTickets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	tickets, err := h.OrderService.GetOrderTickets(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(w, "GetOrderTickets", "Ticket lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d tickets", len(tickets)), tickets)
}

func (h *Handler) ResendTickets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("ResendTickets: orderId=%s by %s", orderID, auth.UserID(r.Context())))

	err := h.OrderService.SendTickets(r.Context(), orderID, true)
	if errors.Is(err, order.ErrNotifierUnavailable) {
		utils.WriteError(w, http.StatusServiceUnavailable, "Ticket delivery unavailable", err.Error())
		return
	}
	if err != nil {
		h.writeOrderError(w, "ResendTickets", "Tickets could not be sent", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tickets sent", nil)
}

// writeOrderError logs the internal detail and replies with the public one.
func (h *Handler) writeOrderError(w http.ResponseWriter, op, message string, err error) {
	status := order.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Info("API", fmt.Sprintf("%s rejected: %v", op, err))
	}
	utils.WriteError(w, status, message, order.PublicMessage(err))
}
