package ticket_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gameday-ticketing/internal/auth"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
	tickets "gameday-ticketing/internal/tickets/service"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type TicketService interface {
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	QRImage(ctx context.Context, ticketID string, size int) ([]byte, error)
	WalletPass(ctx context.Context, ticketID, platform string) (string, error)
	ScanTicket(ctx context.Context, qrCode, eventID, scannerID string) (*tickets.ScanResponse, error)
	ListScans(ctx context.Context, eventID string, limit int) ([]models.TicketScan, error)
}

type ConfigService interface {
	GetAvailability(ctx context.Context, eventID string) (*models.Availability, error)
	UpsertConfig(ctx context.Context, cfg *models.TicketConfig) (*models.TicketConfig, error)
}

type ScanSubscriber interface {
	Subscribe(ctx context.Context, eventID string) <-chan models.ScanEvent
}

type Handler struct {
	TicketService TicketService
	ConfigService ConfigService
	Scans         ScanSubscriber
	Logger        *logger.Logger
}

func NewHandler(ticketService TicketService, configService ConfigService, scans ScanSubscriber, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, ConfigService: configService, Scans: scans, Logger: log}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/events/{eventId}/tickets/config", h.GetAvailability)
	r.Get("/tickets/{ticketId}", h.ViewTicket)
	r.Get("/tickets/{ticketId}/qr.png", h.TicketQR)
	r.Get("/tickets/{ticketId}/wallet", h.WalletPass)
}

func (h *Handler) OrganizerRoutes(r chi.Router) {
	r.Put("/events/{eventId}/tickets/config", h.UpsertConfig)
}

// ScannerRoutes are the gate endpoints; main may put a role check in front.
func (h *Handler) ScannerRoutes(r chi.Router) {
	r.Post("/scan", h.ScanTicket)
	r.Get("/events/{eventId}/scans", h.ListScans)
	r.Get("/events/{eventId}/scans/stream", h.StreamScans)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	avail, err := h.ConfigService.GetAvailability(r.Context(), eventID)
	if errors.Is(err, tickets.ErrConfigNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Tickets are not available for this event", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetAvailability %s: %v", eventID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Availability lookup failed", "")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Availability retrieved", avail)
}

type configRequest struct {
	EventName     string     `json:"event_name"`
	Venue         string     `json:"venue"`
	EventDate     *time.Time `json:"event_date"`
	Enabled       bool       `json:"enabled"`
	Price         int64      `json:"price"`
	TotalCapacity int        `json:"total_capacity"`
	SalesStart    *time.Time `json:"sales_start"`
	SalesEnd      *time.Time `json:"sales_end"`
	MaxPerOrder   int        `json:"max_per_order"`
	HasSeating    bool       `json:"has_seating"`
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func (h *Handler) UpsertConfig(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req configRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	saved, err := h.ConfigService.UpsertConfig(r.Context(), &models.TicketConfig{
		EventID:       eventID,
		EventName:     req.EventName,
		Venue:         req.Venue,
		EventDate:     timeOrZero(req.EventDate),
		Enabled:       req.Enabled,
		Price:         req.Price,
		TotalCapacity: req.TotalCapacity,
		SalesStart:    timeOrZero(req.SalesStart),
		SalesEnd:      timeOrZero(req.SalesEnd),
		MaxPerOrder:   req.MaxPerOrder,
		HasSeating:    req.HasSeating,
	})
	if errors.Is(err, tickets.ErrInvalidConfig) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid ticket configuration", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpsertConfig %s: %v", eventID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Ticket configuration could not be saved", "")
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Ticket config for %s updated by %s", eventID, auth.UserID(r.Context())))
	utils.WriteSuccess(w, http.StatusOK, "Ticket configuration saved", saved)
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	ticket, err := h.TicketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.writeTicketError(w, "ViewTicket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket retrieved", ticket)
}

func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	size := 256
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			utils.WriteError(w, http.StatusBadRequest, "size must be between 64 and 1024", "")
			return
		}
		size = n
	}

	png, err := h.TicketService.QRImage(r.Context(), ticketID, size)
	if err != nil {
		h.writeTicketError(w, "TicketQR", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(png)
}

func (h *Handler) WalletPass(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	platform := r.URL.Query().Get("platform")

	passURL, err := h.TicketService.WalletPass(r.Context(), ticketID, platform)
	switch {
	case errors.Is(err, tickets.ErrUnsupportedPlatform):
		utils.WriteError(w, http.StatusBadRequest, "platform must be apple or google", "")
		return
	case errors.Is(err, tickets.ErrWalletUnavailable):
		utils.WriteError(w, http.StatusServiceUnavailable, "Wallet passes are unavailable", "")
		return
	case err != nil:
		h.writeTicketError(w, "WalletPass", err)
		return
	case passURL == "":
		utils.WriteError(w, http.StatusNotFound, "No wallet pass for this ticket", "")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Wallet pass ready", map[string]string{"url": passURL, "platform": platform})
}

func (h *Handler) writeTicketError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, tickets.ErrTicketNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Ticket not found", "")
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, http.StatusInternalServerError, "Ticket lookup failed", "")
}
