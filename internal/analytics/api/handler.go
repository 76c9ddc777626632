package analytics_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gameday-ticketing/internal/analytics"
	"gameday-ticketing/internal/auth"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type SummaryService interface {
	GetEventSummary(ctx context.Context, eventID string) (*analytics.EventSummary, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service SummaryService
	Logger  *logger.Logger
}

func NewHandler(service SummaryService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/summary", h.GetEventSummary)
}

// GetEventSummary returns the box-office and gate totals for an event.
func (h *Handler) GetEventSummary(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	summary, err := h.Service.GetEventSummary(r.Context(), eventID)
	if errors.Is(err, analytics.ErrEventNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Event has no ticketing configured", "")
		return
	}
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to build summary for %s: %v", eventID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load event summary", "")
		return
	}

	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Summary for %s served to %s", eventID, auth.UserID(r.Context())))
	utils.WriteSuccess(w, http.StatusOK, "Event summary retrieved", summary)
}
