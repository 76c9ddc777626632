package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gameday-ticketing/internal/auth"
	tickets "gameday-ticketing/internal/tickets/service"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

const sseKeepAlive = 20 * time.Second

type scanRequest struct {
	QRCode  string `json:"qr_code"`
	EventID string `json:"event_id"`
}

// ScanTicket always answers 200 once the scan is recorded; the outcome is in
// the body so the gate app can show it.
func (h *Handler) ScanTicket(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	resp, err := h.TicketService.ScanTicket(r.Context(), req.QRCode, req.EventID, auth.UserID(r.Context()))
	if errors.Is(err, tickets.ErrInvalidScanRequest) {
		utils.WriteError(w, http.StatusBadRequest, "qr_code and event_id are required", "")
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ScanTicket at %s: %v", req.EventID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Scan could not be recorded", "")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, resp.Message, resp)
}

func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	scans, err := h.TicketService.ListScans(r.Context(), eventID, limit)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListScans %s: %v", eventID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Scan log unavailable", "")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d scans", len(scans)), scans)
}

// StreamScans pushes every scan at the event's gates to a dashboard over
// Server-Sent Events.
func (h *Handler) StreamScans(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	events := h.Scans.Subscribe(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"event_id\":%q}\n\n", eventID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Gate dashboard connected for event %s", eventID))

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize scan event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: scan\nid: %s\ndata: %s\n\n", evt.ScanID, data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Gate dashboard disconnected for event %s", eventID))
			return
		}
	}
}
