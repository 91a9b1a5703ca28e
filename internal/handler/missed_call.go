package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/store"
	"github.com/dukerupert/drivemode/internal/websocket"
)

// Enqueuer stores a message for later delivery.
type Enqueuer interface {
	Enqueue(topic string, v any) (*model.OutboxMessage, error)
}

type MissedCallHandler struct {
	calls  *store.MissedCallStore
	outbox Enqueuer
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMissedCallHandler(cs *store.MissedCallStore, ob Enqueuer, hub *websocket.Hub, logger *slog.Logger) *MissedCallHandler {
	return &MissedCallHandler{calls: cs, outbox: ob, hub: hub, logger: logger}
}

type missedCallRequest struct {
	Name      *string     `json:"name"`
	Number    string      `json:"number"`
	Timestamp EpochMillis `json:"timestamp"`
	Status    string      `json:"status"`
}

// Create handles POST /api/missed-calls. The notification is queued, so a
// provider outage does not fail the request.
func (h *MissedCallHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req missedCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" || !req.Timestamp.Set || req.Timestamp.Value == 0 {
		writeText(w, http.StatusBadRequest, "Missing number or timestamp")
		return
	}
	if req.Status == "" {
		req.Status = model.CallStatusMissed
	}
	if !model.ValidCallStatus(req.Status) {
		writeText(w, http.StatusBadRequest, "Status must be missed or incoming")
		return
	}

	call, err := h.calls.Create(req.Name, req.Number, req.Timestamp.Value, req.Status)
	if err != nil {
		h.logger.Error("create missed call", "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to log missed call")
		return
	}

	if _, err := h.outbox.Enqueue(model.TopicMissedCallNotify, call); err != nil {
		h.logger.Error("queue missed call notification", "id", call.ID, "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to log missed call")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("missed_call", "created", call.ID, map[string]any{
			"number":    call.Number,
			"status":    call.Status,
			"timestamp": call.Timestamp,
		}))
	}

	writeText(w, http.StatusOK, "Missed call logged")
}

// List handles GET /api/missed-calls
func (h *MissedCallHandler) List(w http.ResponseWriter, r *http.Request) {
	calls, err := h.calls.List()
	if err != nil {
		h.logger.Error("list missed calls", "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to fetch missed calls")
		return
	}
	if calls == nil {
		calls = []model.MissedCall{}
	}
	writeJSON(w, http.StatusOK, calls)
}
