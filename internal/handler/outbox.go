package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/outbox"
	"github.com/dukerupert/drivemode/internal/store"
)

const outboxListLimit = 100

type OutboxHandler struct {
	store      *store.OutboxStore
	dispatcher *outbox.Dispatcher
	logger     *slog.Logger
}

func NewOutboxHandler(st *store.OutboxStore, d *outbox.Dispatcher, logger *slog.Logger) *OutboxHandler {
	return &OutboxHandler{store: st, dispatcher: d, logger: logger}
}

type outboxListResponse struct {
	Status   string                `json:"status"`
	Counts   map[string]int        `json:"counts"`
	Messages []model.OutboxMessage `json:"messages"`
}

// List handles GET /api/outbox?status=pending|delivered|failed
func (h *OutboxHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = model.OutboxStatusFailed
	}
	if !model.ValidOutboxStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be pending, delivered, or failed"})
		return
	}

	msgs, err := h.store.ListByStatus(status, outboxListLimit)
	if err != nil {
		h.logger.Error("list outbox", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list outbox"})
		return
	}
	counts, err := h.store.CountByStatus()
	if err != nil {
		h.logger.Error("count outbox", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list outbox"})
		return
	}
	if msgs == nil {
		msgs = []model.OutboxMessage{}
	}

	writeJSON(w, http.StatusOK, outboxListResponse{Status: status, Counts: counts, Messages: msgs})
}

// Retry handles POST /api/outbox/{id}/retry
func (h *OutboxHandler) Retry(w http.ResponseWriter, r *http.Request) {
	msg, err := h.dispatcher.Requeue(r.PathValue("id"))
	if err != nil {
		h.logger.Error("requeue outbox message", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to requeue message"})
		return
	}
	if msg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no failed message with that id"})
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
