package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// EmergencyClassifier decides whether a message is an emergency.
type EmergencyClassifier interface {
	IsEmergency(ctx context.Context, text string) (bool, error)
}

type EmergencyHandler struct {
	classifier EmergencyClassifier
	logger     *slog.Logger
}

func NewEmergencyHandler(c EmergencyClassifier, logger *slog.Logger) *EmergencyHandler {
	return &EmergencyHandler{classifier: c, logger: logger}
}

// Check handles POST /api/check-emergency: 200 for an emergency, 204 otherwise.
func (h *EmergencyHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	emergency, err := h.classifier.IsEmergency(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("classify message", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if emergency {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
