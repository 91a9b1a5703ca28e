package device

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// EventHandler accepts platform events over HTTP so a host can drive the
// agent without a phone.
type EventHandler struct {
	agent  *Agent
	logger *slog.Logger
}

func NewEventHandler(a *Agent, logger *slog.Logger) *EventHandler {
	return &EventHandler{agent: a, logger: logger.With("component", "device_events")}
}

func (h *EventHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /events/call", h.Call)
	mux.HandleFunc("POST /events/sms", h.SMS)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Call handles POST /events/call
func (h *EventHandler) Call(w http.ResponseWriter, r *http.Request) {
	var change CallStateChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	switch change.State {
	case CallRinging, CallOffhook, CallIdle:
	default:
		writeError(w, http.StatusBadRequest, "state must be ringing, offhook, or idle")
		return
	}

	if err := h.agent.SubmitCallState(r.Context(), change); err != nil {
		h.logger.Error("queue call state", "error", err)
		writeError(w, http.StatusServiceUnavailable, "agent not accepting events")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type smsEventRequest struct {
	PDUs   []string `json:"pdus"`
	Sender string   `json:"sender"`
	Text   string   `json:"text"`
}

// SMS handles POST /events/sms with either hex PDUs or a decoded sender and text.
func (h *EventHandler) SMS(w http.ResponseWriter, r *http.Request) {
	var req smsEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var err error
	switch {
	case len(req.PDUs) > 0:
		pdus := make([][]byte, 0, len(req.PDUs))
		for _, s := range req.PDUs {
			b, derr := DecodeHexPDU(s)
			if derr != nil {
				writeError(w, http.StatusBadRequest, "pdus must be hex encoded")
				return
			}
			pdus = append(pdus, b)
		}
		err = h.agent.SubmitPDUs(r.Context(), pdus)
	case req.Sender != "":
		err = h.agent.SubmitSMS(r.Context(), SMS{Sender: req.Sender, Text: req.Text})
	default:
		writeError(w, http.StatusBadRequest, "pdus or sender required")
		return
	}
	if err != nil {
		h.logger.Error("queue sms", "error", err)
		writeError(w, http.StatusServiceUnavailable, "agent not accepting events")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
