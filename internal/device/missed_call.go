package device

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// ErrIncompleteRequest is returned for a request without number or status.
var ErrIncompleteRequest = errors.New("missing number or status")

type MissedCallRequest struct {
	Number      string
	Status      string
	IsEmergency bool
}

// MissedCallEvent is the record handed to the UI runtime.
type MissedCallEvent struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        *string `json:"name"`
	Number      string  `json:"number"`
	Timestamp   int64   `json:"timestamp"`
	IsEmergency bool    `json:"isEmergency"`
}

// NewMissedCallEvent builds a call event stamped with ms, which also serves
// as its id.
func NewMissedCallEvent(number string, isEmergency bool, ms int64) MissedCallEvent {
	return MissedCallEvent{
		ID:          strconv.FormatInt(ms, 10),
		Type:        "call",
		Number:      number,
		Timestamp:   ms,
		IsEmergency: isEmergency,
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// MissedCallHandler auto-replies while do-not-disturb is on, remembers the
// caller for SMS correlation and forwards the call to the UI.
type MissedCallHandler struct {
	telephony  Telephony
	policy     NotificationPolicy
	prefs      Preferences
	correlator *Correlator
	bridge     Bridge
	now        func() int64
	logger     *slog.Logger
}

func NewMissedCallHandler(tel Telephony, policy NotificationPolicy, prefs Preferences, c *Correlator, bridge Bridge, logger *slog.Logger) *MissedCallHandler {
	return &MissedCallHandler{
		telephony:  tel,
		policy:     policy,
		prefs:      prefs,
		correlator: c,
		bridge:     bridge,
		now:        nowMillis,
		logger:     logger.With("component", "missed_call_handler"),
	}
}

func (h *MissedCallHandler) replyText() string {
	text, ok, err := h.prefs.Get(PrefCustomReply)
	if err != nil {
		h.logger.Warn("read custom reply", "error", err)
	}
	if !ok || text == "" {
		return DefaultReply
	}
	return text
}

// Handle processes one request. Emergency requests are only forwarded to
// the UI. Auto-reply and bridge failures are logged only; the returned error
// reports an incomplete request.
func (h *MissedCallHandler) Handle(ctx context.Context, req MissedCallRequest) error {
	if req.Number == "" || req.Status == "" {
		h.logger.Error("dropping missed call request", "number", req.Number, "status", req.Status, "error", ErrIncompleteRequest)
		return ErrIncompleteRequest
	}

	// An emergency came from the caller's own SMS: no auto-reply, and the
	// slot is left alone so the same sender does not correlate again.
	if !req.IsEmergency {
		if h.policy.InterruptionFilter() == FilterNone {
			h.logger.Info("do-not-disturb on, sending auto-reply", "number", req.Number)
			if err := h.telephony.SendText(ctx, req.Number, h.replyText()); err != nil {
				h.logger.Error("send auto-reply", "number", req.Number, "error", err)
			}
		}

		if err := h.correlator.Remember(req.Number); err != nil {
			h.logger.Error("remember missed call", "number", req.Number, "error", err)
		}
	}

	if err := h.bridge.Dispatch(ctx, NewMissedCallEvent(req.Number, req.IsEmergency, h.now())); err != nil {
		h.logger.Error("dispatch missed call event", "number", req.Number, "error", err)
	}
	return nil
}
