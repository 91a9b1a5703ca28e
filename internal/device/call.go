package device

import (
	"context"
	"log/slog"

	"github.com/dukerupert/drivemode/internal/model"
)

// CallState is the telephony state reported with each phone-state change.
type CallState string

const (
	CallRinging CallState = "ringing"
	CallOffhook CallState = "offhook"
	CallIdle    CallState = "idle"
)

type CallStateChange struct {
	State  CallState `json:"state" yaml:"state"`
	Number string    `json:"number" yaml:"number"`
}

// MissedCallSubmitter queues a request for the missed-call handler.
type MissedCallSubmitter interface {
	SubmitMissedCall(ctx context.Context, req MissedCallRequest) error
}

// CallSession tracks whether the current call is still ringing.
type CallSession struct {
	ringing bool
}

func (s CallSession) Ringing() bool { return s.ringing }

// CallWatcher turns phone-state changes into missed-call requests. It is not
// safe for concurrent use; the agent drives it from one worker.
type CallWatcher struct {
	session CallSession
	submit  MissedCallSubmitter
	logger  *slog.Logger
}

func NewCallWatcher(submit MissedCallSubmitter, logger *slog.Logger) *CallWatcher {
	return &CallWatcher{submit: submit, logger: logger.With("component", "call_watcher")}
}

func (w *CallWatcher) Session() CallSession { return w.session }

// Handle applies one state change. Ringing reports the call as incoming;
// idle right after ringing reports it as missed. Answering clears the flag.
func (w *CallWatcher) Handle(ctx context.Context, change CallStateChange) error {
	w.logger.Debug("phone state", "state", change.State, "number", change.Number)

	switch change.State {
	case CallRinging:
		w.session.ringing = true
		return w.submit.SubmitMissedCall(ctx, MissedCallRequest{
			Number: change.Number,
			Status: model.CallStatusIncoming,
		})
	case CallOffhook:
		w.session.ringing = false
	case CallIdle:
		if !w.session.ringing {
			return nil
		}
		w.session.ringing = false
		w.logger.Info("missed call", "number", change.Number)
		return w.submit.SubmitMissedCall(ctx, MissedCallRequest{
			Number: change.Number,
			Status: model.CallStatusMissed,
		})
	default:
		w.logger.Warn("unknown phone state", "state", change.State)
	}
	return nil
}
