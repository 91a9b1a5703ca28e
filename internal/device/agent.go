package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Platform bundles the system services the agent drives.
type Platform struct {
	Telephony Telephony
	Policy    NotificationPolicy
	Tones     TonePlayer
	Prefs     Preferences
}

type AgentConfig struct {
	QueueSize int
	Alert     AlertConfig
}

// Agent runs the four device workers. Each drains its own queue in order.
type Agent struct {
	calls    chan CallStateChange
	sms      chan []SMS
	pdus     chan [][]byte
	classify chan SMS
	missed   chan MissedCallRequest

	callWatcher *CallWatcher
	smsWatcher  *SMSWatcher
	forwarder   *Forwarder
	missedCalls *MissedCallHandler
	correlator  *Correlator

	mu      sync.Mutex
	pending int
	idle    []chan struct{}

	logger *slog.Logger
}

func NewAgent(p Platform, checker EmergencyChecker, bridge Bridge, cfg AgentConfig, logger *slog.Logger) *Agent {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Alert == (AlertConfig{}) {
		cfg.Alert = DefaultAlertConfig
	}

	a := &Agent{
		calls:    make(chan CallStateChange, cfg.QueueSize),
		sms:      make(chan []SMS, cfg.QueueSize),
		pdus:     make(chan [][]byte, cfg.QueueSize),
		classify: make(chan SMS, cfg.QueueSize),
		missed:   make(chan MissedCallRequest, cfg.QueueSize),
		logger:   logger.With("component", "agent"),
	}
	a.correlator = NewCorrelator(p.Prefs)
	a.callWatcher = NewCallWatcher(a, logger)
	a.smsWatcher = NewSMSWatcher(GSMDecoder{}, a, a.correlator, bridge, logger)
	a.forwarder = NewForwarder(checker, a, NewAlerter(p.Policy, p.Tones, cfg.Alert, logger), logger)
	a.missedCalls = NewMissedCallHandler(p.Telephony, p.Policy, p.Prefs, a.correlator, bridge, logger)
	return a
}

func (a *Agent) Correlator() *Correlator { return a.correlator }

func enqueue[T any](ctx context.Context, a *Agent, ch chan T, v T) error {
	a.track(1)
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		a.track(-1)
		return ctx.Err()
	}
}

// SubmitCallState queues a phone-state change.
func (a *Agent) SubmitCallState(ctx context.Context, change CallStateChange) error {
	return enqueue(ctx, a, a.calls, change)
}

// SubmitPDUs queues one SMS broadcast of raw PDUs.
func (a *Agent) SubmitPDUs(ctx context.Context, pdus [][]byte) error {
	return enqueue(ctx, a, a.pdus, pdus)
}

// SubmitSMS queues already decoded messages.
func (a *Agent) SubmitSMS(ctx context.Context, msgs ...SMS) error {
	return enqueue(ctx, a, a.sms, msgs)
}

func (a *Agent) SubmitClassify(ctx context.Context, msg SMS) error {
	return enqueue(ctx, a, a.classify, msg)
}

func (a *Agent) SubmitMissedCall(ctx context.Context, req MissedCallRequest) error {
	return enqueue(ctx, a, a.missed, req)
}

func (a *Agent) track(delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending += delta
	if a.pending == 0 {
		for _, ch := range a.idle {
			close(ch)
		}
		a.idle = nil
	}
}

// Wait blocks until every queued item, including work queued by other
// workers, has been processed.
func (a *Agent) Wait(ctx context.Context) error {
	a.mu.Lock()
	if a.pending == 0 {
		a.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	a.idle = append(a.idle, ch)
	a.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain[T any](ctx context.Context, a *Agent, name string, ch chan T, fn func(context.Context, T) error) error {
	logger := a.logger.With("worker", name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-ch:
			if err := fn(ctx, v); err != nil {
				logger.Error("handle queued item", "error", err)
			}
			a.track(-1)
		}
	}
}

// Run starts the workers and blocks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("device agent started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return drain(ctx, a, "call_watcher", a.calls, a.callWatcher.Handle)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case pdus := <-a.pdus:
				if err := a.smsWatcher.HandlePDUs(ctx, pdus); err != nil {
					a.logger.Error("handle sms broadcast", "error", err)
				}
				a.track(-1)
			case msgs := <-a.sms:
				if err := a.smsWatcher.HandleMessages(ctx, msgs); err != nil {
					a.logger.Error("handle sms", "error", err)
				}
				a.track(-1)
			}
		}
	})
	g.Go(func() error {
		return drain(ctx, a, "forwarder", a.classify, func(ctx context.Context, msg SMS) error {
			_, err := a.forwarder.Handle(ctx, msg)
			return err
		})
	})
	g.Go(func() error {
		return drain(ctx, a, "missed_call_handler", a.missed, a.missedCalls.Handle)
	})

	err := g.Wait()
	a.logger.Info("device agent stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
