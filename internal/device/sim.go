package device

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SimulatedPolicy is an in-memory notification policy for running the agent
// off-device.
type SimulatedPolicy struct {
	mu      sync.Mutex
	granted bool
	filter  Filter
	changes []Filter
}

func NewSimulatedPolicy(granted bool, filter Filter) *SimulatedPolicy {
	return &SimulatedPolicy{granted: granted, filter: filter}
}

func (p *SimulatedPolicy) AccessGranted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

func (p *SimulatedPolicy) SetAccess(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

func (p *SimulatedPolicy) InterruptionFilter() Filter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter
}

func (p *SimulatedPolicy) SetInterruptionFilter(f Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return ErrNoPolicyAccess
	}
	p.filter = f
	p.changes = append(p.changes, f)
	return nil
}

// SetFilter changes the filter as the user would, without needing access.
func (p *SimulatedPolicy) SetFilter(f Filter) {
	p.mu.Lock()
	p.filter = f
	p.mu.Unlock()
}

// Changes returns every filter set so far, in order.
func (p *SimulatedPolicy) Changes() []Filter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Filter(nil), p.changes...)
}

// LogTelephony logs outgoing texts instead of sending them.
type LogTelephony struct {
	Logger *slog.Logger
}

func (t LogTelephony) SendText(ctx context.Context, to, body string) error {
	t.Logger.Info("sms sent", "to", to, "body", body)
	return nil
}

// LogTonePlayer logs each tone.
type LogTonePlayer struct {
	Logger *slog.Logger
}

func (p LogTonePlayer) PlayTone(ctx context.Context, d time.Duration) error {
	p.Logger.Info("alarm tone", "duration", d)
	return nil
}
