package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type AlertConfig struct {
	Settle  time.Duration
	Tone    time.Duration
	Spacing time.Duration
	Repeat  int
}

// DefaultAlertConfig waits 500ms after lifting DND, then plays three 1s
// tones started 1.5s apart.
var DefaultAlertConfig = AlertConfig{
	Settle:  500 * time.Millisecond,
	Tone:    time.Second,
	Spacing: 1500 * time.Millisecond,
	Repeat:  3,
}

// Alerter temporarily lifts do-not-disturb to sound the alarm tone.
type Alerter struct {
	policy NotificationPolicy
	tones  TonePlayer
	cfg    AlertConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

func NewAlerter(policy NotificationPolicy, tones TonePlayer, cfg AlertConfig, logger *slog.Logger) *Alerter {
	return &Alerter{
		policy: policy,
		tones:  tones,
		cfg:    cfg,
		sleep:  sleep,
		logger: logger.With("component", "alerter"),
	}
}

// Alert sets the filter to all, plays the tone sequence and restores the
// filter that was active before. Without policy access it returns
// ErrNoPolicyAccess and changes nothing.
func (a *Alerter) Alert(ctx context.Context) (err error) {
	if !a.policy.AccessGranted() {
		return ErrNoPolicyAccess
	}

	prev := a.policy.InterruptionFilter()
	if err := a.policy.SetInterruptionFilter(FilterAll); err != nil {
		return fmt.Errorf("lift interruption filter: %w", err)
	}
	defer func() {
		if rerr := a.policy.SetInterruptionFilter(prev); rerr != nil && err == nil {
			err = fmt.Errorf("restore interruption filter: %w", rerr)
		}
		a.logger.Debug("interruption filter restored", "filter", prev)
	}()

	if err := a.sleep(ctx, a.cfg.Settle); err != nil {
		return err
	}
	for i := 0; i < a.cfg.Repeat; i++ {
		// PlayTone returns once the tone has started.
		if err := a.tones.PlayTone(ctx, a.cfg.Tone); err != nil {
			return fmt.Errorf("play tone: %w", err)
		}
		if err := a.sleep(ctx, a.cfg.Spacing); err != nil {
			return err
		}
	}
	return nil
}
