// Package notify fans missed-call notifications out to the configured
// delivery channels.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/drivemode/internal/email"
	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/outbox"
)

// Channel is one way of telling the driver about a missed call.
type Channel interface {
	Name() string
	NotifyMissedCall(ctx context.Context, call model.MissedCall) error
}

type Notifier struct {
	channels []Channel
	logger   *slog.Logger
}

func New(logger *slog.Logger, channels ...Channel) *Notifier {
	return &Notifier{channels: channels, logger: logger.With("component", "notify")}
}

// NotifyMissedCall tries every channel and joins their errors.
func (n *Notifier) NotifyMissedCall(ctx context.Context, call model.MissedCall) error {
	var errs []error
	for _, ch := range n.channels {
		if err := ch.NotifyMissedCall(ctx, call); err != nil {
			n.logger.Warn("notification channel failed", "channel", ch.Name(), "missed_call_id", call.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// OutboxHandler decodes a queued missed call and notifies every channel.
func (n *Notifier) OutboxHandler() outbox.Handler {
	return func(ctx context.Context, msg model.OutboxMessage) error {
		var call model.MissedCall
		if err := json.Unmarshal(msg.Payload, &call); err != nil {
			return fmt.Errorf("decode missed call: %w", err)
		}
		return n.NotifyMissedCall(ctx, call)
	}
}

// EmailChannel sends missed-call emails to a fixed recipient.
type EmailChannel struct {
	Client *email.Client
	To     string
}

func (e EmailChannel) Name() string { return "email" }

func (e EmailChannel) NotifyMissedCall(ctx context.Context, call model.MissedCall) error {
	return e.Client.SendMissedCall(ctx, e.To, call)
}
