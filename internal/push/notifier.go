package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/store"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// Notifier fans a missed-call notification out to every stored subscription.
type Notifier struct {
	sender Sender
	subs   *store.PushStore
	logger *slog.Logger
}

func NewNotifier(sender Sender, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, subs: subs, logger: logger.With("component", "push")}
}

func (n *Notifier) Name() string { return "push" }

// NotifyMissedCall sends to all subscriptions. Expired subscriptions are
// removed; other failures are joined into the returned error.
func (n *Notifier) NotifyMissedCall(ctx context.Context, call model.MissedCall) error {
	subs, err := n.subs.List()
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}

	payload := MissedCallPayload(call)

	var errs []error
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		sub := &subs[i]
		err := n.sender.Send(sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			n.logger.Info("removing expired push subscription", "id", sub.ID, "device", sub.DeviceName)
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.ID, err))
		}
	}
	return errors.Join(errs...)
}

// MissedCallPayload builds the notification shown for a missed call.
func MissedCallPayload(call model.MissedCall) Payload {
	caller := call.Number
	if call.Name != nil && *call.Name != "" {
		caller = *call.Name
	}
	return Payload{
		Title: "Missed call",
		Body:  fmt.Sprintf("%s called while you were driving", caller),
		URL:   "/missed-calls",
		Tag:   fmt.Sprintf("missed-call-%d", call.ID),
	}
}
