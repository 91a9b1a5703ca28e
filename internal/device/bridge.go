package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/outbox"
	ws "github.com/dukerupert/drivemode/internal/websocket"
)

// UI runtime method channel
const (
	BridgeChannel     = "drivemode/missed_calls"
	MethodStoreMissed = "storeMissedCall"
)

// Bridge forwards call events to the UI runtime.
type Bridge interface {
	Dispatch(ctx context.Context, ev MissedCallEvent) error
}

// Enqueuer stores a message for later delivery.
type Enqueuer interface {
	Enqueue(topic string, v any) (*model.OutboxMessage, error)
}

// OutboxBridge queues events in the outbox so they survive until a UI
// runtime attaches.
type OutboxBridge struct {
	outbox Enqueuer
}

func NewOutboxBridge(ob Enqueuer) *OutboxBridge {
	return &OutboxBridge{outbox: ob}
}

func (b *OutboxBridge) Dispatch(ctx context.Context, ev MissedCallEvent) error {
	if _, err := b.outbox.Enqueue(model.TopicBridgeMissedCall, ev); err != nil {
		return fmt.Errorf("queue bridge event: %w", err)
	}
	return nil
}

// MethodDeliverer hands a method call to the attached UI runtime.
type MethodDeliverer interface {
	Deliver(call ws.MethodCall) error
}

// BridgeHandler delivers queued call events as storeMissedCall invocations.
// It fails while no UI runtime is attached, so the outbox retries.
func BridgeHandler(d MethodDeliverer) outbox.Handler {
	return func(ctx context.Context, msg model.OutboxMessage) error {
		var ev MissedCallEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode call event: %w", err)
		}
		return d.Deliver(ws.MethodCall{
			Channel: BridgeChannel,
			Method:  MethodStoreMissed,
			Args:    ev,
		})
	}
}
