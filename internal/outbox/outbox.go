// Package outbox delivers queued messages at least once, retrying failed
// deliveries with exponential backoff until an attempt budget is spent.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/store"
)

// Handler delivers one message. A nil return marks the message delivered.
type Handler func(ctx context.Context, msg model.OutboxMessage) error

// ErrNoHandler is recorded on messages whose topic has no registered handler.
var ErrNoHandler = errors.New("no handler for topic")

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	MaxBackoff  time.Duration
	BatchSize   int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Dispatcher polls the outbox table and hands due messages to topic handlers.
type Dispatcher struct {
	store  *store.OutboxStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
	cancel   context.CancelFunc
	done     chan struct{}

	kick chan struct{}
	// flushMu keeps a manual Flush from racing the background loop.
	flushMu sync.Mutex
}

func New(st *store.OutboxStore, cfg Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "outbox"),
		now:      time.Now,
		handlers: make(map[string]Handler),
		kick:     make(chan struct{}, 1),
	}
}

// Handle registers the handler for a topic, replacing any previous one.
func (d *Dispatcher) Handle(topic string, h Handler) {
	d.mu.Lock()
	d.handlers[topic] = h
	d.mu.Unlock()
}

// Enqueue stores v as a JSON payload and wakes the dispatch loop.
func (d *Dispatcher) Enqueue(topic string, v any) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	msg, err := d.store.Enqueue(topic, payload, d.now())
	if err != nil {
		return nil, err
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
	return msg, nil
}

// Requeue gives a failed message a fresh attempt budget. It returns nil if the
// message does not exist or is not failed.
func (d *Dispatcher) Requeue(id string) (*model.OutboxMessage, error) {
	msg, err := d.store.Requeue(id, d.now())
	if err != nil || msg == nil {
		return msg, err
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
	return msg, nil
}

// Start runs the dispatch loop until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		for {
			if _, err := d.Flush(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("flush outbox", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-d.kick:
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight batch to finish.
func (d *Dispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	done := d.done
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Flush delivers every message that is due now, one batch at a time, and
// returns how many messages were attempted.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	total := 0
	for {
		msgs, err := d.store.ListDue(d.now(), d.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		for _, msg := range msgs {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := d.deliver(ctx, msg); err != nil {
				return total, err
			}
			total++
		}
		if len(msgs) < d.cfg.BatchSize {
			return total, nil
		}
	}
}

// deliver runs the handler and records the outcome. Only storage errors are returned.
func (d *Dispatcher) deliver(ctx context.Context, msg model.OutboxMessage) error {
	d.mu.RLock()
	h, ok := d.handlers[msg.Topic]
	d.mu.RUnlock()

	logger := d.logger.With("id", msg.ID, "topic", msg.Topic, "attempt", msg.Attempts+1)

	if !ok {
		logger.Error("dropping outbox message", "error", ErrNoHandler)
		return d.store.MarkFailed(msg.ID, ErrNoHandler.Error())
	}

	herr := h(ctx, msg)
	if herr == nil {
		logger.Debug("outbox message delivered")
		return d.store.MarkDelivered(msg.ID, d.now())
	}

	attempts := msg.Attempts + 1
	if attempts >= d.cfg.MaxAttempts {
		logger.Error("dropping outbox message after max attempts", "error", herr, "max_attempts", d.cfg.MaxAttempts)
		return d.store.MarkFailed(msg.ID, herr.Error())
	}

	wait := d.backoff(attempts)
	logger.Warn("outbox delivery failed, will retry", "error", herr, "retry_in", wait)
	return d.store.MarkRetry(msg.ID, herr.Error(), d.now().Add(wait))
}

// backoff returns the delay before the next attempt after n failed attempts.
func (d *Dispatcher) backoff(n int) time.Duration {
	b := retry.WithCappedDuration(d.cfg.MaxBackoff, retry.NewExponential(d.cfg.BackoffBase))
	var wait time.Duration
	for i := 0; i < n; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		wait = next
	}
	return wait
}
