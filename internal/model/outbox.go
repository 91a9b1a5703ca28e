package model

import (
	"encoding/json"
	"time"
)

// Outbox message statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusFailed    = "failed"
)

// Outbox topics
const (
	TopicMissedCallNotify = "missed_call.notify"
	TopicBridgeMissedCall = "bridge.store_missed_call"
)

type OutboxMessage struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}

// ValidOutboxStatus reports whether s names a known outbox status.
func ValidOutboxStatus(s string) bool {
	switch s {
	case OutboxStatusPending, OutboxStatusDelivered, OutboxStatusFailed:
		return true
	}
	return false
}
