package model

import "time"

const (
	CallStatusMissed   = "missed"
	CallStatusIncoming = "incoming"
)

// MissedCall is an insert-only record of a call outcome reported by a device.
type MissedCall struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name"`
	Number    string    `json:"number"`
	Timestamp int64     `json:"timestamp"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidCallStatus reports whether s is an accepted call status.
func ValidCallStatus(s string) bool {
	return s == CallStatusMissed || s == CallStatusIncoming
}
