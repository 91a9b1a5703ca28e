// Package device holds the on-device driving-mode logic: call and SMS
// watchers, the emergency forwarder and the missed-call handler. Platform
// services are reached through the interfaces below.
package device

import (
	"context"
	"errors"
	"time"
)

// ErrNoPolicyAccess is returned when the app may not change the
// interruption filter.
var ErrNoPolicyAccess = errors.New("notification policy access not granted")

// Filter is the system interruption filter. Values match the platform's.
type Filter int

const (
	FilterUnknown  Filter = 0
	FilterAll      Filter = 1
	FilterPriority Filter = 2
	FilterNone     Filter = 3
	FilterAlarms   Filter = 4
)

func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterPriority:
		return "priority"
	case FilterNone:
		return "none"
	case FilterAlarms:
		return "alarms"
	default:
		return "unknown"
	}
}

// ParseFilter is the inverse of Filter.String.
func ParseFilter(s string) Filter {
	for _, f := range []Filter{FilterAll, FilterPriority, FilterNone, FilterAlarms} {
		if f.String() == s {
			return f
		}
	}
	return FilterUnknown
}

// Telephony sends SMS messages.
type Telephony interface {
	SendText(ctx context.Context, to, body string) error
}

// NotificationPolicy reads and changes the interruption filter.
type NotificationPolicy interface {
	AccessGranted() bool
	InterruptionFilter() Filter
	SetInterruptionFilter(f Filter) error
}

// TonePlayer plays the alarm tone on the alarm stream.
type TonePlayer interface {
	PlayTone(ctx context.Context, d time.Duration) error
}

// Preferences is device-local persisted key/value storage.
type Preferences interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Preference keys
const (
	PrefLastMissedCall = "lastMissedCallNumber"
	PrefCustomReply    = "customReply"
)

// DefaultReply is sent when no custom reply is stored.
const DefaultReply = "I'm driving right now. If it's an emergency, reply with details."

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
