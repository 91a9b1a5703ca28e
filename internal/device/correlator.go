package device

import (
	"fmt"
	"strings"
	"sync"
)

// Normalize strips everything but digits and a single leading "+".
func Normalize(number string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(number) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Correlator owns the last-missed-call slot. A later SMS from the same
// number marks the miss as an emergency.
type Correlator struct {
	mu    sync.Mutex
	prefs Preferences
}

func NewCorrelator(prefs Preferences) *Correlator {
	return &Correlator{prefs: prefs}
}

// Remember overwrites the slot with number.
func (c *Correlator) Remember(number string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.prefs.Set(PrefLastMissedCall, number); err != nil {
		return fmt.Errorf("remember missed call: %w", err)
	}
	return nil
}

// Last returns the remembered number, or "" if the slot is empty.
func (c *Correlator) Last() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _, err := c.prefs.Get(PrefLastMissedCall)
	return v, err
}

// Match reports whether sender follows up the remembered missed call. The
// normalized sender only has to contain the normalized stored number. On a
// match the slot is cleared.
func (c *Correlator) Match(sender string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok, err := c.prefs.Get(PrefLastMissedCall)
	if err != nil {
		return false, fmt.Errorf("read missed call slot: %w", err)
	}
	if !ok || stored == "" {
		return false, nil
	}
	// A stored value with no digits normalizes to "" and matches any sender.
	if !strings.Contains(Normalize(sender), Normalize(stored)) {
		return false, nil
	}

	if err := c.prefs.Delete(PrefLastMissedCall); err != nil {
		return true, fmt.Errorf("clear missed call slot: %w", err)
	}
	return true, nil
}
