package model

import "time"

type User struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	PhotoURL  string       `json:"photoUrl"`
	DNDLogs   []DNDSession `json:"dndLogs"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DNDSession is one do-not-disturb window. It stays open until TurnedOffAt is set.
type DNDSession struct {
	ID          int64      `json:"id"`
	TurnedOnAt  time.Time  `json:"turnedOnAt"`
	LocationOn  *Location  `json:"locationOn,omitempty"`
	TurnedOffAt *time.Time `json:"turnedOffAt,omitempty"`
	LocationOff *Location  `json:"locationOff,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s DNDSession) Open() bool {
	return s.TurnedOffAt == nil
}

// DND actions reported by the client.
const (
	DNDActionOn  = "on"
	DNDActionOff = "off"
)
