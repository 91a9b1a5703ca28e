package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/drivemode/internal/model"
)

// ErrUserNotFound is returned by operations that require an existing user.
var ErrUserNotFound = errors.New("user not found")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, photo_url, created_at, updated_at`

// Upsert creates the user or updates name and photo of the user with that email.
func (s *UserStore) Upsert(email, name, photoURL string) (*model.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (email, name, photo_url) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET name = excluded.name, photo_url = excluded.photo_url, updated_at = CURRENT_TIMESTAMP`,
		email, name, photoURL,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetByEmail(email)
}

// GetByEmail returns the user with its DND sessions in activation order, or nil if absent.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	sessions, err := s.listSessions(u.ID)
	if err != nil {
		return nil, err
	}
	u.DNDLogs = sessions
	return u, nil
}

const sessionCols = `id, turned_on_at, on_latitude, on_longitude, turned_off_at, off_latitude, off_longitude`

func scanSession(scanner interface{ Scan(...any) error }) (*model.DNDSession, error) {
	var sess model.DNDSession
	var onLat, onLng, offLat, offLng sql.NullFloat64
	var offAt sql.NullTime

	err := scanner.Scan(&sess.ID, &sess.TurnedOnAt, &onLat, &onLng, &offAt, &offLat, &offLng)
	if err != nil {
		return nil, err
	}

	sess.LocationOn = location(onLat, onLng)
	sess.LocationOff = location(offLat, offLng)
	if offAt.Valid {
		sess.TurnedOffAt = &offAt.Time
	}
	return &sess, nil
}

func location(lat, lng sql.NullFloat64) *model.Location {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &model.Location{Latitude: lat.Float64, Longitude: lng.Float64}
}

func (s *UserStore) listSessions(userID int64) ([]model.DNDSession, error) {
	rows, err := s.db.Query(`SELECT `+sessionCols+` FROM dnd_sessions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list dnd sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.DNDSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dnd session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func latLng(loc *model.Location) (lat, lng any) {
	if loc == nil {
		return nil, nil
	}
	return loc.Latitude, loc.Longitude
}

// LogDND applies a client-reported DND action for the user with the given email.
// "on" appends an open session. "off" closes the most recent session if it is
// still open and does nothing otherwise. Unknown actions are ignored.
// Returns ErrUserNotFound if no user has that email.
func (s *UserStore) LogDND(email, action string, at time.Time, loc *model.Location) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRow(`SELECT id FROM users WHERE email = ?`, email).Scan(&userID)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("get user id: %w", err)
	}

	lat, lng := latLng(loc)

	switch action {
	case model.DNDActionOn:
		if _, err := tx.Exec(
			`INSERT INTO dnd_sessions (user_id, turned_on_at, on_latitude, on_longitude) VALUES (?, ?, ?, ?)`,
			userID, at.UTC(), lat, lng,
		); err != nil {
			return fmt.Errorf("insert dnd session: %w", err)
		}
	case model.DNDActionOff:
		row := tx.QueryRow(`SELECT `+sessionCols+` FROM dnd_sessions WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)
		last, err := scanSession(row)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return fmt.Errorf("get last dnd session: %w", err)
		}
		if !last.Open() {
			break
		}
		if _, err := tx.Exec(
			`UPDATE dnd_sessions SET turned_off_at = ?, off_latitude = ?, off_longitude = ? WHERE id = ?`,
			at.UTC(), lat, lng, last.ID,
		); err != nil {
			return fmt.Errorf("close dnd session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dnd log: %w", err)
	}
	return nil
}
