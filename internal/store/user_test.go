package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/drivemode/internal/database"
	"github.com/dukerupert/drivemode/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(openTestDB(t))
}

func TestUserUpsertCreates(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Upsert("alice@example.com", "Alice", "https://img.example.com/a.png")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want %q", u.Name, "Alice")
	}
	if u.PhotoURL != "https://img.example.com/a.png" {
		t.Errorf("photo = %q, want %q", u.PhotoURL, "https://img.example.com/a.png")
	}
	if len(u.DNDLogs) != 0 {
		t.Errorf("dnd logs = %d, want 0", len(u.DNDLogs))
	}
}

func TestUserUpsertUpdatesByEmail(t *testing.T) {
	us := setupUserTestDB(t)

	first, err := us.Upsert("alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	second, err := us.Upsert("alice@example.com", "Alice Driver", "https://img.example.com/new.png")
	if err != nil {
		t.Fatalf("upsert user again: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected same ID on upsert, got %d != %d", second.ID, first.ID)
	}
	if second.Name != "Alice Driver" {
		t.Errorf("name = %q, want %q", second.Name, "Alice Driver")
	}
	if second.PhotoURL != "https://img.example.com/new.png" {
		t.Errorf("photo = %q, want updated photo", second.PhotoURL)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent email")
	}
}

func TestLogDNDOnThenOff(t *testing.T) {
	us := setupUserTestDB(t)
	if _, err := us.Upsert("alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	on := time.UnixMilli(1_700_000_000_000)
	off := on.Add(25 * time.Minute)
	home := &model.Location{Latitude: 40.7, Longitude: -74.0}
	work := &model.Location{Latitude: 40.8, Longitude: -73.9}

	if err := us.LogDND("alice@example.com", model.DNDActionOn, on, home); err != nil {
		t.Fatalf("log dnd on: %v", err)
	}
	if err := us.LogDND("alice@example.com", model.DNDActionOff, off, work); err != nil {
		t.Fatalf("log dnd off: %v", err)
	}

	u, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if len(u.DNDLogs) != 1 {
		t.Fatalf("dnd logs = %d, want 1", len(u.DNDLogs))
	}
	sess := u.DNDLogs[0]
	if !sess.TurnedOnAt.Equal(on) {
		t.Errorf("turned on at = %v, want %v", sess.TurnedOnAt, on)
	}
	if sess.TurnedOffAt == nil || !sess.TurnedOffAt.Equal(off) {
		t.Errorf("turned off at = %v, want %v", sess.TurnedOffAt, off)
	}
	if sess.LocationOn == nil || *sess.LocationOn != *home {
		t.Errorf("location on = %v, want %v", sess.LocationOn, home)
	}
	if sess.LocationOff == nil || *sess.LocationOff != *work {
		t.Errorf("location off = %v, want %v", sess.LocationOff, work)
	}
}

func TestLogDNDOffWithoutOpenSession(t *testing.T) {
	us := setupUserTestDB(t)
	if _, err := us.Upsert("alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	if err := us.LogDND("alice@example.com", model.DNDActionOff, time.Now(), nil); err != nil {
		t.Fatalf("log dnd off: %v", err)
	}

	u, _ := us.GetByEmail("alice@example.com")
	if len(u.DNDLogs) != 0 {
		t.Errorf("dnd logs = %d, want 0", len(u.DNDLogs))
	}
}

func TestLogDNDOffDoesNotReopenClosedSession(t *testing.T) {
	us := setupUserTestDB(t)
	if _, err := us.Upsert("alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	on := time.UnixMilli(1_700_000_000_000)
	firstOff := on.Add(time.Minute)
	us.LogDND("alice@example.com", model.DNDActionOn, on, nil)
	us.LogDND("alice@example.com", model.DNDActionOff, firstOff, nil)

	if err := us.LogDND("alice@example.com", model.DNDActionOff, firstOff.Add(time.Hour), nil); err != nil {
		t.Fatalf("second off: %v", err)
	}

	u, _ := us.GetByEmail("alice@example.com")
	if len(u.DNDLogs) != 1 {
		t.Fatalf("dnd logs = %d, want 1", len(u.DNDLogs))
	}
	if !u.DNDLogs[0].TurnedOffAt.Equal(firstOff) {
		t.Errorf("turned off at = %v, want unchanged %v", u.DNDLogs[0].TurnedOffAt, firstOff)
	}
}

func TestLogDNDUnknownUser(t *testing.T) {
	us := setupUserTestDB(t)

	err := us.LogDND("ghost@example.com", model.DNDActionOn, time.Now(), nil)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestLogDNDSessionsKeepOrder(t *testing.T) {
	us := setupUserTestDB(t)
	us.Upsert("alice@example.com", "Alice", "")

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		us.LogDND("alice@example.com", model.DNDActionOn, at, nil)
		us.LogDND("alice@example.com", model.DNDActionOff, at.Add(time.Minute), nil)
	}

	u, _ := us.GetByEmail("alice@example.com")
	if len(u.DNDLogs) != 3 {
		t.Fatalf("dnd logs = %d, want 3", len(u.DNDLogs))
	}
	for i := 1; i < len(u.DNDLogs); i++ {
		if !u.DNDLogs[i].TurnedOnAt.After(u.DNDLogs[i-1].TurnedOnAt) {
			t.Errorf("session %d not after session %d", i, i-1)
		}
	}
}
