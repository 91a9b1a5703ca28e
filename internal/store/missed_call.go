package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/drivemode/internal/model"
)

type MissedCallStore struct {
	db *sql.DB
}

func NewMissedCallStore(db *sql.DB) *MissedCallStore {
	return &MissedCallStore{db: db}
}

const missedCallCols = `id, name, number, timestamp, status, created_at`

func scanMissedCall(scanner interface{ Scan(...any) error }) (*model.MissedCall, error) {
	var c model.MissedCall
	var name sql.NullString

	err := scanner.Scan(&c.ID, &name, &c.Number, &c.Timestamp, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		c.Name = &name.String
	}
	return &c, nil
}

// Create inserts a missed-call record. An empty status defaults to "missed".
func (s *MissedCallStore) Create(name *string, number string, timestamp int64, status string) (*model.MissedCall, error) {
	if status == "" {
		status = model.CallStatusMissed
	}

	result, err := s.db.Exec(
		`INSERT INTO missed_calls (name, number, timestamp, status) VALUES (?, ?, ?, ?)`,
		name, number, timestamp, status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert missed call: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MissedCallStore) GetByID(id int64) (*model.MissedCall, error) {
	row := s.db.QueryRow(`SELECT `+missedCallCols+` FROM missed_calls WHERE id = ?`, id)
	c, err := scanMissedCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get missed call: %w", err)
	}
	return c, nil
}

// List returns every missed call, newest client timestamp first.
func (s *MissedCallStore) List() ([]model.MissedCall, error) {
	rows, err := s.db.Query(`SELECT ` + missedCallCols + ` FROM missed_calls ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list missed calls: %w", err)
	}
	defer rows.Close()

	var calls []model.MissedCall
	for rows.Next() {
		c, err := scanMissedCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan missed call: %w", err)
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}
