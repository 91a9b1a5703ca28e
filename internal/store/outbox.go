package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/drivemode/internal/model"
)

type OutboxStore struct {
	db *sql.DB
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

const outboxCols = `id, topic, payload, status, attempts, last_error, next_attempt_at, created_at, delivered_at`

func scanOutbox(scanner interface{ Scan(...any) error }) (*model.OutboxMessage, error) {
	var m model.OutboxMessage
	var payload string
	var nextAt, createdAt int64
	var deliveredAt sql.NullInt64

	err := scanner.Scan(&m.ID, &m.Topic, &payload, &m.Status, &m.Attempts, &m.LastError, &nextAt, &createdAt, &deliveredAt)
	if err != nil {
		return nil, err
	}

	m.Payload = json.RawMessage(payload)
	m.NextAttemptAt = time.UnixMilli(nextAt).UTC()
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	if deliveredAt.Valid {
		t := time.UnixMilli(deliveredAt.Int64).UTC()
		m.DeliveredAt = &t
	}
	return &m, nil
}

// Enqueue stores a pending message that is due immediately.
func (s *OutboxStore) Enqueue(topic string, payload []byte, now time.Time) (*model.OutboxMessage, error) {
	id := uuid.NewString()
	ms := now.UnixMilli()
	_, err := s.db.Exec(
		`INSERT INTO outbox_messages (id, topic, payload, status, next_attempt_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, topic, string(payload), model.OutboxStatusPending, ms, ms,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return s.GetByID(id)
}

func (s *OutboxStore) GetByID(id string) (*model.OutboxMessage, error) {
	m, err := scanOutbox(s.db.QueryRow(`SELECT `+outboxCols+` FROM outbox_messages WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox message: %w", err)
	}
	return m, nil
}

// ListDue returns pending messages whose next attempt is at or before now, oldest first.
func (s *OutboxStore) ListDue(now time.Time, limit int) ([]model.OutboxMessage, error) {
	rows, err := s.db.Query(
		`SELECT `+outboxCols+` FROM outbox_messages
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY created_at, id LIMIT ?`,
		model.OutboxStatusPending, now.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due outbox messages: %w", err)
	}
	defer rows.Close()
	return scanOutboxRows(rows)
}

// ListByStatus returns messages with the given status, newest first.
func (s *OutboxStore) ListByStatus(status string, limit int) ([]model.OutboxMessage, error) {
	rows, err := s.db.Query(
		`SELECT `+outboxCols+` FROM outbox_messages WHERE status = ? ORDER BY created_at DESC, id LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outbox messages: %w", err)
	}
	defer rows.Close()
	return scanOutboxRows(rows)
}

func scanOutboxRows(rows *sql.Rows) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (s *OutboxStore) MarkDelivered(id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE outbox_messages SET status = ?, attempts = attempts + 1, last_error = '', delivered_at = ? WHERE id = ?`,
		model.OutboxStatusDelivered, at.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox message delivered: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (s *OutboxStore) MarkRetry(id string, lastErr string, next time.Time) error {
	_, err := s.db.Exec(
		`UPDATE outbox_messages SET attempts = attempts + 1, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		lastErr, next.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox message retry: %w", err)
	}
	return nil
}

// MarkFailed records the final failed attempt. The message is not retried again.
func (s *OutboxStore) MarkFailed(id string, lastErr string) error {
	_, err := s.db.Exec(
		`UPDATE outbox_messages SET status = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		model.OutboxStatusFailed, lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}

// Requeue makes a failed message pending again with a fresh attempt budget.
func (s *OutboxStore) Requeue(id string, now time.Time) (*model.OutboxMessage, error) {
	result, err := s.db.Exec(
		`UPDATE outbox_messages SET status = ?, attempts = 0, next_attempt_at = ? WHERE id = ? AND status = ?`,
		model.OutboxStatusPending, now.UnixMilli(), id, model.OutboxStatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("requeue outbox message: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// CountByStatus returns the number of messages per status.
func (s *OutboxStore) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM outbox_messages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteDeliveredBefore removes delivered messages older than the cutoff.
func (s *OutboxStore) DeleteDeliveredBefore(before time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM outbox_messages WHERE status = ? AND delivered_at < ?`,
		model.OutboxStatusDelivered, before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox messages: %w", err)
	}
	return result.RowsAffected()
}
