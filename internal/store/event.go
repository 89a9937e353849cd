package store

import (
	"database/sql"
	"fmt"
)

// EventStore tracks processed payment-provider webhook event ids so a
// redelivered event is recognized and skipped.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// MarkProcessed records an event id. Returns false when the event was
// already recorded, in which case the caller should treat the delivery
// as a duplicate.
func (s *EventStore) MarkProcessed(eventID, eventType string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO webhook_events (event_id, event_type) VALUES (?, ?)`,
		eventID, eventType,
	)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Seen reports whether an event id has been processed before.
func (s *EventStore) Seen(eventID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM webhook_events WHERE event_id = ?`, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup webhook event: %w", err)
	}
	return true, nil
}
