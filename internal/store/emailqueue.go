package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mdwarren/curlshop/internal/model"
)

// maxEmailAttempts is how many delivery attempts a queued email gets
// before it is marked failed for good.
const maxEmailAttempts = 5

// EmailQueueStore is the persistent outbox for transactional email.
// Enqueueing is cheap and transactional with the event that caused it;
// the dispatcher drains due rows in the background.
type EmailQueueStore struct {
	db *sql.DB
}

func NewEmailQueueStore(db *sql.DB) *EmailQueueStore {
	return &EmailQueueStore{db: db}
}

func scanQueuedEmail(scanner interface{ Scan(...any) error }) (*model.QueuedEmail, error) {
	var q model.QueuedEmail
	var lastError sql.NullString
	var sentAt sql.NullTime
	err := scanner.Scan(
		&q.ID, &q.Recipient, &q.Subject, &q.Template, &q.Payload,
		&q.ScheduledFor, &q.Status, &q.Attempts, &lastError, &sentAt, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastError.Valid {
		q.LastError = &lastError.String
	}
	if sentAt.Valid {
		q.SentAt = &sentAt.Time
	}
	return &q, nil
}

const emailQueueCols = `id, recipient, subject, template, payload, scheduled_for, status, attempts, last_error, sent_at, created_at`

// Enqueue schedules an email. Payload is marshaled to JSON and handed to
// the template at send time.
func (s *EmailQueueStore) Enqueue(recipient, subject, template string, payload any, scheduledFor time.Time) (*model.QueuedEmail, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal email payload: %w", err)
	}
	result, err := s.db.Exec(
		`INSERT INTO email_queue (recipient, subject, template, payload, scheduled_for) VALUES (?, ?, ?, ?, ?)`,
		NormalizeEmail(recipient), subject, template, string(data), scheduledFor.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert queued email: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EmailQueueStore) GetByID(id int64) (*model.QueuedEmail, error) {
	row := s.db.QueryRow(`SELECT `+emailQueueCols+` FROM email_queue WHERE id = ?`, id)
	q, err := scanQueuedEmail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queued email: %w", err)
	}
	return q, nil
}

// Due returns pending emails whose scheduled time has passed, oldest
// first.
func (s *EmailQueueStore) Due(now time.Time, limit int) ([]model.QueuedEmail, error) {
	rows, err := s.db.Query(
		`SELECT `+emailQueueCols+` FROM email_queue
		 WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC LIMIT ?`,
		model.EmailPending, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due emails: %w", err)
	}
	defer rows.Close()

	var due []model.QueuedEmail
	for rows.Next() {
		q, err := scanQueuedEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queued email: %w", err)
		}
		due = append(due, *q)
	}
	return due, rows.Err()
}

func (s *EmailQueueStore) MarkSent(id int64) error {
	_, err := s.db.Exec(
		`UPDATE email_queue SET status = ?, attempts = attempts + 1, sent_at = ? WHERE id = ?`,
		model.EmailSent, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure. The email stays pending until
// it exhausts its attempts, then flips to failed.
func (s *EmailQueueStore) MarkFailed(id int64, sendErr error) error {
	_, err := s.db.Exec(
		`UPDATE email_queue SET
		   attempts = attempts + 1,
		   last_error = ?,
		   status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		 WHERE id = ?`,
		sendErr.Error(), maxEmailAttempts, model.EmailFailed, id,
	)
	if err != nil {
		return fmt.Errorf("mark email failed: %w", err)
	}
	return nil
}

func (s *EmailQueueStore) Cancel(id int64) error {
	_, err := s.db.Exec(
		`UPDATE email_queue SET status = ? WHERE id = ? AND status = ?`,
		model.EmailCancelled, id, model.EmailPending,
	)
	if err != nil {
		return fmt.Errorf("cancel queued email: %w", err)
	}
	return nil
}
