package store

import (
	"database/sql"
	"fmt"

	"github.com/mdwarren/curlshop/internal/model"
)

type SubscriberStore struct {
	db *sql.DB
}

func NewSubscriberStore(db *sql.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

func scanSubscriber(scanner interface{ Scan(...any) error }) (*model.Subscriber, error) {
	var sub model.Subscriber
	var confirmed int
	err := scanner.Scan(&sub.ID, &sub.Email, &sub.Source, &confirmed, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.Confirmed = confirmed != 0
	return &sub, nil
}

const subscriberCols = `id, email, source, confirmed, created_at`

// Add records a newsletter signup. A repeat signup for the same email is
// silently ignored; the returned flag reports whether the subscriber was
// new.
func (s *SubscriberStore) Add(email, source string) (*model.Subscriber, bool, error) {
	email = NormalizeEmail(email)
	if source == "" {
		source = "unknown"
	}
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO subscribers (email, source) VALUES (?, ?)`,
		email, source,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert subscriber: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	sub, err := s.GetByEmail(email)
	if err != nil {
		return nil, false, err
	}
	return sub, n == 1, nil
}

func (s *SubscriberStore) GetByEmail(email string) (*model.Subscriber, error) {
	row := s.db.QueryRow(`SELECT `+subscriberCols+` FROM subscribers WHERE email = ?`, NormalizeEmail(email))
	sub, err := scanSubscriber(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber by email: %w", err)
	}
	return sub, nil
}

// Confirm marks a subscriber as double-opted-in.
func (s *SubscriberStore) Confirm(email string) error {
	_, err := s.db.Exec(`UPDATE subscribers SET confirmed = 1 WHERE email = ?`, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	return nil
}

// Count returns the number of subscribers.
func (s *SubscriberStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM subscribers`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return count, nil
}
