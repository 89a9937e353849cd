package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mdwarren/curlshop/internal/model"
)

type CustomerStore struct {
	db *sql.DB
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// NormalizeEmail lowercases and trims an email address. Every store path
// that touches customer or subscriber email goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanCustomer(scanner interface{ Scan(...any) error }) (*model.Customer, error) {
	var c model.Customer
	var name sql.NullString
	err := scanner.Scan(&c.ID, &c.Email, &name, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		c.Name = &name.String
	}
	return &c, nil
}

const customerCols = `id, email, name, created_at`

// GetOrCreate returns the customer with the given email, creating it on
// first sight. A non-empty name fills in a missing one but never
// overwrites an existing value.
func (s *CustomerStore) GetOrCreate(email, name string) (*model.Customer, error) {
	email = NormalizeEmail(email)
	var nameVal any
	if name != "" {
		nameVal = name
	}
	_, err := s.db.Exec(
		`INSERT INTO customers (email, name) VALUES (?, ?)
		 ON CONFLICT(email) DO UPDATE SET name = COALESCE(customers.name, excluded.name)`,
		email, nameVal,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *CustomerStore) GetByEmail(email string) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE email = ?`, NormalizeEmail(email))
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return c, nil
}

func (s *CustomerStore) GetByID(id int64) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}
