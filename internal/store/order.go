package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mdwarren/curlshop/internal/model"
)

// ErrInvalidTransition is returned when a status update would move an
// order backward (e.g. completed -> pending). Repeating the current
// status is a no-op, not an error.
var ErrInvalidTransition = errors.New("invalid order status transition")

type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func scanOrder(scanner interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var sessionID, paymentRef, coupon sql.NullString
	var completedAt sql.NullTime
	err := scanner.Scan(
		&o.ID, &o.Reference, &o.CustomerID, &sessionID, &paymentRef,
		&o.ProductType, &o.AmountCents, &o.Currency, &coupon, &o.Status,
		&o.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		o.StripeSessionID = &sessionID.String
	}
	if paymentRef.Valid {
		o.StripePaymentRef = &paymentRef.String
	}
	if coupon.Valid {
		o.Coupon = &coupon.String
	}
	if completedAt.Valid {
		o.CompletedAt = &completedAt.Time
	}
	return &o, nil
}

const orderCols = `id, reference, customer_id, stripe_session_id, stripe_payment_ref, product_type, amount_cents, currency, coupon, status, created_at, completed_at`

// CreateParams carries the fields recorded at checkout initiation.
type CreateParams struct {
	CustomerID  int64
	SessionID   string
	ProductType string
	AmountCents int64
	Currency    string
	Coupon      string
}

// Create inserts a pending order for a checkout session. A second create
// for the same session id is a no-op that returns the existing row, so a
// retried checkout never produces two orders for one session.
func (s *OrderStore) Create(p CreateParams) (*model.Order, error) {
	if p.Currency == "" {
		p.Currency = "usd"
	}
	var coupon any
	if p.Coupon != "" {
		coupon = p.Coupon
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO orders (reference, customer_id, stripe_session_id, product_type, amount_cents, currency, coupon)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), p.CustomerID, p.SessionID, p.ProductType, p.AmountCents, p.Currency, coupon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	// IGNORE means the session already had an order; either way the row
	// for this session is the one to hand back.
	return s.GetBySessionID(p.SessionID)
}

func (s *OrderStore) GetByID(id int64) (*model.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderCols+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) GetBySessionID(sessionID string) (*model.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderCols+` FROM orders WHERE stripe_session_id = ?`, sessionID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by session: %w", err)
	}
	return o, nil
}

func (s *OrderStore) GetByPaymentRef(paymentRef string) (*model.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderCols+` FROM orders WHERE stripe_payment_ref = ?`, paymentRef)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by payment ref: %w", err)
	}
	return o, nil
}

// UpdateStatus applies a status transition to the order for the given
// checkout session. The transition table is monotonic; the whole
// read-check-write runs in one transaction with a compare-and-set UPDATE
// so racing webhook and polling paths cannot both apply it. Returns the
// order and whether this call performed the transition (false means it
// was already in the target state). A nil order means no such session.
func (s *OrderStore) UpdateStatus(sessionID string, newStatus model.OrderStatus, paymentRef string) (*model.Order, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+orderCols+` FROM orders WHERE stripe_session_id = ?`, sessionID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get order for update: %w", err)
	}

	if o.Status == newStatus {
		return o, false, nil
	}
	if !model.CanTransition(o.Status, newStatus) {
		return o, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
	}

	var ref any
	if paymentRef != "" {
		ref = paymentRef
	} else if o.StripePaymentRef != nil {
		ref = *o.StripePaymentRef
	}
	var completedAt any
	if newStatus == model.OrderCompleted {
		completedAt = time.Now().UTC()
	} else if o.CompletedAt != nil {
		// Retained on refund for audit.
		completedAt = *o.CompletedAt
	}

	result, err := tx.Exec(
		`UPDATE orders SET status = ?, stripe_payment_ref = ?, completed_at = ?
		 WHERE stripe_session_id = ? AND status = ?`,
		newStatus, ref, completedAt, sessionID, o.Status,
	)
	if err != nil {
		return nil, false, fmt.Errorf("update order status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Lost the race inside the window; treat as no-op.
		return o, false, tx.Commit()
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	updated, err := s.GetBySessionID(sessionID)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// CompletedByEmail returns completed orders for a customer email, newest
// first. Refunded orders are excluded: the portal only shows purchases
// that still grant downloads.
func (s *OrderStore) CompletedByEmail(email string) ([]model.Order, error) {
	rows, err := s.db.Query(
		`SELECT o.id, o.reference, o.customer_id, o.stripe_session_id, o.stripe_payment_ref,
		        o.product_type, o.amount_cents, o.currency, o.coupon, o.status, o.created_at, o.completed_at
		 FROM orders o
		 JOIN customers c ON o.customer_id = c.id
		 WHERE c.email = ? AND o.status = ?
		 ORDER BY o.created_at DESC`,
		NormalizeEmail(email), model.OrderCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("completed orders by email: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// CompletedWithoutTokens returns completed orders that have no download
// token yet. The launch job drains this at release time.
func (s *OrderStore) CompletedWithoutTokens() ([]model.Order, error) {
	rows, err := s.db.Query(
		`SELECT o.id, o.reference, o.customer_id, o.stripe_session_id, o.stripe_payment_ref,
		        o.product_type, o.amount_cents, o.currency, o.coupon, o.status, o.created_at, o.completed_at
		 FROM orders o
		 LEFT JOIN download_tokens dt ON o.id = dt.order_id
		 WHERE o.status = ? AND dt.id IS NULL`,
		model.OrderCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("completed orders without tokens: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
