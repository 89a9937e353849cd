package model

import "time"

// OrderStatus is the lifecycle state of a purchase attempt.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderExpired   OrderStatus = "expired"
	OrderRefunded  OrderStatus = "refunded"
)

// CanTransition reports whether an order may move from one status to
// another. Transitions are monotonic: pending -> completed|expired,
// completed -> refunded. Everything else is a backward or sideways move.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPending:
		return to == OrderCompleted || to == OrderExpired
	case OrderCompleted:
		return to == OrderRefunded
	default:
		return false
	}
}

type Customer struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID               int64       `json:"id"`
	Reference        string      `json:"reference"`
	CustomerID       int64       `json:"customer_id"`
	StripeSessionID  *string     `json:"stripe_session_id"`
	StripePaymentRef *string     `json:"stripe_payment_ref"`
	ProductType      string      `json:"product_type"`
	AmountCents      int64       `json:"amount_cents"`
	Currency         string      `json:"currency"`
	Coupon           *string     `json:"coupon"`
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	CompletedAt      *time.Time  `json:"completed_at"`
}

type DownloadToken struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"order_id"`
	Token         string    `json:"token"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
	Extensions    int       `json:"extensions"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Remaining returns how many downloads the token still allows.
func (t *DownloadToken) Remaining() int {
	if t.DownloadCount >= t.MaxDownloads {
		return 0
	}
	return t.MaxDownloads - t.DownloadCount
}

// Active reports whether the token is unexpired and under its cap.
func (t *DownloadToken) Active(now time.Time) bool {
	return t.DownloadCount < t.MaxDownloads && now.Before(t.ExpiresAt)
}

type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookEvent records a processed payment-provider event id so duplicate
// deliveries can be recognized.
type WebhookEvent struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ReceivedAt time.Time `json:"received_at"`
}

// EmailStatus is the delivery state of a queued outbound email.
type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailSent      EmailStatus = "sent"
	EmailFailed    EmailStatus = "failed"
	EmailCancelled EmailStatus = "cancelled"
)

type QueuedEmail struct {
	ID           int64       `json:"id"`
	Recipient    string      `json:"recipient"`
	Subject      string      `json:"subject"`
	Template     string      `json:"template"`
	Payload      string      `json:"payload"`
	ScheduledFor time.Time   `json:"scheduled_for"`
	Status       EmailStatus `json:"status"`
	Attempts     int         `json:"attempts"`
	LastError    *string     `json:"last_error"`
	SentAt       *time.Time  `json:"sent_at"`
	CreatedAt    time.Time   `json:"created_at"`
}
