// Package reconcile applies payment-provider events to local order
// state. The webhook push path and the polling pull path both funnel
// into the same transition entry points, so whichever arrives first
// performs the transition and the other observes a no-op.
package reconcile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/mdwarren/curlshop/internal/model"
	"github.com/mdwarren/curlshop/internal/payment"
	"github.com/mdwarren/curlshop/internal/store"
)

// SessionGetter is the slice of the payment client the polling path
// needs.
type SessionGetter interface {
	GetSessionStatus(sessionID string) (*payment.SessionStatus, error)
}

// Policy carries the token and launch configuration the reconciler
// applies on completion.
type Policy struct {
	TokenTTL     time.Duration
	MaxDownloads int
	ReleaseDate  time.Time
	BaseURL      string
}

type Reconciler struct {
	orders    *store.OrderStore
	customers *store.CustomerStore
	tokens    *store.TokenStore
	events    *store.EventStore
	outbox    *store.EmailQueueStore
	payments  SessionGetter
	policy    Policy
	logger    *slog.Logger
}

func New(
	orders *store.OrderStore,
	customers *store.CustomerStore,
	tokens *store.TokenStore,
	events *store.EventStore,
	outbox *store.EmailQueueStore,
	payments SessionGetter,
	policy Policy,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		orders:    orders,
		customers: customers,
		tokens:    tokens,
		events:    events,
		outbox:    outbox,
		payments:  payments,
		policy:    policy,
		logger:    logger,
	}
}

// ActiveToken returns the order's live download token, or nil when
// none exists yet (pre-release, or never minted).
func (r *Reconciler) ActiveToken(orderID int64) (*model.DownloadToken, error) {
	return r.tokens.ActiveByOrder(orderID)
}

// HandleEvent dispatches a verified webhook event. Duplicate deliveries
// of the same event id are dropped; events for unknown sessions are
// logged no-ops. Only store failures propagate.
func (r *Reconciler) HandleEvent(event stripe.Event) error {
	fresh, err := r.events.MarkProcessed(event.ID, string(event.Type))
	if err != nil {
		return err
	}
	if !fresh {
		r.logger.Debug("duplicate webhook delivery", "event_id", event.ID, "type", event.Type)
		return nil
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			r.logger.Error("unmarshal checkout session", "event_id", event.ID, "error", err)
			return nil
		}
		paymentRef := ""
		if sess.PaymentIntent != nil {
			paymentRef = sess.PaymentIntent.ID
		}
		return r.CompleteSession(sess.ID, paymentRef)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			r.logger.Error("unmarshal checkout session", "event_id", event.ID, "error", err)
			return nil
		}
		return r.ExpireSession(sess.ID)

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			r.logger.Error("unmarshal charge", "event_id", event.ID, "error", err)
			return nil
		}
		if ch.PaymentIntent == nil {
			return nil
		}
		return r.RefundPayment(ch.PaymentIntent.ID)

	default:
		r.logger.Debug("ignoring webhook event", "type", event.Type)
	}
	return nil
}

// CompleteSession moves the order for a checkout session to completed,
// mints its download token (post-release), and queues the confirmation
// email. Safe to call from both delivery paths and more than once.
func (r *Reconciler) CompleteSession(sessionID, paymentRef string) error {
	order, applied, err := r.orders.UpdateStatus(sessionID, model.OrderCompleted, paymentRef)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			r.logger.Warn("completion rejected", "session_id", sessionID, "error", err)
			return nil
		}
		return err
	}
	if order == nil {
		r.logger.Warn("completion for unknown session", "session_id", sessionID)
		return nil
	}

	now := time.Now().UTC()
	released := !now.Before(r.policy.ReleaseDate)

	// Token mint is get-or-create, so a second completion event finds
	// the first token instead of minting another.
	if released {
		if _, err := r.tokens.GetOrCreateActive(order.ID, r.policy.TokenTTL, r.policy.MaxDownloads); err != nil {
			return err
		}
	}

	if applied {
		if err := r.queueConfirmation(order, released); err != nil {
			return err
		}
		r.logger.Info("order completed", "session_id", sessionID, "order", order.Reference, "released", released)
	}
	return nil
}

// ExpireSession ages a never-paid checkout session's order into expired.
func (r *Reconciler) ExpireSession(sessionID string) error {
	order, applied, err := r.orders.UpdateStatus(sessionID, model.OrderExpired, "")
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Session expiry racing a completed payment loses.
			r.logger.Debug("expiry after completion ignored", "session_id", sessionID)
			return nil
		}
		return err
	}
	if order == nil {
		r.logger.Warn("expiry for unknown session", "session_id", sessionID)
		return nil
	}
	if applied {
		r.logger.Info("order expired", "session_id", sessionID, "order", order.Reference)
	}
	return nil
}

// RefundPayment moves the order for a payment to refunded and revokes
// its download tokens.
func (r *Reconciler) RefundPayment(paymentRef string) error {
	order, err := r.orders.GetByPaymentRef(paymentRef)
	if err != nil {
		return err
	}
	if order == nil || order.StripeSessionID == nil {
		r.logger.Warn("refund for unknown payment", "payment_ref", paymentRef)
		return nil
	}

	_, applied, err := r.orders.UpdateStatus(*order.StripeSessionID, model.OrderRefunded, "")
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			r.logger.Warn("refund rejected", "payment_ref", paymentRef, "error", err)
			return nil
		}
		return err
	}
	if !applied {
		return nil
	}

	if err := r.tokens.RevokeByOrder(order.ID); err != nil {
		return err
	}
	r.logger.Info("order refunded", "order", order.Reference)
	return nil
}

// ConfirmSession is the polling path: it asks Stripe whether the session
// has been paid and, if so, performs the same completion the webhook
// would. Returns the current order either way.
func (r *Reconciler) ConfirmSession(sessionID string) (*model.Order, *payment.SessionStatus, error) {
	status, err := r.payments.GetSessionStatus(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if status.Paid {
		if err := r.CompleteSession(sessionID, status.PaymentRef); err != nil {
			return nil, nil, err
		}
	}
	order, err := r.orders.GetBySessionID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return order, status, nil
}

// ReleaseDue is the launch job: once the release date has passed, every
// completed order without a download token gets one, plus its
// download-ready email. Returns how many orders were released.
func (r *Reconciler) ReleaseDue() (int, error) {
	if time.Now().UTC().Before(r.policy.ReleaseDate) {
		return 0, nil
	}
	orders, err := r.orders.CompletedWithoutTokens()
	if err != nil {
		return 0, err
	}

	released := 0
	for _, order := range orders {
		token, err := r.tokens.GetOrCreateActive(order.ID, r.policy.TokenTTL, r.policy.MaxDownloads)
		if err != nil {
			return released, err
		}
		customer, err := r.customers.GetByID(order.CustomerID)
		if err != nil {
			return released, err
		}
		if customer != nil {
			_, err = r.outbox.Enqueue(customer.Email, "Your eBook is ready to download", "download_ready",
				downloadReadyPayload(&order, token.Token, r.policy.BaseURL), time.Now().UTC())
			if err != nil {
				return released, err
			}
		}
		released++
	}
	if released > 0 {
		r.logger.Info("launch release", "orders", released)
	}
	return released, nil
}

func (r *Reconciler) queueConfirmation(order *model.Order, released bool) error {
	customer, err := r.customers.GetByID(order.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return nil
	}

	if released {
		token, err := r.tokens.ActiveByOrder(order.ID)
		if err != nil {
			return err
		}
		tokenValue := ""
		if token != nil {
			tokenValue = token.Token
		}
		_, err = r.outbox.Enqueue(customer.Email, "Your order is confirmed", "download_ready",
			downloadReadyPayload(order, tokenValue, r.policy.BaseURL), time.Now().UTC())
		return err
	}

	_, err = r.outbox.Enqueue(customer.Email, "Your pre-order is confirmed", "order_confirmation",
		map[string]any{
			"reference":    order.Reference,
			"amount_cents": order.AmountCents,
			"portal_url":   r.policy.BaseURL + "/orders",
			"release_date": r.policy.ReleaseDate.Format(time.RFC3339),
		}, time.Now().UTC())
	return err
}

func downloadReadyPayload(order *model.Order, token, baseURL string) map[string]any {
	return map[string]any{
		"reference":    order.Reference,
		"amount_cents": order.AmountCents,
		"portal_url":   baseURL + "/orders",
		"download_url": baseURL + "/api/download?token=" + token,
	}
}
