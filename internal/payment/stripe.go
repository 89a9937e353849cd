// Package payment wraps the Stripe API: checkout session creation with
// coupon resolution, session status lookup for the polling path, and
// webhook signature verification.
package payment

import (
	"errors"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/mdwarren/curlshop/internal/catalog"
)

// ErrNotConfigured is returned when Stripe credentials are absent. The
// caller surfaces it as a service-unavailable condition rather than
// attempting an unauthenticated call.
var ErrNotConfigured = errors.New("stripe not configured")

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type Client struct {
	cfg    Config
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg, logger: logger}
}

// Configured reports whether a secret key is present.
func (c *Client) Configured() bool {
	return c.cfg.SecretKey != ""
}

// CheckoutIntent is what the checkout endpoint hands back to the client.
type CheckoutIntent struct {
	SessionID   string
	URL         string
	AmountCents int64
}

// CreateCheckoutSession creates a payment-mode checkout session for one
// product. A coupon code is resolved through Stripe and applied to the
// line-item amount; an invalid or unknown coupon is not fatal, the
// session simply carries the full price.
func (c *Client) CreateCheckoutSession(email string, product catalog.Product, couponCode string) (*CheckoutIntent, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	amount := product.PriceCents
	appliedCoupon := ""
	if couponCode != "" {
		discounted, err := c.resolveCoupon(product.PriceCents, couponCode)
		if err != nil {
			c.logger.Warn("coupon rejected, charging full price", "coupon", couponCode, "error", err)
		} else {
			amount = discounted
			appliedCoupon = couponCode
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(product.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(product.Name),
						Description: stripe.String(product.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(c.cfg.SuccessURL),
		CancelURL:     stripe.String(c.cfg.CancelURL),
	}
	params.AddMetadata("product_id", product.ID)
	params.AddMetadata("product_type", product.Type)
	if appliedCoupon != "" {
		params.AddMetadata("coupon", appliedCoupon)
	}

	sess, err := checksession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutIntent{
		SessionID:   sess.ID,
		URL:         sess.URL,
		AmountCents: amount,
	}, nil
}

// resolveCoupon looks a coupon up at Stripe and returns the discounted
// amount, clamped at zero.
func (c *Client) resolveCoupon(amountCents int64, code string) (int64, error) {
	cp, err := coupon.Get(code, nil)
	if err != nil {
		return 0, fmt.Errorf("resolve coupon: %w", err)
	}
	if !cp.Valid {
		return 0, fmt.Errorf("coupon %s no longer valid", code)
	}
	return catalog.ApplyCoupon(amountCents, cp.PercentOff, cp.AmountOff), nil
}

// SessionStatus is the polled view of a checkout session.
type SessionStatus struct {
	Paid          bool
	PaymentStatus string
	CustomerEmail string
	PaymentRef    string
	AmountCents   int64
}

// GetSessionStatus retrieves a checkout session, used by the polling
// path when the webhook has not arrived yet.
func (c *Client) GetSessionStatus(sessionID string) (*SessionStatus, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	sess, err := checksession.Get(sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	status := &SessionStatus{
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		PaymentStatus: string(sess.PaymentStatus),
		AmountCents:   sess.AmountTotal,
	}
	if sess.CustomerDetails != nil {
		status.CustomerEmail = sess.CustomerDetails.Email
	}
	if sess.PaymentIntent != nil {
		status.PaymentRef = sess.PaymentIntent.ID
	}
	return status, nil
}

// ConstructWebhookEvent verifies the signature and parses the event. A
// missing webhook secret fails closed: no webhook is accepted without
// verification.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.cfg.WebhookSecret == "" {
		return stripe.Event{}, errors.New("webhook secret not configured, rejecting event")
	}
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}
