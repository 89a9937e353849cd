package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mdwarren/curlshop/internal/store"
)

// dispatchBatch bounds how many due emails one dispatch pass picks up.
const dispatchBatch = 25

// Dispatcher drains the email outbox. Each due entry is rendered and
// sent with a short retry; transient provider failures push the entry
// back for the next pass until it exhausts its attempts.
type Dispatcher struct {
	outbox *store.EmailQueueStore
	client *Client
	logger *slog.Logger
}

func NewDispatcher(outbox *store.EmailQueueStore, client *Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{outbox: outbox, client: client, logger: logger}
}

// Dispatch processes one batch of due emails. Returns how many were
// delivered.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	due, err := d.outbox.Due(time.Now().UTC(), dispatchBatch)
	if err != nil {
		return 0, err
	}

	if len(due) > 0 && !d.client.Configured() {
		// Dev mode: log instead of sending, like an unconfigured
		// provider sandbox. Entries stay pending.
		for _, q := range due {
			d.logger.Info("email (unconfigured, not sent)", "to", q.Recipient, "subject", q.Subject, "template", q.Template)
		}
		return 0, nil
	}

	sent := 0
	for _, q := range due {
		html, text, err := Render(q.Template, q.Payload)
		if err != nil {
			// Bad payload never becomes sendable; cancel it.
			d.logger.Error("render queued email", "id", q.ID, "template", q.Template, "error", err)
			if err := d.outbox.Cancel(q.ID); err != nil {
				return sent, err
			}
			continue
		}

		backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := d.client.Send(q.Recipient, q.Subject, html, text); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if sendErr != nil {
			d.logger.Warn("email delivery failed", "id", q.ID, "to", q.Recipient, "error", sendErr)
			if err := d.outbox.MarkFailed(q.ID, sendErr); err != nil {
				return sent, err
			}
			continue
		}

		if err := d.outbox.MarkSent(q.ID); err != nil {
			return sent, err
		}
		d.logger.Info("email sent", "to", q.Recipient, "template", q.Template)
		sent++
	}
	return sent, nil
}

// Run dispatches on a ticker until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := d.Dispatch(ctx); err != nil {
				d.logger.Error("dispatch emails", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
