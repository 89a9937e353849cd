package email

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mdwarren/curlshop/internal/database"
	"github.com/mdwarren/curlshop/internal/model"
	"github.com/mdwarren/curlshop/internal/store"
)

func setupOutbox(t *testing.T) (*sql.DB, *store.EmailQueueStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db, store.NewEmailQueueStore(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func queueDownloadReady(t *testing.T, outbox *store.EmailQueueStore, to string) *model.QueuedEmail {
	t.Helper()
	q, err := outbox.Enqueue(to, "Your eBook is ready", "download_ready", map[string]any{
		"reference":    "a1b2c3d4",
		"amount_cents": 1999,
		"portal_url":   "https://shop.example/orders",
		"download_url": "https://shop.example/api/download?token=abc",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return q
}

func TestDispatchSendsDueEmails(t *testing.T) {
	_, outbox := setupOutbox(t)
	queueDownloadReady(t, outbox, "a@example.com")
	queueDownloadReady(t, outbox, "b@example.com")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"id":"ok"}`))
	}))
	defer srv.Close()

	d := NewDispatcher(outbox, NewClient("key", "shop@example.com", "Shop", WithAPIURL(srv.URL)), testLogger())
	sent, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 2 || calls != 2 {
		t.Fatalf("sent=%d calls=%d, want 2 and 2", sent, calls)
	}

	due, err := outbox.Due(time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("queue should be drained, %d left", len(due))
	}
}

func TestDispatchUnconfiguredLeavesQueuePending(t *testing.T) {
	_, outbox := setupOutbox(t)
	queueDownloadReady(t, outbox, "a@example.com")

	d := NewDispatcher(outbox, NewClient("", "", ""), testLogger())
	sent, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}

	due, err := outbox.Due(time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatal("entry should remain pending for when the provider is configured")
	}
}

func TestDispatchProviderFailureMarksFailed(t *testing.T) {
	_, outbox := setupOutbox(t)
	q := queueDownloadReady(t, outbox, "a@example.com")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(outbox, NewClient("key", "shop@example.com", "Shop", WithAPIURL(srv.URL)), testLogger())
	sent, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}

	got, err := outbox.GetByID(q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.Status != model.EmailPending {
		t.Errorf("status = %q, want pending for retry", got.Status)
	}
}

func TestDispatchUnrenderableEmailIsCancelled(t *testing.T) {
	_, outbox := setupOutbox(t)
	q, err := outbox.Enqueue("a@example.com", "subject", "no_such_template", map[string]any{}, time.Now().UTC())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unrenderable email must not reach the provider")
	}))
	defer srv.Close()

	d := NewDispatcher(outbox, NewClient("key", "shop@example.com", "Shop", WithAPIURL(srv.URL)), testLogger())
	if _, err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	got, err := outbox.GetByID(q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.EmailCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
}
