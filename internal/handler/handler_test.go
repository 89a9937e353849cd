package handler

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/mdwarren/curlshop/internal/database"
	"github.com/mdwarren/curlshop/internal/model"
	"github.com/mdwarren/curlshop/internal/store"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// completedOrder creates a customer with a completed ebook order and
// returns its id.
func completedOrder(t *testing.T, db *sql.DB, email, sessionID string) int64 {
	t.Helper()
	customers := store.NewCustomerStore(db)
	orders := store.NewOrderStore(db)
	c, err := customers.GetOrCreate(email, "")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := orders.Create(store.CreateParams{
		CustomerID:  c.ID,
		SessionID:   sessionID,
		ProductType: "ebook",
		AmountCents: 1999,
		Currency:    "usd",
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	o, _, err := orders.UpdateStatus(sessionID, model.OrderCompleted, "pi_"+sessionID)
	if err != nil {
		t.Fatalf("complete order: %v", err)
	}
	return o.ID
}
