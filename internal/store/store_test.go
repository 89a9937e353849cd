package store

import (
	"database/sql"
	"testing"

	"github.com/mdwarren/curlshop/internal/database"
)

// setupTestDB opens an in-memory database. Connections are pinned to one
// because each :memory: connection is its own database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestOrder creates a customer and a pending order for it.
func newTestOrder(t *testing.T, db *sql.DB, email, sessionID string) (*OrderStore, int64) {
	t.Helper()
	cs := NewCustomerStore(db)
	os := NewOrderStore(db)
	c, err := cs.GetOrCreate(email, "")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	o, err := os.Create(CreateParams{
		CustomerID:  c.ID,
		SessionID:   sessionID,
		ProductType: "ebook",
		AmountCents: 1999,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return os, o.ID
}
