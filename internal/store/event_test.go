package store

import "testing"

func TestEventMarkProcessed(t *testing.T) {
	db := setupTestDB(t)
	s := NewEventStore(db)

	fresh, err := s.MarkProcessed("evt_1", "checkout.session.completed")
	if err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if !fresh {
		t.Error("expected fresh = true for first delivery")
	}

	dup, err := s.MarkProcessed("evt_1", "checkout.session.completed")
	if err != nil {
		t.Fatalf("mark duplicate: %v", err)
	}
	if dup {
		t.Error("expected fresh = false for redelivery")
	}
}

func TestEventSeen(t *testing.T) {
	db := setupTestDB(t)
	s := NewEventStore(db)

	seen, err := s.Seen("evt_2")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Error("expected unseen before processing")
	}

	s.MarkProcessed("evt_2", "charge.refunded")
	seen, err = s.Seen("evt_2")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen {
		t.Error("expected seen after processing")
	}
}
