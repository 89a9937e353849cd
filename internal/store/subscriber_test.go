package store

import "testing"

func TestSubscriberAdd(t *testing.T) {
	db := setupTestDB(t)
	s := NewSubscriberStore(db)

	sub, created, err := s.Add("Reader@Example.com", "newsletter")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !created {
		t.Error("expected created = true for first signup")
	}
	if sub.Email != "reader@example.com" {
		t.Errorf("email = %q, want normalized", sub.Email)
	}
	if sub.Source != "newsletter" {
		t.Errorf("source = %q, want newsletter", sub.Source)
	}
	if sub.Confirmed {
		t.Error("expected unconfirmed on signup")
	}
}

func TestSubscriberAddDuplicate(t *testing.T) {
	db := setupTestDB(t)
	s := NewSubscriberStore(db)

	first, _, _ := s.Add("reader@example.com", "hero")
	second, created, err := s.Add("reader@example.com", "footer")
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if created {
		t.Error("expected created = false for repeat signup")
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	// Original source wins.
	if second.Source != "hero" {
		t.Errorf("source = %q, want hero", second.Source)
	}
}

func TestSubscriberDefaultSource(t *testing.T) {
	db := setupTestDB(t)
	s := NewSubscriberStore(db)

	sub, _, err := s.Add("reader@example.com", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sub.Source != "unknown" {
		t.Errorf("source = %q, want unknown", sub.Source)
	}
}

func TestSubscriberConfirm(t *testing.T) {
	db := setupTestDB(t)
	s := NewSubscriberStore(db)

	s.Add("reader@example.com", "newsletter")
	if err := s.Confirm("READER@example.com"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sub, _ := s.GetByEmail("reader@example.com")
	if !sub.Confirmed {
		t.Error("expected confirmed after Confirm")
	}
}

func TestSubscriberCount(t *testing.T) {
	db := setupTestDB(t)
	s := NewSubscriberStore(db)

	s.Add("a@example.com", "x")
	s.Add("b@example.com", "y")
	s.Add("a@example.com", "z")

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
