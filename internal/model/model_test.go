package model

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderPending, OrderCompleted},
		{OrderPending, OrderExpired},
		{OrderCompleted, OrderRefunded},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to OrderStatus }{
		{OrderCompleted, OrderPending},
		{OrderCompleted, OrderExpired},
		{OrderExpired, OrderCompleted},
		{OrderExpired, OrderRefunded},
		{OrderRefunded, OrderCompleted},
		{OrderPending, OrderRefunded},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestDownloadTokenActive(t *testing.T) {
	now := time.Now().UTC()
	tok := DownloadToken{DownloadCount: 0, MaxDownloads: 3, ExpiresAt: now.Add(time.Hour)}
	if !tok.Active(now) {
		t.Error("fresh token should be active")
	}

	tok.DownloadCount = 3
	if tok.Active(now) {
		t.Error("exhausted token should not be active")
	}

	tok = DownloadToken{DownloadCount: 0, MaxDownloads: 3, ExpiresAt: now.Add(-time.Minute)}
	if tok.Active(now) {
		t.Error("expired token should not be active")
	}
}

func TestDownloadTokenRemaining(t *testing.T) {
	tok := DownloadToken{DownloadCount: 2, MaxDownloads: 3}
	if got := tok.Remaining(); got != 1 {
		t.Errorf("Remaining() = %d, want 1", got)
	}
	tok.DownloadCount = 5
	if got := tok.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0 when over the limit", got)
	}
}
