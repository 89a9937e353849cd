package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mdwarren/curlshop/internal/email"
	"github.com/mdwarren/curlshop/internal/store"
)

func setupSubscribe(t *testing.T, mailchimpURL string) (*SubscribeHandler, *store.SubscriberStore) {
	t.Helper()
	db := setupDB(t)
	subscribers := store.NewSubscriberStore(db)
	var mc *email.MailchimpClient
	if mailchimpURL != "" {
		mc = email.NewMailchimpClient("key-us1", "list123", "us1", email.WithMailchimpAPIURL(mailchimpURL))
	} else {
		mc = email.NewMailchimpClient("", "", "")
	}
	return NewSubscribeHandler(subscribers, mc, testLogger()), subscribers
}

func postSubscribe(h *SubscribeHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Subscribe(rec, req)
	return rec
}

func TestSubscribe(t *testing.T) {
	h, subscribers := setupSubscribe(t, "")

	rec := postSubscribe(h, `{"email":"new@example.com","source":"landing"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	sub, err := subscribers.GetByEmail("new@example.com")
	if err != nil {
		t.Fatalf("get subscriber: %v", err)
	}
	if sub == nil || sub.Source != "landing" {
		t.Fatalf("subscriber = %+v", sub)
	}
}

func TestSubscribeDuplicate(t *testing.T) {
	h, _ := setupSubscribe(t, "")

	if rec := postSubscribe(h, `{"email":"new@example.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first subscribe: status = %d", rec.Code)
	}
	rec := postSubscribe(h, `{"email":"new@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate: status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Already subscribed") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSubscribeInvalidEmail(t *testing.T) {
	h, _ := setupSubscribe(t, "")

	for _, body := range []string{`{"email":"not-an-email"}`, `{"email":""}`, `{`} {
		if rec := postSubscribe(h, body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSubscribeSyncsToMailchimp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	h, _ := setupSubscribe(t, srv.URL)
	if rec := postSubscribe(h, `{"email":"new@example.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if calls != 1 {
		t.Errorf("mailchimp calls = %d, want 1", calls)
	}
}

func TestSubscribeSurvivesMailchimpOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h, _ := setupSubscribe(t, srv.URL)
	if rec := postSubscribe(h, `{"email":"new@example.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, provider outage must not fail signup", rec.Code)
	}
}
