package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// MailchimpClient adds captured leads to the marketing list. Sync is
// best-effort: the subscriber row is the source of truth and a failed
// sync is logged, not surfaced to the visitor.
type MailchimpClient struct {
	apiKey     string
	listID     string
	apiURL     string
	httpClient *http.Client
}

type MailchimpOption func(*MailchimpClient)

func WithMailchimpAPIURL(url string) MailchimpOption {
	return func(c *MailchimpClient) {
		c.apiURL = url
	}
}

func WithMailchimpHTTPClient(h *http.Client) MailchimpOption {
	return func(c *MailchimpClient) {
		c.httpClient = h
	}
}

func NewMailchimpClient(apiKey, listID, server string, opts ...MailchimpOption) *MailchimpClient {
	c := &MailchimpClient{
		apiKey:     apiKey,
		listID:     listID,
		apiURL:     fmt.Sprintf("https://%s.api.mailchimp.com/3.0", server),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MailchimpClient) Configured() bool {
	return c.apiKey != "" && c.listID != ""
}

type mailchimpMember struct {
	EmailAddress string   `json:"email_address"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags,omitempty"`
}

// Subscribe adds an email to the list with pending status, which
// triggers Mailchimp's own double-opt-in confirmation.
func (c *MailchimpClient) Subscribe(email, source string) error {
	if !c.Configured() {
		return fmt.Errorf("mailchimp client not configured")
	}

	member := mailchimpMember{
		EmailAddress: email,
		Status:       "pending",
	}
	if source != "" {
		member.Tags = []string{source}
	}
	body, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}

	url := fmt.Sprintf("%s/lists/%s/members", c.apiURL, c.listID)
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("anystring", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer resp.Body.Close()

	// 400 with "Member Exists" is fine; repeat signups are expected.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("mailchimp API error: status %d", resp.StatusCode)
	}
	return nil
}
