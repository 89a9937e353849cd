package email

import (
	"encoding/json"
	"fmt"
)

// Render produces the HTML and plain-text bodies for a queued email
// from its template key and JSON payload.
func Render(template, payload string) (html, text string, err error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return "", "", fmt.Errorf("unmarshal payload: %w", err)
	}

	switch template {
	case "order_confirmation":
		return renderOrderConfirmation(data)
	case "download_ready":
		return renderDownloadReady(data)
	default:
		return "", "", fmt.Errorf("unknown email template %q", template)
	}
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func amount(data map[string]any) string {
	// JSON numbers arrive as float64.
	cents, _ := data["amount_cents"].(float64)
	return fmt.Sprintf("$%.2f", cents/100)
}

func shortRef(data map[string]any) string {
	ref := str(data, "reference")
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return ref
}

func renderOrderConfirmation(data map[string]any) (string, string, error) {
	ref := shortRef(data)
	portalURL := str(data, "portal_url")
	releaseDate := str(data, "release_date")

	html := fmt.Sprintf(
		`<h1>Your pre-order is confirmed!</h1>
<p>Your copy of <em>Curls &amp; Contemplation</em> has been secured.</p>
<p><strong>Order:</strong> %s<br><strong>Amount:</strong> %s</p>
<p>Your eBook will be delivered on %s. You'll receive download links by email, and they'll also be available in your order portal.</p>
<p><a href="%s">View Your Order Portal</a></p>`,
		ref, amount(data), releaseDate, portalURL,
	)
	text := fmt.Sprintf(
		"Your pre-order is confirmed!\n\nOrder: %s\nAmount: %s\n\nYour eBook will be delivered on %s.\nOrder portal: %s\n",
		ref, amount(data), releaseDate, portalURL,
	)
	return html, text, nil
}

func renderDownloadReady(data map[string]any) (string, string, error) {
	ref := shortRef(data)
	downloadURL := str(data, "download_url")
	portalURL := str(data, "portal_url")

	html := fmt.Sprintf(
		`<h1>Your eBook is ready!</h1>
<p>Thank you for your order (%s). Your copy of <em>Curls &amp; Contemplation</em> is ready to download.</p>
<p><a href="%s">Download your eBook</a></p>
<p>Download links allow a limited number of uses and expire after a week. You can always find a fresh link in your <a href="%s">order portal</a>.</p>`,
		ref, downloadURL, portalURL,
	)
	text := fmt.Sprintf(
		"Your eBook is ready!\n\nOrder: %s\nDownload: %s\n\nLinks allow a limited number of uses and expire after a week.\nOrder portal: %s\n",
		ref, downloadURL, portalURL,
	)
	return html, text, nil
}
