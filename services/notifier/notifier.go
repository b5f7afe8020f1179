// Package notifier delivers sync-outcome alerts to the engine owner.
// Delivery is fire-and-forget; a failed alert is logged and dropped.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Notifier is the alert channel contract.
type Notifier interface {
	Notify(ctx context.Context, subject, message string)
}

// LogNotifier writes alerts to the process log. Used when no webhook is
// configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, subject, message string) {
	log.Printf("[Notifier] %s: %s", subject, message)
}

// WebhookNotifier posts alerts as JSON to a configured webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, subject, message string) {
	payload, err := json.Marshal(webhookPayload{
		Subject:   subject,
		Message:   message,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("[Notifier] Failed to encode alert: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		log.Printf("[Notifier] Failed to build alert request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("[Notifier] Failed to deliver alert %q: %v", subject, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("[Notifier] Alert %q rejected with status %d", subject, resp.StatusCode)
	}
}

// FromWebhookURL returns a webhook notifier when url is set, otherwise the
// log fallback.
func FromWebhookURL(url string) Notifier {
	if url == "" {
		return LogNotifier{}
	}
	return NewWebhookNotifier(url)
}
