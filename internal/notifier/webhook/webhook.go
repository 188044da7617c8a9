// Package webhook implements a notifier that posts {"text": ...} JSON to a
// generic chat webhook (Slack, Mattermost, Google Chat, Rocket.Chat).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// requestTimeout bounds a single webhook POST.
const requestTimeout = 30 * time.Second

// maxErrorBody caps how much of a rejected response is kept for the error.
const maxErrorBody = 512

// payload is the webhook request body.
type payload struct {
	Text string `json:"text"`
}

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned %s", e.Status)
	}
	return fmt.Sprintf("webhook returned %s: %s", e.Status, e.Body)
}

// Notifier posts messages with a plain HTTP client.
type Notifier struct {
	httpClient *http.Client
}

// New creates a Notifier with a 30 second request timeout.
func New() *Notifier {
	return &Notifier{httpClient: &http.Client{Timeout: requestTimeout}}
}

// NewWithClient creates a Notifier that uses client, used for testing.
func NewWithClient(client *http.Client) *Notifier {
	return &Notifier{httpClient: client}
}

// Notify posts text to webhookURL. Any 2xx response is success.
func (n *Notifier) Notify(ctx context.Context, webhookURL, text string) error {
	body, err := Encode(text)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   string(bytes.TrimSpace(respBody)),
	}
}

// Name returns the notifier name.
func (n *Notifier) Name() string {
	return "webhook"
}

// Encode returns the JSON request body for text.
func Encode(text string) ([]byte, error) {
	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return body, nil
}
