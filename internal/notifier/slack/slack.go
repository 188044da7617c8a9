// Package slack implements a notifier for Slack incoming webhooks using
// slack-go.
package slack

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// requestTimeout bounds a single webhook POST.
const requestTimeout = 30 * time.Second

// Options customizes how posted messages appear in the channel. Zero values
// keep the webhook's own defaults.
type Options struct {
	Username  string
	IconEmoji string
}

// Notifier posts messages to Slack incoming webhooks.
type Notifier struct {
	opts       Options
	httpClient *http.Client
}

// New creates a Notifier with a 30 second request timeout.
func New(opts Options) *Notifier {
	return &Notifier{
		opts:       opts,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// NewWithClient creates a Notifier that uses client, used for testing.
func NewWithClient(opts Options, client *http.Client) *Notifier {
	return &Notifier{opts: opts, httpClient: client}
}

// Notify posts text to the incoming webhook at webhookURL. Slack answers
// 200 on success; anything else is returned as an error.
func (n *Notifier) Notify(ctx context.Context, webhookURL, text string) error {
	msg := &slack.WebhookMessage{
		Text:      text,
		Username:  n.opts.Username,
		IconEmoji: n.opts.IconEmoji,
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, webhookURL, n.httpClient, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// Name returns the notifier name.
func (n *Notifier) Name() string {
	return "slack"
}
