// Package notifier holds helpers shared by the chat notifiers.
package notifier

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/shineum/email-relay/internal/relay"
)

// Limited spaces out posts from a wrapped notifier to stay under a chat
// webhook's rate limit (Slack allows about one message per second).
type Limited struct {
	next    relay.Notifier
	limiter *rate.Limiter
}

// NewLimited wraps next so that at most perSecond posts are made per second,
// with bursts of up to burst posts. A burst below one is treated as one.
func NewLimited(next relay.Notifier, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Notify waits for the limiter and then posts through the wrapped notifier.
// It fails without posting if ctx ends first.
func (l *Limited) Notify(ctx context.Context, webhookURL, text string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Notify(ctx, webhookURL, text)
}

// Name returns the wrapped notifier's name.
func (l *Limited) Name() string {
	return l.next.Name()
}
