package imappoll

import (
	"context"
	"log/slog"
	"time"

	"github.com/shineum/email-relay/internal/relay"
)

// Mailbox is the source of messages for a Poller.
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]Fetched, error)
	MarkSeen(ctx context.Context, uids []uint32) error
}

// Handler processes one received message.
type Handler interface {
	Handle(ctx context.Context, ev relay.Event) error
}

// Poller checks a mailbox on a fixed interval and relays every unseen
// message once.
type Poller struct {
	mailbox   Mailbox
	handler   Handler
	forwarder relay.Forwarder
	interval  time.Duration
}

// NewPoller creates a Poller. A non-positive interval defaults to one minute.
func NewPoller(mb Mailbox, h Handler, fwd relay.Forwarder, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		mailbox:   mb,
		handler:   h,
		forwarder: fwd,
		interval:  interval,
	}
}

// Run polls immediately and then on every interval until ctx is cancelled.
// Poll errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("IMAP poller started", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if n, err := p.PollOnce(ctx); err != nil {
			slog.Error("IMAP poll failed", "error", err)
		} else if n > 0 {
			slog.Info("IMAP poll relayed messages", "count", n)
		}

		select {
		case <-ctx.Done():
			slog.Info("IMAP poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce relays the currently unseen messages and marks the handled ones
// seen. A message the handler rejects stays unseen for the next poll. It
// returns the number of messages handled.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	msgs, err := p.mailbox.FetchUnseen(ctx)
	if err != nil {
		return 0, err
	}

	// Fetched messages are relayed and flagged even if ctx is cancelled
	// meanwhile.
	ctx = context.WithoutCancel(ctx)

	var handled []uint32
	for _, m := range msgs {
		ev := &relay.Message{
			Sender:    m.From,
			Recipient: m.To,
			Data:      m.Raw,
			Forwarder: p.forwarder,
		}
		if err := p.handler.Handle(ctx, ev); err != nil {
			slog.Error("relay rejected message", "uid", m.UID, "error", err)
			continue
		}
		handled = append(handled, m.UID)
	}

	if err := p.mailbox.MarkSeen(ctx, handled); err != nil {
		return len(handled), err
	}
	return len(handled), nil
}
