// Package relay implements the email relay: parse an inbound message, post a
// summary to a chat webhook, forward the original to a secondary mailbox, and
// report any failure back to the same webhook once.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"net/url"

	"github.com/google/uuid"

	"github.com/shineum/email-relay/internal/email"
	"github.com/shineum/email-relay/internal/parser"
)

var errNoForwarder = errors.New("no forwarder configured")

// Config is the per-handler relay configuration.
type Config struct {
	// WebhookURL receives both notifications and error reports. Required.
	WebhookURL string

	// ForwardAddress is the secondary mailbox. Empty disables forwarding.
	ForwardAddress string
}

// Validate checks the configuration and returns a *ConfigurationError for the
// first problem found.
func (c Config) Validate() error {
	if c.WebhookURL == "" {
		return &ConfigurationError{Field: "webhook URL", Reason: "is missing"}
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Field: "webhook URL", Reason: "must be an absolute http(s) URL"}
	}
	if c.ForwardAddress != "" {
		if _, err := mail.ParseAddress(c.ForwardAddress); err != nil {
			return &ConfigurationError{Field: "forward address", Reason: fmt.Sprintf("is invalid: %v", err)}
		}
	}
	return nil
}

// Notifier posts a text message to a chat webhook.
type Notifier interface {
	Notify(ctx context.Context, webhookURL, text string) error
	Name() string
}

// Handler relays inbound email events. It keeps no state between calls and
// is safe for concurrent use when its Notifier is.
type Handler struct {
	cfg      Config
	notifier Notifier
	parse    func(io.Reader) (*email.Email, error)
}

// New creates a Handler that notifies through n.
func New(cfg Config, n Notifier) *Handler {
	return &Handler{
		cfg:      cfg,
		notifier: n,
		parse:    parser.Parse,
	}
}

// Handle processes one event. It returns a *ConfigurationError, before any
// parsing or network activity, when the configuration is unusable. Every
// later failure is reported to the webhook once and Handle returns nil.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	if err := h.cfg.Validate(); err != nil {
		return err
	}

	id := uuid.New().String()
	if err := h.relay(ctx, id, ev); err != nil {
		h.report(ctx, id, ev, err)
		return nil
	}

	slog.Info("email relayed",
		"invocation_id", id,
		"from", ev.From(),
		"to", ev.To(),
		"notifier", h.notifier.Name(),
		"forwarded", h.cfg.ForwardAddress != "",
	)
	return nil
}

func (h *Handler) relay(ctx context.Context, id string, ev Event) error {
	msg, err := h.parse(ev.Raw())
	if err != nil {
		return &ParseError{Err: err}
	}

	text := Format(ev.From(), ev.To(), msg)
	if err := h.notifier.Notify(ctx, h.cfg.WebhookURL, text); err != nil {
		return &DeliveryError{Notifier: h.notifier.Name(), Err: err}
	}

	if h.cfg.ForwardAddress == "" {
		slog.Debug("forwarding disabled, no forward address configured", "invocation_id", id)
		return nil
	}

	if err := ev.Forward(ctx, h.cfg.ForwardAddress); err != nil {
		return &ForwardError{
			Forwarder: forwarderName(ev),
			Address:   h.cfg.ForwardAddress,
			Err:       err,
		}
	}
	return nil
}

// report makes the single best-effort error notification for err.
func (h *Handler) report(ctx context.Context, id string, ev Event, err error) {
	kind := Kind("unknown")
	var ke kinded
	if errors.As(err, &ke) {
		kind = ke.Kind()
	}

	slog.Error("email relay failed",
		"invocation_id", id,
		"kind", kind,
		"from", ev.From(),
		"to", ev.To(),
		"error", err,
	)

	text := ReportText(kind, ev.From(), ev.To(), err)
	if notifyErr := h.notifier.Notify(ctx, h.cfg.WebhookURL, text); notifyErr != nil {
		slog.Warn("failed to report relay error",
			"invocation_id", id,
			"notifier", h.notifier.Name(),
			"error", notifyErr,
		)
	}
}

// ReportText renders the error notification posted when relaying fails.
func ReportText(kind Kind, from, to string, err error) string {
	return fmt.Sprintf("⚠️ *Email Relay Error* (%s)\n\nFrom: %s\nTo: %s\n\n```%v```", kind, from, to, err)
}

func forwarderName(ev Event) string {
	if n, ok := ev.(interface{ ForwarderName() string }); ok {
		return n.ForwarderName()
	}
	return "event"
}
