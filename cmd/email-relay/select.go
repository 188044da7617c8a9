package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/email-relay/internal/config"
	"github.com/shineum/email-relay/internal/forwarder/graph"
	"github.com/shineum/email-relay/internal/forwarder/ses"
	"github.com/shineum/email-relay/internal/forwarder/stdout"
	"github.com/shineum/email-relay/internal/notifier"
	"github.com/shineum/email-relay/internal/notifier/slack"
	"github.com/shineum/email-relay/internal/notifier/webhook"
	"github.com/shineum/email-relay/internal/relay"
)

// selectNotifier chooses how chat notifications are posted, rate limited
// when a limit is configured.
func selectNotifier(cfg *config.Config) (relay.Notifier, error) {
	n, err := baseNotifier(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Webhook.RateLimit > 0 {
		slog.Info("rate limiting notifications", "per_second", cfg.Webhook.RateLimit)
		return notifier.NewLimited(n, cfg.Webhook.RateLimit, 1), nil
	}
	return n, nil
}

func baseNotifier(cfg *config.Config) (relay.Notifier, error) {
	switch cfg.Webhook.Notifier {
	case "", "webhook":
		slog.Info("using generic webhook notifier")
		return webhook.New(), nil

	case "slack":
		slog.Info("using Slack incoming webhook notifier",
			"username", cfg.Webhook.Username,
		)
		return slack.New(slack.Options{
			Username:  cfg.Webhook.Username,
			IconEmoji: cfg.Webhook.IconEmoji,
		}), nil

	default:
		return nil, &relay.ConfigurationError{
			Field:  "notifier",
			Reason: fmt.Sprintf("%q is unknown", cfg.Webhook.Notifier),
		}
	}
}

// selectForwarder chooses the backend that delivers the original message to
// the forward address. An explicit FORWARD_PROVIDER takes precedence;
// otherwise Graph is used if configured, then SES. Stdout is only used when
// selected explicitly. No forwarder is built when forwarding is disabled.
func selectForwarder(ctx context.Context, cfg *config.Config) (relay.Forwarder, error) {
	if cfg.Forward.Address == "" {
		slog.Info("no forward address configured, forwarding disabled")
		return nil, nil
	}

	switch cfg.Forward.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, &relay.ConfigurationError{Field: "ses", Reason: "requires SES_REGION and SES_SENDER"}
		}
		return newSES(ctx, cfg)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, &relay.ConfigurationError{
				Field:  "graph",
				Reason: "requires GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER",
			}
		}
		return newGraph(cfg), nil

	case "stdout":
		slog.Info("using stdout forwarder")
		return stdout.New(), nil

	case "":
		if cfg.GraphConfigured() {
			return newGraph(cfg), nil
		}
		if cfg.SESConfigured() {
			return newSES(ctx, cfg)
		}
		return nil, &relay.ConfigurationError{
			Field:  "forward address",
			Reason: "is set but neither Graph nor SES is configured (set FORWARD_PROVIDER=stdout to print forwards)",
		}

	default:
		return nil, &relay.ConfigurationError{
			Field:  "forward provider",
			Reason: fmt.Sprintf("%q is unknown", cfg.Forward.Provider),
		}
	}
}

func newGraph(cfg *config.Config) relay.Forwarder {
	slog.Info("using Microsoft Graph forwarder",
		"sender", cfg.Graph.Sender,
	)
	return graph.New(graph.Config{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Sender:       cfg.Graph.Sender,
	})
}

func newSES(ctx context.Context, cfg *config.Config) (relay.Forwarder, error) {
	slog.Info("using AWS SES forwarder",
		"region", cfg.SES.Region,
		"sender", cfg.SES.Sender,
	)
	f, err := ses.New(ctx, ses.Config{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
		Sender:          cfg.SES.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES forwarder: %w", err)
	}
	return f, nil
}
