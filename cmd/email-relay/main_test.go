package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shineum/email-relay/internal/config"
	"github.com/shineum/email-relay/internal/forwarder/graph"
	"github.com/shineum/email-relay/internal/forwarder/ses"
	"github.com/shineum/email-relay/internal/forwarder/stdout"
	"github.com/shineum/email-relay/internal/notifier"
	"github.com/shineum/email-relay/internal/notifier/slack"
	"github.com/shineum/email-relay/internal/notifier/webhook"
	"github.com/shineum/email-relay/internal/relay"
)

func TestSelectNotifier(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Webhook.Notifier = "webhook"
	n, err := selectNotifier(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(*webhook.Notifier); !ok {
		t.Errorf("expected *webhook.Notifier, got %T", n)
	}

	cfg.Webhook.Notifier = "slack"
	n, err = selectNotifier(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(*slack.Notifier); !ok {
		t.Errorf("expected *slack.Notifier, got %T", n)
	}

	cfg.Webhook.RateLimit = 1
	n, err = selectNotifier(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(*notifier.Limited); !ok || n.Name() != "slack" {
		t.Errorf("expected rate limited slack notifier, got %T (%s)", n, n.Name())
	}

	cfg.Webhook.Notifier = "teams"
	_, err = selectNotifier(cfg)
	var cfgErr *relay.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestSelectForwarder(t *testing.T) {
	t.Parallel()

	graphCfg := config.GraphConfig{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		Sender:       "relay@example.com",
	}
	sesCfg := config.SESConfig{
		Region:          "us-east-1",
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		Sender:          "relay@example.com",
	}

	tests := []struct {
		name     string
		cfg      config.Config
		wantType string
		wantErr  bool
	}{
		{
			name:     "forwarding disabled",
			cfg:      config.Config{Graph: graphCfg},
			wantType: "<nil>",
		},
		{
			name:     "auto prefers graph",
			cfg:      config.Config{Forward: config.ForwardConfig{Address: "archive@example.com"}, Graph: graphCfg, SES: sesCfg},
			wantType: "*graph.Forwarder",
		},
		{
			name:     "auto falls back to ses",
			cfg:      config.Config{Forward: config.ForwardConfig{Address: "archive@example.com"}, SES: sesCfg},
			wantType: "*ses.Forwarder",
		},
		{
			name:    "auto without a mail backend",
			cfg:     config.Config{Forward: config.ForwardConfig{Address: "archive@example.com"}},
			wantErr: true,
		},
		{
			name:     "explicit stdout",
			cfg:      config.Config{Forward: config.ForwardConfig{Address: "archive@example.com", Provider: "stdout"}, Graph: graphCfg},
			wantType: "*stdout.Forwarder",
		},
		{
			name:    "explicit graph without credentials",
			cfg:     config.Config{Forward: config.ForwardConfig{Address: "archive@example.com", Provider: "graph"}},
			wantErr: true,
		},
		{
			name:    "explicit ses without region",
			cfg:     config.Config{Forward: config.ForwardConfig{Address: "archive@example.com", Provider: "ses"}},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.Config{Forward: config.ForwardConfig{Address: "archive@example.com", Provider: "postfix"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fwd, err := selectForwarder(context.Background(), &tt.cfg)
			if tt.wantErr {
				var cfgErr *relay.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got string
			switch fwd.(type) {
			case nil:
				got = "<nil>"
			case *graph.Forwarder:
				got = "*graph.Forwarder"
			case *ses.Forwarder:
				got = "*ses.Forwarder"
			case *stdout.Forwarder:
				got = "*stdout.Forwarder"
			default:
				got = "unexpected"
			}
			if got != tt.wantType {
				t.Errorf("forwarder: got %s, want %s", got, tt.wantType)
			}
		})
	}
}

// clearRelayEnv isolates runPipe from the caller's environment.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEBHOOK_URL", "SLACK_WEBHOOK_URL", "NOTIFIER",
		"FORWARD_ADDRESS", "FORWARD_PROVIDER", "NOTIFY_RATE_LIMIT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestRunPipe(t *testing.T) {
	clearRelayEnv(t)

	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		got = append(got, p.Text)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("WEBHOOK_URL", srv.URL)

	raw := "From: a@x.com\r\nTo: b@y.com\r\nSubject: Hi\r\n\r\nHello\r\n"
	if err := runPipe(context.Background(), strings.NewReader(raw), "a@x.com", "b@y.com"); err != nil {
		t.Fatalf("runPipe: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if !strings.Contains(got[0], "Subject: Hi") || !strings.Contains(got[0], "```Hello") {
		t.Errorf("unexpected notification text:\n%s", got[0])
	}
}

func TestRunPipe_MissingWebhookURL(t *testing.T) {
	clearRelayEnv(t)

	err := runPipe(context.Background(), strings.NewReader("Subject: Hi\r\n\r\nHello\r\n"), "a@x.com", "b@y.com")
	var cfgErr *relay.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
