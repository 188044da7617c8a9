// Package main is the entry point for the email relay.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/email-relay/internal/config"
	"github.com/shineum/email-relay/internal/imappoll"
	"github.com/shineum/email-relay/internal/relay"
	"github.com/shineum/email-relay/internal/smtp"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "email-relay",
		Short:         "Relay inbound email to a chat webhook",
		Long:          "email-relay parses inbound email, posts a summary to a chat webhook and forwards the original to a secondary mailbox.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file (optional)")

	root.AddCommand(serveCmd())
	root.AddCommand(pipeCmd())
	root.AddCommand(imapCmd())

	if err := root.Execute(); err != nil {
		slog.Error("email-relay failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept mail over SMTP and relay every message",
		RunE:  runServe,
	}
}

func pipeCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Relay one message read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipe(cmd.Context(), cmd.InOrStdin(), from, to)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "envelope sender")
	cmd.Flags().StringVar(&to, "to", "", "envelope recipient")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func imapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "imap",
		Short: "Poll an IMAP mailbox and relay every unseen message",
		RunE:  runIMAP,
	}
}

// setup loads configuration, installs the logger and builds the relay
// components shared by every runtime.
func setup(ctx context.Context) (*config.Config, *relay.Handler, relay.Forwarder, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.Logging.Level)

	relayCfg := cfg.Relay()
	if err := relayCfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	n, err := selectNotifier(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	fwd, err := selectForwarder(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, relay.New(relayCfg, n), fwd, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, handler, fwd, err := setup(ctx)
	if err != nil {
		return err
	}

	server := smtp.New(smtp.ServerConfig{
		ListenAddr:     cfg.SMTP.Listen,
		Hostname:       cfg.SMTP.Hostname,
		MaxMessageSize: cfg.SMTP.MaxMessageSize,
		Handler:        handler,
		Forwarder:      fwd,
	})

	slog.Info("starting email-relay",
		"listen", cfg.SMTP.Listen,
		"notifier", cfg.Webhook.Notifier,
		"forward_address", cfg.Forward.Address,
	)

	// Blocks until a signal cancels the context
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("email-relay stopped")
	return nil
}

func runIMAP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, handler, fwd, err := setup(ctx)
	if err != nil {
		return err
	}
	if !cfg.IMAPConfigured() {
		return &relay.ConfigurationError{Field: "imap", Reason: "requires IMAP_ADDR, IMAP_USERNAME and IMAP_PASSWORD"}
	}

	client := imappoll.NewClient(imappoll.ClientConfig{
		Addr:     cfg.IMAP.Addr,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		Mailbox:  cfg.IMAP.Mailbox,
		StartTLS: cfg.IMAP.StartTLS,
	})

	slog.Info("starting email-relay IMAP poller",
		"addr", cfg.IMAP.Addr,
		"mailbox", cfg.IMAP.Mailbox,
		"notifier", cfg.Webhook.Notifier,
	)

	return imappoll.NewPoller(client, handler, fwd, cfg.IMAP.PollInterval).Run(ctx)
}

func runPipe(ctx context.Context, stdin io.Reader, from, to string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, handler, fwd, err := setup(ctx)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	return handler.Handle(ctx, &relay.Message{
		Sender:    from,
		Recipient: to,
		Data:      data,
		Forwarder: fwd,
	})
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
