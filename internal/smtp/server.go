// Package smtp implements the SMTP listener that feeds inbound mail to the
// relay, one invocation per accepted message.
package smtp

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/shineum/email-relay/internal/relay"
)

// shutdownTimeout is the maximum time to wait for in-flight connections
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// defaultMaxMessageSize is used when ServerConfig.MaxMessageSize is zero.
const defaultMaxMessageSize = 10 * 1024 * 1024

// ServerConfig holds the configuration for an SMTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":2525").
	ListenAddr string

	// Hostname is the server hostname used in the greeting and EHLO.
	Hostname string

	// MaxMessageSize is the advertised and enforced SIZE limit in bytes.
	MaxMessageSize int64

	// Handler receives every accepted message.
	Handler Handler

	// Forwarder is attached to each message for the forward step.
	// Nil leaves messages without a forwarding capability.
	Forwarder relay.Forwarder
}

// Server accepts SMTP connections and runs one Session per connection.
type Server struct {
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener

	// wg tracks in-flight session goroutines for graceful shutdown.
	wg sync.WaitGroup
}

// New creates a new SMTP Server with the given configuration.
func New(cfg ServerConfig) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	return &Server{config: cfg}
}

// ListenAndServe starts the SMTP server and blocks until the context is cancelled.
// On cancellation it stops accepting connections and waits up to 30 seconds
// for in-flight sessions to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("SMTP server listening",
		"addr", ln.Addr().String(),
		"hostname", s.config.Hostname,
		"max_message_size", s.config.MaxMessageSize,
		"forwarder", forwarderName(s.config.Forwarder),
	)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down SMTP server")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				// Expected error from listener close during shutdown
				s.waitForSessions()
				return nil
			default:
				slog.Error("accept error", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			NewSession(conn, s.config).Handle(ctx)
		}()
	}
}

// waitForSessions waits for all in-flight sessions to complete,
// with a maximum timeout to prevent indefinite blocking.
func (s *Server) waitForSessions() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("all sessions completed")
	case <-time.After(shutdownTimeout):
		slog.Warn("shutdown timeout reached, forcing close")
	}
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func forwarderName(f relay.Forwarder) string {
	if f == nil {
		return "none"
	}
	return f.Name()
}
