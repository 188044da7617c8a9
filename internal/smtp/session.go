package smtp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/shineum/email-relay/internal/relay"
)

// Session states for the SMTP state machine.
const (
	stateConnected = iota
	stateGreeted
	stateMailFrom
	stateRcptTo
)

// idleTimeout is the maximum time a session can remain idle before being closed.
const idleTimeout = 60 * time.Second

// handleTimeout bounds one handler run plus the final DATA reply. A relay
// makes up to three 30 second requests (notify, forward, report).
const handleTimeout = 2 * time.Minute

// nullSender is the reverse-path used by bounces and auto-replies.
const nullSender = "<>"

// Handler processes one received message.
type Handler interface {
	Handle(ctx context.Context, ev relay.Event) error
}

// Session is a single SMTP client connection. Every completed DATA
// transaction is handed to the Handler as one relay.Message.
type Session struct {
	conn      net.Conn
	reader    *bufio.Reader
	writer    *bufio.Writer
	state     int
	hostname  string
	maxSize   int64
	handler   Handler
	forwarder relay.Forwarder

	idleTimeout   time.Duration
	handleTimeout time.Duration

	// Current transaction
	mailFrom string
	rcptTo   []string
}

// NewSession creates a new SMTP session for the given connection.
func NewSession(conn net.Conn, cfg ServerConfig) *Session {
	return &Session{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		writer:    bufio.NewWriter(conn),
		state:     stateConnected,
		hostname:  cfg.Hostname,
		maxSize:   cfg.MaxMessageSize,
		handler:   cfg.Handler,
		forwarder: cfg.Forwarder,

		idleTimeout:   idleTimeout,
		handleTimeout: handleTimeout,
	}
}

// Handle runs the SMTP session, processing commands until the client
// disconnects or an error occurs.
func (s *Session) Handle(ctx context.Context) {
	defer s.conn.Close()

	s.writeLine("220 %s ESMTP email-relay", s.hostname)

	for {
		select {
		case <-ctx.Done():
			s.writeLine("421 Service shutting down")
			return
		default:
		}

		if err := s.conn.SetDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			slog.Error("failed to set connection deadline", "error", err)
			return
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				slog.Debug("connection read error", "error", err)
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		cmd, arg := parseCommand(line)
		if done := s.handleCommand(ctx, cmd, arg); done {
			return
		}
	}
}

// handleCommand processes a single SMTP command and returns true if the session should end.
func (s *Session) handleCommand(ctx context.Context, cmd, arg string) bool {
	switch cmd {
	case "EHLO", "HELO":
		s.handleEHLO(cmd, arg)
	case "MAIL":
		s.handleMAIL(arg)
	case "RCPT":
		s.handleRCPT(arg)
	case "DATA":
		s.handleDATA(ctx)
	case "RSET":
		s.resetTransaction()
		s.writeLine("250 OK")
	case "NOOP":
		s.writeLine("250 OK")
	case "QUIT":
		s.writeLine("221 Bye")
		return true
	case "STARTTLS", "AUTH":
		s.writeLine("502 Command not implemented")
	default:
		s.writeLine("500 Unrecognized command")
	}
	return false
}

func (s *Session) handleEHLO(cmd, arg string) {
	if arg == "" {
		s.writeLine("501 Syntax: %s hostname", cmd)
		return
	}

	s.resetTransaction()
	s.state = stateGreeted

	if cmd == "HELO" {
		s.writeLine("250 %s Hello %s", s.hostname, arg)
		return
	}

	s.writeLine("250-%s Hello %s", s.hostname, arg)
	s.writeLine("250-8BITMIME")
	s.writeLine("250-SIZE %d", s.maxSize)
	s.writeLine("250 OK")
}

func (s *Session) handleMAIL(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO/HELO first")
		return
	}
	if s.state > stateGreeted {
		s.writeLine("503 Sender already specified, send RSET first")
		return
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "FROM:") {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}

	param := strings.TrimSpace(arg[5:])
	addr := extractAddress(param)
	if addr == "" {
		if !strings.HasPrefix(param, nullSender) {
			s.writeLine("501 Syntax: MAIL FROM:<address>")
			return
		}
		addr = nullSender
	}

	s.mailFrom = addr
	s.rcptTo = nil
	s.state = stateMailFrom
	s.writeLine("250 OK")
}

func (s *Session) handleRCPT(arg string) {
	if s.state < stateMailFrom {
		s.writeLine("503 Send MAIL FROM first")
		return
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "TO:") {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	addr := extractAddress(arg[3:])
	if addr == "" {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	s.rcptTo = append(s.rcptTo, addr)
	s.state = stateRcptTo
	s.writeLine("250 OK")
}

// errTooLarge is returned by readData when the message exceeds maxSize.
var errTooLarge = errors.New("message exceeds maximum size")

// handleDATA reads the message and runs one relay invocation for it.
func (s *Session) handleDATA(ctx context.Context) {
	if s.state < stateRcptTo {
		s.writeLine("503 Send RCPT TO first")
		return
	}

	s.writeLine("354 Start mail input; end with <CRLF>.<CRLF>")

	data, err := s.readData()
	if errors.Is(err, errTooLarge) {
		s.writeLine("552 Message exceeds fixed maximum message size")
		s.resetTransaction()
		return
	}
	if err != nil {
		slog.Error("error reading DATA", "error", err)
		return
	}

	if err := s.conn.SetDeadline(time.Now().Add(s.handleTimeout)); err != nil {
		slog.Error("failed to set connection deadline", "error", err)
		return
	}

	msg := &relay.Message{
		Sender:    s.mailFrom,
		Recipient: strings.Join(s.rcptTo, ", "),
		Data:      data,
		Forwarder: s.forwarder,
	}

	// An accepted message is relayed to completion even when the server
	// is shutting down.
	if err := s.handler.Handle(context.WithoutCancel(ctx), msg); err != nil {
		slog.Error("relay rejected message", "error", err)
		s.writeLine("451 Temporary failure, please try again later")
		s.resetTransaction()
		return
	}

	s.writeLine("250 OK message accepted")
	s.resetTransaction()
}

// readData reads dot-stuffed message lines up to the terminating "." line and
// returns the unstuffed bytes. Oversized messages are drained and rejected.
func (s *Session) readData() ([]byte, error) {
	var buf bytes.Buffer
	tooLarge := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		if strings.TrimRight(line, "\r\n") == "." {
			break
		}

		// Dot-stuffing: a leading dot was doubled by the client.
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}

		if tooLarge {
			continue
		}
		if s.maxSize > 0 && int64(buf.Len()+len(line)) > s.maxSize {
			tooLarge = true
			buf.Reset()
			continue
		}
		buf.WriteString(line)
	}

	if tooLarge {
		return nil, errTooLarge
	}
	return buf.Bytes(), nil
}

// resetTransaction clears the current mail transaction, keeping the greeting.
func (s *Session) resetTransaction() {
	s.mailFrom = ""
	s.rcptTo = nil
	if s.state >= stateGreeted {
		s.state = stateGreeted
	}
}

// writeLine writes a formatted line to the client, followed by \r\n.
func (s *Session) writeLine(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		slog.Error("failed to write to client", "error", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		slog.Error("failed to flush to client", "error", err)
	}
}

// parseCommand splits an SMTP command line into the command verb and its argument.
func parseCommand(line string) (string, string) {
	cmd, arg, _ := strings.Cut(line, " ")
	return strings.ToUpper(cmd), arg
}

// extractAddress extracts an email address from an SMTP parameter,
// handling both angle-bracket and bare formats. ESMTP parameters after the
// address are ignored.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return ""
		}
		return s[1:end]
	}

	addr, _, _ := strings.Cut(s, " ")
	return addr
}
