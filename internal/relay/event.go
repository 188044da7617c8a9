package relay

import (
	"bytes"
	"context"
	"io"
)

// Event is one inbound email as delivered by a hosting runtime.
type Event interface {
	// From and To are the envelope addresses supplied by the mail transport.
	From() string
	To() string

	// Raw returns the unmodified message bytes.
	Raw() io.Reader

	// Forward sends the unmodified message to address.
	Forward(ctx context.Context, address string) error
}

// Forwarder delivers a raw message to a mailbox.
type Forwarder interface {
	Forward(ctx context.Context, address string, raw []byte) error
	Name() string
}

// Message is the Event used by the SMTP and pipe runtimes: an envelope plus
// the buffered message, forwarded through a Forwarder.
type Message struct {
	Sender    string
	Recipient string
	Data      []byte
	Forwarder Forwarder
}

func (m *Message) From() string { return m.Sender }

func (m *Message) To() string { return m.Recipient }

func (m *Message) Raw() io.Reader { return bytes.NewReader(m.Data) }

// Forward hands the raw bytes to the configured Forwarder. A Message without
// one cannot forward.
func (m *Message) Forward(ctx context.Context, address string) error {
	if m.Forwarder == nil {
		return errNoForwarder
	}
	return m.Forwarder.Forward(ctx, address, m.Data)
}

// ForwarderName returns the name of the Forwarder, or "none".
func (m *Message) ForwarderName() string {
	if m.Forwarder == nil {
		return "none"
	}
	return m.Forwarder.Name()
}
