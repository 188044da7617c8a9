// Package stdout implements a forwarder that writes forwarded messages to
// standard output, for local development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Forwarder writes each forwarded message, framed by a banner, to a writer.
type Forwarder struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a Forwarder that writes to os.Stdout.
func New() *Forwarder {
	return &Forwarder{writer: os.Stdout}
}

// NewWithWriter creates a Forwarder that writes to w.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Forwarder {
	return &Forwarder{writer: w}
}

// Forward writes the raw message unmodified between two banner lines.
func (f *Forwarder) Forward(_ context.Context, address string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := fmt.Fprintf(f.writer, "======== forward to %s (%s) ========\n", address, formatSize(len(raw))); err != nil {
		return fmt.Errorf("failed to write forward: %w", err)
	}
	if _, err := f.writer.Write(raw); err != nil {
		return fmt.Errorf("failed to write forward: %w", err)
	}
	if _, err := fmt.Fprint(f.writer, "\n======== end of forward ========\n"); err != nil {
		return fmt.Errorf("failed to write forward: %w", err)
	}
	return nil
}

// Name returns the forwarder name.
func (f *Forwarder) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
