package notifier

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, string, string) error {
	c.calls++
	return c.err
}

func (c *countingNotifier) Name() string { return "counting" }

func TestLimited_PassesThrough(t *testing.T) {
	t.Parallel()

	next := &countingNotifier{err: errors.New("boom")}
	l := NewLimited(next, 100, 2)

	if err := l.Notify(context.Background(), "http://hook", "a"); !errors.Is(err, next.err) {
		t.Errorf("expected wrapped notifier error, got %v", err)
	}
	if next.calls != 1 {
		t.Errorf("calls: got %d, want 1", next.calls)
	}
	if l.Name() != "counting" {
		t.Errorf("Name(): got %q, want %q", l.Name(), "counting")
	}
}

func TestLimited_WaitRespectsContext(t *testing.T) {
	t.Parallel()

	next := &countingNotifier{}
	// One token, refilled once a minute.
	l := NewLimited(next, 1.0/60, 0)

	if err := l.Notify(context.Background(), "http://hook", "first"); err != nil {
		t.Fatalf("first notify: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Notify(ctx, "http://hook", "second"); err == nil {
		t.Fatal("expected rate limit error for second notify")
	}
	if next.calls != 1 {
		t.Errorf("calls: got %d, want 1", next.calls)
	}
}
