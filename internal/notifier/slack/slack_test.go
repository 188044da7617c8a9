package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
)

func TestNotify_PostsWebhookMessage(t *testing.T) {
	t.Parallel()

	var got map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewWithClient(Options{Username: "mailbot", IconEmoji: ":email:"}, srv.Client())
	if err := n.Notify(context.Background(), srv.URL, "new mail"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", gotContentType, "application/json")
	}
	if got["text"] != "new mail" {
		t.Errorf("text: got %v, want %q", got["text"], "new mail")
	}
	if got["username"] != "mailbot" {
		t.Errorf("username: got %v, want %q", got["username"], "mailbot")
	}
	if got["icon_emoji"] != ":email:" {
		t.Errorf("icon_emoji: got %v, want %q", got["icon_emoji"], ":email:")
	}
}

func TestNotify_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWithClient(Options{}, srv.Client())
	err := n.Notify(context.Background(), srv.URL, "x")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var sce slack.StatusCodeError
	if !errors.As(err, &sce) {
		t.Fatalf("expected slack.StatusCodeError, got %T: %v", err, err)
	}
	if sce.Code != http.StatusInternalServerError {
		t.Errorf("Code: got %d, want %d", sce.Code, http.StatusInternalServerError)
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New(Options{}).Name(); got != "slack" {
		t.Errorf("Name(): got %q, want %q", got, "slack")
	}
}
