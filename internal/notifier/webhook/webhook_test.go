package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotify_PostsJSONText(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotContentType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWithClient(srv.Client())
	if err := n.Notify(context.Background(), srv.URL, "hello chat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("Method: got %q, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", gotContentType, "application/json")
	}

	var p map[string]string
	if err := json.Unmarshal(gotBody, &p); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if len(p) != 1 || p["text"] != "hello chat" {
		t.Errorf("body: got %s, want only text=%q", gotBody, "hello chat")
	}
}

func TestNotify_Accepts2xx(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		n := NewWithClient(srv.Client())
		if err := n.Notify(context.Background(), srv.URL, "x"); err != nil {
			t.Errorf("status %d: unexpected error: %v", code, err)
		}
		srv.Close()
	}
}

func TestNotify_Non2xxIsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token\n"))
	}))
	defer srv.Close()

	n := NewWithClient(srv.Client())
	err := n.Notify(context.Background(), srv.URL, "x")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("Code: got %d, want %d", se.Code, http.StatusForbidden)
	}
	if se.Body != "invalid_token" {
		t.Errorf("Body: got %q, want %q", se.Body, "invalid_token")
	}
}

func TestNotify_ConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	n := New()
	if err := n.Notify(context.Background(), url, "x"); err == nil {
		t.Fatal("expected error for closed server, got nil")
	}
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := Encode("From: a@x.com\n<b>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Encode("From: a@x.com\n<b>")
	if string(a) != string(b) {
		t.Errorf("Encode not deterministic: %s != %s", a, b)
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New().Name(); got != "webhook" {
		t.Errorf("Name(): got %q, want %q", got, "webhook")
	}
}
