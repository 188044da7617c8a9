package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

var rawMessage = []byte("From: a@x.com\r\nTo: b@y.com\r\nSubject: Hi\r\n\r\nHello")

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "test-token", ExpiresIn: 3600})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() Config {
	return Config{TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "relay@example.com"}
}

func TestBuildForwardRequest(t *testing.T) {
	t.Parallel()

	req := buildForwardRequest("shared@example.com", rawMessage)

	if len(req.Message.ToRecipients) != 1 || req.Message.ToRecipients[0].EmailAddress.Address != "shared@example.com" {
		t.Errorf("ToRecipients: got %+v", req.Message.ToRecipients)
	}
	if len(req.Message.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(req.Message.Attachments))
	}

	att := req.Message.Attachments[0]
	if att.ODataType != "#microsoft.graph.fileAttachment" {
		t.Errorf("ODataType: got %q", att.ODataType)
	}
	if att.Name != "original.eml" || att.ContentType != "message/rfc822" {
		t.Errorf("attachment: got %q (%s), want original.eml (message/rfc822)", att.Name, att.ContentType)
	}

	decoded, err := base64.StdEncoding.DecodeString(att.ContentBytes)
	if err != nil {
		t.Fatalf("ContentBytes is not base64: %v", err)
	}
	if !bytes.Equal(decoded, rawMessage) {
		t.Errorf("attached message modified:\ngot:  %q\nwant: %q", decoded, rawMessage)
	}
}

func TestForward_Success(t *testing.T) {
	t.Parallel()

	tokens := tokenServer(t)
	var calls atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization: got %q, want %q", got, "Bearer test-token")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type: got %q, want %q", got, "application/json")
		}

		var body sendMailRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body.Message.Subject != forwardSubject {
			t.Errorf("Subject: got %q, want %q", body.Message.Subject, forwardSubject)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer graphServer.Close()

	f := newWithOverrides(testConfig(), graphServer.URL, tokens.URL, graphServer.Client())
	if err := f.Forward(context.Background(), "shared@example.com", rawMessage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("sendMail calls: got %d, want 1", got)
	}
}

func TestForward_GraphErrorNotRetried(t *testing.T) {
	t.Parallel()

	tokens := tokenServer(t)
	var calls atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"ServiceUnavailable","message":"try later"}}`))
	}))
	defer graphServer.Close()

	f := newWithOverrides(testConfig(), graphServer.URL, tokens.URL, graphServer.Client())
	err := f.Forward(context.Background(), "shared@example.com", rawMessage)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "try later") {
		t.Errorf("error should carry status and Graph message: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("sendMail calls: got %d, want 1", got)
	}
}

func TestForward_TooLarge(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer graphServer.Close()

	f := newWithOverrides(testConfig(), graphServer.URL, graphServer.URL, graphServer.Client())
	big := bytes.Repeat([]byte("x"), maxAttachmentSize+1)
	if err := f.Forward(context.Background(), "shared@example.com", big); err == nil {
		t.Fatal("expected error for oversized message, got nil")
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("requests: got %d, want 0", got)
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New(testConfig()).Name(); got != "msgraph" {
		t.Errorf("Name: got %q, want %q", got, "msgraph")
	}
}
