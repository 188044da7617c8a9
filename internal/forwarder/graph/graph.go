// Package graph implements a forwarder that sends the raw message, attached
// as an .eml file, through the Microsoft Graph sendMail API.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxAttachmentSize is the largest attachment Graph accepts inline in a
// sendMail request.
const maxAttachmentSize = 3 * 1024 * 1024

// Config holds the configuration for creating a Forwarder.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// Sender is the mailbox the forward is sent from.
	Sender string
}

// Forwarder sends forwards via Graph using OAuth2 client credentials.
type Forwarder struct {
	sendURL    string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a Forwarder for the given tenant and sender mailbox.
func New(cfg Config) *Forwarder {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)
	sendURL := fmt.Sprintf(
		"https://graph.microsoft.com/v1.0/users/%s/sendMail",
		url.PathEscape(cfg.Sender),
	)
	return newWithOverrides(cfg, sendURL, tokenURL, &http.Client{Timeout: 30 * time.Second})
}

// newWithOverrides creates a Forwarder with custom endpoints and HTTP client,
// used for testing.
func newWithOverrides(cfg Config, sendURL, tokenURL string, client *http.Client) *Forwarder {
	return &Forwarder{
		sendURL:    sendURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Forward sends a message to address with raw attached as original.eml.
// The request is made once; Graph answers 202 Accepted on success.
func (f *Forwarder) Forward(ctx context.Context, address string, raw []byte) error {
	if len(raw) > maxAttachmentSize {
		return fmt.Errorf("message is %d bytes, Graph sendMail accepts at most %d", len(raw), maxAttachmentSize)
	}

	body, err := json.Marshal(buildForwardRequest(address, raw))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	token, err := f.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		slog.Debug("message forwarded via Graph", "to", address)
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	var graphErr graphErrorResponse
	if json.Unmarshal(respBody, &graphErr) == nil && graphErr.Error.Message != "" {
		return fmt.Errorf("Graph API error (HTTP %d): %s: %s", resp.StatusCode, graphErr.Error.Code, graphErr.Error.Message)
	}
	return fmt.Errorf("Graph API error (HTTP %d): %s", resp.StatusCode, string(respBody))
}

// Name returns the forwarder name.
func (f *Forwarder) Name() string {
	return "msgraph"
}
