// Package imappoll polls an IMAP mailbox and feeds each unseen message to the
// relay, for deployments where mail lands in a hosted inbox instead of
// arriving over SMTP.
package imappoll

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// maxFetch bounds how many messages one poll pulls from the server.
const maxFetch = 50

// Fetched is one message pulled from the mailbox.
type Fetched struct {
	UID  uint32
	From string
	To   string
	Raw  []byte
}

// ClientConfig holds the IMAP server and login settings.
type ClientConfig struct {
	// Addr is host:port of the server.
	Addr     string
	Username string
	Password string

	// Mailbox is the folder to poll, usually "INBOX".
	Mailbox string

	// StartTLS upgrades a plain connection instead of dialing TLS directly.
	StartTLS bool
}

// Client reads unseen messages with go-imap. A fresh connection is opened
// for every operation.
type Client struct {
	cfg ClientConfig
}

// NewClient creates an IMAP client for cfg.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Client{cfg: cfg}
}

// connect dials, logs in and selects the mailbox. The caller must log out.
func (c *Client) connect() (*imapclient.Client, error) {
	var client *imapclient.Client
	var err error

	if c.cfg.StartTLS {
		client, err = imapclient.DialStartTLS(c.cfg.Addr, nil)
	} else {
		client, err = imapclient.DialTLS(c.cfg.Addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", c.cfg.Addr, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.cfg.Username, err)
	}

	if _, err := client.Select(c.cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.cfg.Mailbox, err)
	}

	return client, nil
}

// FetchUnseen returns up to maxFetch messages without the \Seen flag, oldest
// first. Messages are peeked, so their flags are left unchanged.
func (c *Client) FetchUnseen(_ context.Context) ([]Fetched, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > maxFetch {
		uids = uids[:maxFetch]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var out []Fetched
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			return out, fmt.Errorf("collecting message data: %w", err)
		}

		f := Fetched{
			UID: uint32(buf.UID),
			Raw: buf.FindBodySection(bodySection),
		}
		if buf.Envelope != nil {
			f.From = addressList(buf.Envelope.From)
			f.To = addressList(buf.Envelope.To)
		}
		out = append(out, f)
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}

	return out, nil
}

// MarkSeen sets the \Seen flag on the given messages.
func (c *Client) MarkSeen(_ context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	client, err := c.connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	set := make([]imap.UID, len(uids))
	for i, uid := range uids {
		set[i] = imap.UID(uid)
	}

	store := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := client.Store(imap.UIDSetNum(set...), store, nil).Close(); err != nil {
		return fmt.Errorf("marking messages seen: %w", err)
	}
	return nil
}

// addressList renders envelope addresses as bare addresses joined by ", ".
func addressList(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if addr := a.Addr(); addr != "" {
			parts = append(parts, addr)
		}
	}
	return strings.Join(parts, ", ")
}
