// Package parser turns raw RFC 5322 messages into the email model using
// go-message, including nested multipart bodies and non-UTF-8 charsets.
package parser

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"github.com/shineum/email-relay/internal/email"
)

// Parse reads a raw message and extracts its subject, first text/plain body
// and attachment metadata. Without a text/plain part, the first inline
// text/html part is converted to text. Attachment bodies are skipped, never
// read.
// A malformed header block, a truncated multipart body or an unreadable text
// part is reported as an error; unknown charsets and transfer encodings are
// logged and tolerated.
func Parse(r io.Reader) (*email.Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !tolerable(err) {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	defer mr.Close()

	if err != nil {
		slog.Warn("message uses unsupported encoding", "error", err)
	}

	result := &email.Email{}
	var html *string

	if mr.Header.Has("Subject") {
		subject, err := mr.Header.Subject()
		if err != nil {
			// Undecodable encoded-words: keep the raw header value.
			subject = mr.Header.Get("Subject")
		}
		result.Subject = &subject
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !tolerable(err) {
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}
		if part == nil {
			continue
		}
		if err != nil {
			slog.Warn("part uses unsupported encoding", "error", err)
		}

		switch h := part.Header.(type) {
		case *mail.AttachmentHeader:
			mediaType, params, _ := h.ContentType()
			filename, _ := h.Filename()
			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    fallbackFilename(filename, mediaType, params),
				ContentType: mediaType,
			})

		case *mail.InlineHeader:
			mediaType, params, _ := h.ContentType()
			if mediaType == "" {
				mediaType = "text/plain"
			}

			if mediaType == "text/plain" {
				if result.Text != nil {
					continue
				}
				body, err := io.ReadAll(part.Body)
				if err != nil {
					return nil, fmt.Errorf("failed to read text part: %w", err)
				}
				text := string(body)
				result.Text = &text
				continue
			}

			if mediaType == "text/html" {
				if html != nil {
					continue
				}
				body, err := io.ReadAll(part.Body)
				if err != nil {
					return nil, fmt.Errorf("failed to read html part: %w", err)
				}
				markup := string(body)
				html = &markup
				continue
			}

			// Inline non-text parts with a filename (images, documents)
			// are listed with the attachments.
			_, dispParams, _ := h.ContentDisposition()
			filename := dispParams["filename"]
			if filename == "" {
				filename = params["name"]
			}
			if filename != "" && !strings.HasPrefix(mediaType, "text/") {
				result.Attachments = append(result.Attachments, email.Attachment{
					Filename:    filename,
					ContentType: mediaType,
				})
			}
		}
	}

	if result.Text == nil && html != nil {
		text := strings.TrimSpace(html2text.HTML2Text(*html))
		result.Text = &text
	}

	return result, nil
}

// tolerable reports whether err only signals an unknown charset or transfer
// encoding, in which case go-message still returns a usable entity.
func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// fallbackFilename returns filename, or the Content-Type name parameter, or a
// name derived from the media type, so every attachment has a label.
func fallbackFilename(filename, mediaType string, params map[string]string) string {
	if filename != "" {
		return filename
	}
	if name := params["name"]; name != "" {
		return name
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}
