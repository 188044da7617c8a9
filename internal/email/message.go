// Package email defines the parsed email model handed from the MIME parser
// to the relay.
package email

// Email is the structured view of one raw message. Subject and Text are nil
// when the message carries no Subject header or no text/plain part.
type Email struct {
	Subject     *string
	Text        *string
	Attachments []Attachment
}

// Attachment describes a file attached to a message. Only metadata is kept;
// the part body is never read.
type Attachment struct {
	Filename    string
	ContentType string
}
