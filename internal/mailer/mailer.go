// Package mailer defines the outbound send capability used by the dispatch
// worker, plus concrete implementations.
package mailer

import "context"

// Message is a single personalized outbound email.
type Message struct {
	To          string
	ToName      string
	FromName    string
	FromEmail   string
	ReplyTo     string
	Subject     string
	HTMLBody    string
	Attachments []AttachmentRef
}

// AttachmentRef points at previously uploaded attachment content.
type AttachmentRef struct {
	Filename    string
	ContentType string
	URL         string
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use; a returned error means this recipient failed, not that the
// campaign should abort.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
