package mailer

import (
	"context"
	"log"
)

// LogSender writes messages to the process log instead of sending them.
// Used in development when no SES credentials are configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[Mailer] (dry run) to=%s subject=%q bytes=%d", msg.To, msg.Subject, len(msg.HTMLBody))
	return nil
}
