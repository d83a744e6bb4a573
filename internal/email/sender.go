package email

import (
	"context"
	"time"
)

// Sender is the interface that all email providers must implement.
type Sender interface {
	// Send delivers a single message and returns the provider's message ID.
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// Message represents an email message to be sent.
type Message struct {
	To       string // recipient email address
	Subject  string // email subject
	TextBody string // plain-text body
	HTMLBody string // optional HTML body
	ReplyTo  string // optional reply-to address
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// FormatAddress renders "Name <addr>", or just addr when name is empty.
func FormatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return name + " <" + addr + ">"
}
