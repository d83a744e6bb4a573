package email

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a new ResendSender with the given API key and from address.
func NewResendSender(apiKey, senderAddress, senderName string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend: api key is required")
	}
	if senderAddress == "" {
		return nil, fmt.Errorf("resend: sender address is required")
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   FormatAddress(senderName, senderAddress),
	}, nil
}

// Send sends a single email via Resend.
func (s *ResendSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.TextBody,
		Html:    msg.HTMLBody,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend: failed to send email: %w", err)
	}

	return SendResult{
		MessageID: sent.Id,
		SentAt:    time.Now(),
	}, nil
}
