package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail email sender.
type GmailConfig struct {
	// CredentialsJSON is a service account key with domain-wide delegation.
	CredentialsJSON string
	// SenderAddress is the email address emails are sent from.
	SenderAddress string
	// SenderName is the display name for the sender.
	SenderName string
}

// GmailSender implements Sender using the Gmail API.
type GmailSender struct {
	service       *gmail.Service
	senderAddress string
	senderName    string
}

// NewGmailSender creates a GmailSender from a service account that
// impersonates the sender mailbox.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("gmail: credentials JSON is required")
	}
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}
	jwtConfig.Subject = cfg.SenderAddress

	return NewGmailSenderWithOptions(ctx, cfg.SenderAddress, cfg.SenderName, option.WithHTTPClient(jwtConfig.Client(ctx)))
}

// NewGmailSenderWithClient creates a GmailSender that authenticates with an
// already authorized HTTP client, e.g. the installed-app client shared with
// the Sheets gateway.
func NewGmailSenderWithClient(ctx context.Context, client *http.Client, senderAddress, senderName string) (*GmailSender, error) {
	return NewGmailSenderWithOptions(ctx, senderAddress, senderName, option.WithHTTPClient(client))
}

// NewGmailSenderWithOptions creates a GmailSender from raw client options.
func NewGmailSenderWithOptions(ctx context.Context, senderAddress, senderName string, opts ...option.ClientOption) (*GmailSender, error) {
	if senderAddress == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailSender{
		service:       svc,
		senderAddress: senderAddress,
		senderName:    senderName,
	}, nil
}

// Send sends an email via the Gmail API.
func (g *GmailSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	from := FormatAddress(encodeHeader(g.senderName), g.senderAddress)
	raw := buildMIME(from, msg)

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	sent, err := g.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		return SendResult{}, fmt.Errorf("gmail: failed to send email: %w", err)
	}

	return SendResult{
		MessageID: sent.Id,
		SentAt:    time.Now(),
	}, nil
}

// buildMIME renders msg as an RFC 5322 message. Bodies are sent as UTF-8
// with 8bit transfer encoding.
func buildMIME(from string, msg Message) string {
	headers := []string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + encodeHeader(msg.Subject),
		"MIME-Version: 1.0",
	}
	if msg.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+msg.ReplyTo)
	}

	var lines []string
	if msg.HTMLBody != "" && msg.TextBody != "" {
		// Multipart alternative (HTML + text)
		boundary := "boundary_dripsheet_email"
		lines = append(headers,
			"Content-Type: multipart/alternative; boundary="+boundary,
			"",
			"--"+boundary,
			"Content-Type: text/plain; charset=UTF-8",
			"Content-Transfer-Encoding: 8bit",
			"",
			msg.TextBody,
			"",
			"--"+boundary,
			"Content-Type: text/html; charset=UTF-8",
			"Content-Transfer-Encoding: 8bit",
			"",
			msg.HTMLBody,
			"",
			"--"+boundary+"--",
		)
	} else if msg.HTMLBody != "" {
		lines = append(headers,
			"Content-Type: text/html; charset=UTF-8",
			"Content-Transfer-Encoding: 8bit",
			"",
			msg.HTMLBody,
		)
	} else {
		lines = append(headers,
			"Content-Type: text/plain; charset=UTF-8",
			"Content-Transfer-Encoding: 8bit",
			"",
			msg.TextBody,
		)
	}
	return strings.Join(lines, "\r\n")
}

// encodeHeader Q-encodes non-ASCII header text (Latvian subjects and names).
func encodeHeader(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}
