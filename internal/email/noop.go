package email

import (
	"context"
	"fmt"
	"time"

	"github.com/dripsheet/dripsheet/internal/logger"
)

// NoopSender logs messages instead of delivering them.
type NoopSender struct {
	log *logger.Logger
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender(log *logger.Logger) *NoopSender {
	return &NoopSender{log: log.WithComponent("noop_sender")}
}

// Send logs the email but does not deliver it.
func (s *NoopSender) Send(_ context.Context, msg Message) (SendResult, error) {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.TextBody)).
		Msg("noop email send")
	now := time.Now()
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", now.UnixNano()),
		SentAt:    now,
	}, nil
}
