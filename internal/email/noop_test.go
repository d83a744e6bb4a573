package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripsheet/dripsheet/internal/logger"
)

func TestNoopSender(t *testing.T) {
	s := NewNoopSender(logger.Nop())
	res, err := s.Send(context.Background(), Message{To: "a@x.com", Subject: "s"})
	require.NoError(t, err)
	assert.Contains(t, res.MessageID, "noop-")
}

func TestNewResendSenderValidation(t *testing.T) {
	_, err := NewResendSender("", "me@x.com", "")
	assert.Error(t, err)
	_, err = NewResendSender("re_key", "", "")
	assert.Error(t, err)

	s, err := NewResendSender("re_key", "me@x.com", "Me")
	require.NoError(t, err)
	assert.Equal(t, "Me <me@x.com>", s.from)
}
