package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestBuildMIMEPlainText(t *testing.T) {
	raw := buildMIME("Outreach <me@x.com>", Message{
		To:       "a@x.com",
		Subject:  "Hello",
		TextBody: "Hi Ana",
	})

	assert.Contains(t, raw, "From: Outreach <me@x.com>\r\n")
	assert.Contains(t, raw, "To: a@x.com\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nHi Ana"))
	assert.NotContains(t, raw, "Reply-To")
}

func TestBuildMIMEEncodesNonASCIISubject(t *testing.T) {
	raw := buildMIME("me@x.com", Message{To: "a@x.com", Subject: "Sveiki, Jānis", TextBody: "x", ReplyTo: "r@x.com"})
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.Contains(t, raw, "Reply-To: r@x.com\r\n")
}

func TestBuildMIMEMultipart(t *testing.T) {
	raw := buildMIME("me@x.com", Message{To: "a@x.com", Subject: "s", TextBody: "plain", HTMLBody: "<p>html</p>"})
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain")
	assert.Contains(t, raw, "<p>html</p>")
	assert.True(t, strings.HasSuffix(raw, "--boundary_dripsheet_email--"))
}

func TestGmailSenderSend(t *testing.T) {
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gmail/v1/users/me/messages/send", r.URL.Path)

		var body struct {
			Raw string `json:"raw"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			decoded, err := base64.URLEncoding.DecodeString(body.Raw)
			assert.NoError(t, err)
			gotRaw = string(decoded)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-123","threadId":"t-1"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	sender, err := NewGmailSenderWithOptions(ctx, "me@x.com", "Outreach",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	res, err := sender.Send(ctx, Message{To: "a@x.com", Subject: "Hello", TextBody: "Hi Ana"})
	require.NoError(t, err)
	assert.Equal(t, "msg-123", res.MessageID)
	assert.False(t, res.SentAt.IsZero())
	assert.Contains(t, gotRaw, "To: a@x.com")
	assert.Contains(t, gotRaw, "From: Outreach <me@x.com>")
}

func TestGmailSenderSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	sender, err := NewGmailSenderWithOptions(ctx, "me@x.com", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	_, err = sender.Send(ctx, Message{To: "a@x.com", Subject: "s", TextBody: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gmail: failed to send email")
}

func TestNewGmailSenderRequiresSender(t *testing.T) {
	_, err := NewGmailSenderWithOptions(context.Background(), "", "")
	assert.Error(t, err)

	_, err = NewGmailSender(context.Background(), GmailConfig{SenderAddress: "me@x.com"})
	assert.Error(t, err)
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "me@x.com", FormatAddress("", "me@x.com"))
	assert.Equal(t, "Me <me@x.com>", FormatAddress("Me", "me@x.com"))
}
