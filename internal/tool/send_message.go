package tool

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/logging"
)

// SendMessageName is the name the model uses for sending mail.
const SendMessageName = "send_email"

// Parameter names of SendMessage.
const (
	ArgTo      = "to"
	ArgSubject = "subject"
	ArgBody    = "body"
)

var (
	errMissingRecipient = errors.New("missing recipient")
	errHeaderLineBreak  = errors.New("line break in header value")
)

type sendRawSvc interface {
	SendRawMessage(ctx context.Context, cred auth.Credential, raw string) (*gmail.Message, error)
}

// NewSendMessage creates the send tool.
func NewSendMessage(svc sendRawSvc, logger *slog.Logger) *SendMessage {
	return &SendMessage{
		svc:    svc,
		logger: logging.WithTool(logger, SendMessageName),
	}
}

// SendMessage sends a plain text email from the user's mailbox.
type SendMessage struct {
	svc    sendRawSvc
	logger *slog.Logger
}

// Declaration describes the tool to the model.
func (t *SendMessage) Declaration() Declaration {
	return Declaration{
		Name:        SendMessageName,
		Description: "Send an email from the user's Gmail account to a specified recipient.",
		Parameters: Schema{
			Properties: map[string]Property{
				ArgTo:      {Type: "string", Description: "The recipient's email address."},
				ArgSubject: {Type: "string", Description: "The subject line of the email."},
				ArgBody:    {Type: "string", Description: "The body content of the email."},
			},
			Required: []string{ArgTo, ArgSubject, ArgBody},
		},
	}
}

// Execute sends the message described by args. Failures yield a fixed text
// that names the recipient but not the cause.
func (t *SendMessage) Execute(ctx context.Context, cred auth.Credential, args map[string]any) Result {
	to := stringArg(args, ArgTo)
	subject := stringArg(args, ArgSubject)
	body := stringArg(args, ArgBody)

	if strings.TrimSpace(to) == "" {
		res := FromError(SendFailedText(to), errMissingRecipient)
		t.logger.WarnContext(ctx, "send without recipient", logging.Status(string(res.Status)))
		return res
	}

	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		res := FromError(SendFailedText(to), errHeaderLineBreak)
		t.logger.WarnContext(ctx, "refusing header with line break", logging.Status(string(res.Status)))
		return res
	}

	if _, err := t.svc.SendRawMessage(ctx, cred, EncodeMessage(to, subject, body)); err != nil {
		res := FromError(SendFailedText(to), fmt.Errorf("svc.SendRawMessage failed: %w", err))
		t.logger.WarnContext(ctx, "sending email failed", logging.Status(string(res.Status)), logging.Err(res.Err))
		return res
	}

	t.logger.DebugContext(ctx, "email sent")

	return OK(SendSucceededText(to))
}

// SendSucceededText is the result text of a successful send.
func SendSucceededText(to string) string {
	return fmt.Sprintf("✅ Email sent successfully to %s!", to)
}

// SendFailedText is the result text of a failed send.
func SendFailedText(to string) string {
	return fmt.Sprintf("❌ Failed to send email to %s. Please check the email address and try again.", to)
}

// EncodeMessage builds a minimal RFC 822 message and encodes it as unpadded
// URL-safe base64, the form Gmail expects in Message.Raw. Line breaks in to
// and subject are folded to spaces so they cannot start a new header.
func EncodeMessage(to, subject, body string) string {
	raw := strings.Join([]string{
		"To: " + headerValue(to),
		"Subject: " + headerValue(subject),
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\n")

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

var headerLineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func headerValue(s string) string {
	return headerLineBreaks.Replace(s)
}
