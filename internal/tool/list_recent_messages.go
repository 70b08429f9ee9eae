package tool

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/logging"
)

// ListRecentMessagesName is the name the model uses for the inbox listing.
const ListRecentMessagesName = "get_recent_emails"

// RecentMessagesLimit caps how many inbox entries are summarised.
const RecentMessagesLimit = 5

// Fixed texts returned by ListRecentMessages.
const (
	RecentMessagesHeader = "Here are your 5 most recent emails:\n\n"
	NoRecentMessages     = "You have no recent emails in your inbox."
	ListMessagesApology  = "Sorry, I couldn't fetch your emails. Please make sure you've granted the necessary permissions."
	placeholderSubject   = "(No Subject)"
	placeholderFrom      = "Unknown Sender"
	placeholderDate      = "Unknown Date"
	summaryDateLayout    = "1/2/2006"
)

type listInboxSvc interface {
	ListInboxMessages(ctx context.Context, cred auth.Credential, limit int64) ([]*gmail.Message, error)
}

// NewListRecentMessages creates the inbox listing tool.
func NewListRecentMessages(svc listInboxSvc, logger *slog.Logger) *ListRecentMessages {
	return &ListRecentMessages{
		svc:    svc,
		logger: logging.WithTool(logger, ListRecentMessagesName),
	}
}

// ListRecentMessages summarises the most recent inbox messages.
type ListRecentMessages struct {
	svc    listInboxSvc
	logger *slog.Logger
}

// Declaration describes the tool to the model.
func (t *ListRecentMessages) Declaration() Declaration {
	return Declaration{
		Name:        ListRecentMessagesName,
		Description: "Get the subject lines, senders, and dates of the 5 most recent emails from the user's Gmail inbox.",
		Parameters:  Schema{Properties: map[string]Property{}},
	}
}

// Execute lists the inbox. Any fetch failure yields the fixed apology.
func (t *ListRecentMessages) Execute(ctx context.Context, cred auth.Credential, _ map[string]any) Result {
	msgs, err := t.svc.ListInboxMessages(ctx, cred, RecentMessagesLimit)
	if err != nil {
		res := FromError(ListMessagesApology, fmt.Errorf("svc.ListInboxMessages failed: %w", err))
		t.logger.WarnContext(ctx, "listing inbox failed", logging.Status(string(res.Status)), logging.Err(res.Err))
		return res
	}

	if len(msgs) > RecentMessagesLimit {
		msgs = msgs[:RecentMessagesLimit]
	}

	summaries := make([]MessageSummary, 0, len(msgs))
	for _, m := range msgs {
		summaries = append(summaries, extractMessageSummary(m))
	}

	t.logger.DebugContext(ctx, "listed inbox", slog.Int("count", len(summaries)))

	return OK(FormatSummaries(summaries))
}

// FormatSummaries renders summaries as the text handed to the model.
func FormatSummaries(summaries []MessageSummary) string {
	if len(summaries) == 0 {
		return NoRecentMessages
	}

	var b strings.Builder
	b.WriteString(RecentMessagesHeader)
	for _, s := range summaries {
		fmt.Fprintf(&b, "📧 **%s**\n", s.Subject)
		fmt.Fprintf(&b, "   From: %s\n", s.From)
		fmt.Fprintf(&b, "   Date: %s\n\n", s.Date)
	}

	return b.String()
}

func extractMessageSummary(msg *gmail.Message) MessageSummary {
	summary := MessageSummary{ID: msg.Id}

	if msg.Payload != nil {
		extractHeadersToSummary(msg.Payload.Headers, &summary)
	}

	if summary.Subject == "" {
		summary.Subject = placeholderSubject
	}
	if summary.From == "" {
		summary.From = placeholderFrom
	}
	if summary.Date == "" {
		summary.Date = placeholderDate
	}

	return summary
}

func extractHeadersToSummary(headers []*gmail.MessagePartHeader, summary *MessageSummary) {
	for _, header := range headers {
		if header == nil {
			continue
		}
		switch header.Name {
		case "Subject":
			summary.Subject = header.Value
		case "From":
			summary.From = header.Value
		case "Date":
			summary.Date = formatDate(header.Value)
		}
	}
}

func formatDate(value string) string {
	if value == "" {
		return ""
	}

	t, err := mail.ParseDate(value)
	if err != nil {
		return value
	}

	return t.Local().Format(summaryDateLayout)
}
