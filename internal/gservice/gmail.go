// Package gservice binds Gmail API calls to the caller's delegated credential.
package gservice

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

const (
	gmailUserID = "me"
	inboxQuery  = "is:inbox"
)

// MetadataHeaders are the headers requested for inbox summaries.
var MetadataHeaders = []string{"Subject", "From", "Date"}

// NewGmail creates a Gmail client. An empty endpoint uses Google's default.
// base, when not nil, is the transport under the oauth2 layer.
func NewGmail(endpoint string, base *http.Client) *GMail {
	return &GMail{
		endpoint: endpoint,
		base:     base,
	}
}

// GMail issues Gmail API calls. It holds no credential: every call builds a
// service from the credential it is given.
type GMail struct {
	endpoint string
	base     *http.Client
}

// ListInboxMessages returns metadata for up to limit most recent inbox messages.
func (m *GMail) ListInboxMessages(ctx context.Context, cred auth.Credential, limit int64) ([]*gmail.Message, error) {
	svc, err := m.newSvc(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	result, err := svc.Users.Messages.List(gmailUserID).
		Q(inboxQuery).
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.List failed: %w", err)
	}

	messages := result.Messages
	if int64(len(messages)) > limit {
		messages = messages[:limit]
	}

	out := make([]*gmail.Message, 0, len(messages))
	for _, ref := range messages {
		msg, err := svc.Users.Messages.Get(gmailUserID, ref.Id).
			Format("metadata").
			MetadataHeaders(MetadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("messages.Get %s failed: %w", ref.Id, err)
		}
		out = append(out, msg)
	}

	return out, nil
}

// SendRawMessage submits an already encoded RFC 822 message.
func (m *GMail) SendRawMessage(ctx context.Context, cred auth.Credential, raw string) (*gmail.Message, error) {
	svc, err := m.newSvc(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	sent, err := svc.Users.Messages.Send(gmailUserID, &gmail.Message{Raw: raw}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Send failed: %w", err)
	}

	return sent, nil
}

func (m *GMail) newSvc(ctx context.Context, cred auth.Credential) (*gmail.Service, error) {
	if _, err := cred.OAuthToken(); err != nil {
		return nil, fmt.Errorf("cred.OAuthToken failed: %w", err)
	}

	if m.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.base)
	}
	clt := oauth2.NewClient(ctx, cred.TokenSource())

	opts := []option.ClientOption{option.WithHTTPClient(clt)}
	if m.endpoint != "" {
		opts = append(opts, option.WithEndpoint(m.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}
