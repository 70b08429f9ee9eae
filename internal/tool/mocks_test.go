package tool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

type listInboxCall struct {
	Cred  auth.Credential
	Limit int64
}

type sendRawCall struct {
	Cred auth.Credential
	Raw  string
}

type gmailSvcMock struct {
	ListInboxMessagesFunc func(ctx context.Context, cred auth.Credential, limit int64) ([]*gmail.Message, error)
	SendRawMessageFunc    func(ctx context.Context, cred auth.Credential, raw string) (*gmail.Message, error)

	mu        sync.Mutex
	listCalls []listInboxCall
	sendCalls []sendRawCall
}

func (m *gmailSvcMock) ListInboxMessages(ctx context.Context, cred auth.Credential, limit int64) ([]*gmail.Message, error) {
	m.mu.Lock()
	m.listCalls = append(m.listCalls, listInboxCall{Cred: cred, Limit: limit})
	m.mu.Unlock()

	if m.ListInboxMessagesFunc == nil {
		panic("gmailSvcMock.ListInboxMessagesFunc: method is nil but ListInboxMessages was just called")
	}
	return m.ListInboxMessagesFunc(ctx, cred, limit)
}

func (m *gmailSvcMock) SendRawMessage(ctx context.Context, cred auth.Credential, raw string) (*gmail.Message, error) {
	m.mu.Lock()
	m.sendCalls = append(m.sendCalls, sendRawCall{Cred: cred, Raw: raw})
	m.mu.Unlock()

	if m.SendRawMessageFunc == nil {
		panic("gmailSvcMock.SendRawMessageFunc: method is nil but SendRawMessage was just called")
	}
	return m.SendRawMessageFunc(ctx, cred, raw)
}

func (m *gmailSvcMock) ListCalls() []listInboxCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]listInboxCall(nil), m.listCalls...)
}

func (m *gmailSvcMock) SendCalls() []sendRawCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendRawCall(nil), m.sendCalls...)
}

func message(id string, headers map[string]string) *gmail.Message {
	msg := &gmail.Message{Id: id, Payload: &gmail.MessagePart{}}
	for _, name := range []string{"Subject", "From", "Date"} {
		if v, ok := headers[name]; ok {
			msg.Payload.Headers = append(msg.Payload.Headers, &gmail.MessagePartHeader{Name: name, Value: v})
		}
	}
	return msg
}

// localZone sets the process time zone for the duration of the test.
func localZone(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = prev })
}
