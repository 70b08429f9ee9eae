package tool

import (
	"log/slog"
)

type mailSvc interface {
	listInboxSvc
	sendRawSvc
}

// NewGmailRegistry builds the registry of Gmail tools offered to the model.
func NewGmailRegistry(svc mailSvc, logger *slog.Logger) (*Registry, error) {
	list := NewListRecentMessages(svc, logger)
	send := NewSendMessage(svc, logger)

	return NewRegistry(
		Tool{Declaration: list.Declaration(), Executor: list},
		Tool{Declaration: send.Declaration(), Executor: send},
	)
}
