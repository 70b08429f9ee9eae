package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

// ListRecentMessagesInput takes no arguments.
type ListRecentMessagesInput struct{}

// SendMessageInput holds the arguments of the send tool.
type SendMessageInput struct {
	To      string `json:"to" jsonschema:"the recipient's email address"`
	Subject string `json:"subject" jsonschema:"the subject line of the email"`
	Body    string `json:"body" jsonschema:"the body content of the email"`
}

// NewServer creates an MCP server exposing the registry's Gmail tools.
// Every call acts with the bearer credential of the HTTP request carrying
// it; a call without one runs with no credential and degrades.
func NewServer(reg *Registry) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "gmail-agent", Version: "v1.0.0"}, nil)

	addTool(server, reg, ListRecentMessagesName, func(ListRecentMessagesInput) map[string]any {
		return map[string]any{}
	})

	addTool(server, reg, SendMessageName, func(in SendMessageInput) map[string]any {
		return map[string]any{
			ArgTo:      in.To,
			ArgSubject: in.Subject,
			ArgBody:    in.Body,
		}
	})

	return server
}

func addTool[In any](server *mcp.Server, reg *Registry, name string, toArgs func(In) map[string]any) {
	t, ok := reg.Lookup(name)
	if !ok {
		return
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Output, error) {
		res := t.Executor.Execute(ctx, callCredential(req), toArgs(in))
		return nil, Output{Status: string(res.Status), Result: res.Text}, nil
	})
}

// callCredential reads the credential from the request that delivered this
// call, never from the session.
func callCredential(req *mcp.CallToolRequest) auth.Credential {
	if req == nil || req.Extra == nil || req.Extra.Header == nil {
		return auth.Credential{}
	}

	cred, _ := auth.FromHeader(req.Extra.Header)
	return cred
}
