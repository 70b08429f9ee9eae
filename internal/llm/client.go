// Package llm is the generative-model client. It speaks the OpenAI
// chat-completions protocol, which Gemini also serves.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrMalformedResponse is returned when the model's reply cannot be used.
var ErrMalformedResponse = errors.New("malformed model response")

// FunctionResult is the JSON payload of a function-result message.
type FunctionResult struct {
	Result string `json:"result"`
}

// Function is a callable capability offered to the model.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a model request to run a named function.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Reply is one model turn. ToolCalls is empty for a plain text answer.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall returns the first requested call, if any.
func (r Reply) ToolCall() (ToolCall, bool) {
	if len(r.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return r.ToolCalls[0], true
}

// Conversation accumulates the turns of one request.
type Conversation interface {
	// SendText adds a user turn and returns the model's reply.
	SendText(ctx context.Context, text string) (Reply, error)
	// SendToolResult answers call with result and returns the model's reply.
	SendToolResult(ctx context.Context, call ToolCall, result string) (Reply, error)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client starts conversations with one model. It is safe for concurrent use;
// conversations are not.
type Client struct {
	api   chatCompleter
	model string
}

// NewClient creates a client for the OpenAI-compatible endpoint at baseURL.
// httpClient may be nil.
func NewClient(apiKey, baseURL, model string, httpClient *http.Client) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// StartConversation opens a fresh context in which functions are callable.
func (c *Client) StartConversation(functions []Function) Conversation {
	tools := make([]openai.Tool, 0, len(functions))
	for _, f := range functions {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        f.Name,
				Description: f.Description,
				Parameters:  f.Parameters,
			},
		})
	}

	return &conversation{
		api:   c.api,
		model: c.model,
		tools: tools,
	}
}

type conversation struct {
	api      chatCompleter
	model    string
	tools    []openai.Tool
	messages []openai.ChatCompletionMessage
}

func (cv *conversation) SendText(ctx context.Context, text string) (Reply, error) {
	cv.messages = append(cv.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	return cv.complete(ctx)
}

func (cv *conversation) SendToolResult(ctx context.Context, call ToolCall, result string) (Reply, error) {
	payload, err := json.Marshal(FunctionResult{Result: result})
	if err != nil {
		return Reply{}, fmt.Errorf("json.Marshal failed: %w", err)
	}

	cv.messages = append(cv.messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    string(payload),
		Name:       call.Name,
		ToolCallID: call.ID,
	})

	return cv.complete(ctx)
}

func (cv *conversation) complete(ctx context.Context) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:    cv.model,
		Messages: cv.messages,
	}
	if len(cv.tools) > 0 {
		req.Tools = cv.tools
	}

	resp, err := cv.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("api.CreateChatCompletion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	msg := resp.Choices[0].Message

	reply := Reply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		call, err := parseToolCall(tc)
		if err != nil {
			return Reply{}, err
		}
		reply.ToolCalls = append(reply.ToolCalls, call)
	}

	// Only the first call is ever answered, so only it is kept in the
	// context: every recorded call needs a matching tool message.
	recorded := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: msg.Content,
	}
	if len(msg.ToolCalls) > 0 {
		recorded.ToolCalls = msg.ToolCalls[:1]
	}
	cv.messages = append(cv.messages, recorded)

	return reply, nil
}

func parseToolCall(tc openai.ToolCall) (ToolCall, error) {
	call := ToolCall{
		ID:        tc.ID,
		Name:      tc.Function.Name,
		Arguments: map[string]any{},
	}

	if call.Name == "" {
		return ToolCall{}, fmt.Errorf("%w: tool call without a name", ErrMalformedResponse)
	}

	args := strings.TrimSpace(tc.Function.Arguments)
	if args == "" {
		return call, nil
	}

	if err := json.Unmarshal([]byte(args), &call.Arguments); err != nil {
		return ToolCall{}, fmt.Errorf("%w: arguments of %s: %v", ErrMalformedResponse, call.Name, err)
	}

	return call, nil
}
