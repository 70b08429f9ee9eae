// Package agent answers one user prompt, letting the model run a bounded
// number of mailbox tools on the user's behalf.
//
// Per request the flow is
//
//	Start -> ModelInvoked -> Done
//	                      -> ToolExecuted -> ModelInvoked -> ... -> Done
//
// with at most MaxToolRounds tool executions. Nothing survives the request.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/llm"
	"github.com/hal9000y/gmail-agent/internal/logging"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

var (
	// ErrModelNotConfigured is returned before any outbound call when the
	// model-access secret is absent.
	ErrModelNotConfigured = errors.New("model not configured")
	// ErrModelTimeout is returned when a model call exceeds CallTimeout.
	ErrModelTimeout = errors.New("model call timed out")
)

const promptTemplate = `You are a helpful Gmail assistant. The user says: "%s"

You can help with:
1. Reading recent emails (use %s function)
2. Sending emails (use %s function)

Always be conversational and helpful. If the user asks to send an email, make sure to extract or ask for the recipient, subject, and message content clearly.`

// BuildPrompt embeds the raw user prompt in the assistant's framing.
func BuildPrompt(prompt string) string {
	return fmt.Sprintf(promptTemplate, prompt, tool.ListRecentMessagesName, tool.SendMessageName)
}

// Model starts conversations. *llm.Client implements it.
type Model interface {
	StartConversation(functions []llm.Function) llm.Conversation
}

// Observer is told about every outbound call.
type Observer interface {
	ObserveModelCall(d time.Duration, err error)
	ObserveToolCall(name string, status tool.Status, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveModelCall(time.Duration, error) {}
func (nopObserver) ObserveToolCall(string, tool.Status, time.Duration) {}

const defaultCallTimeout = 30 * time.Second

// Config bounds a run.
type Config struct {
	MaxToolRounds int
	CallTimeout   time.Duration
}

// Agent is stateless between runs and safe for concurrent use.
type Agent struct {
	model    Model
	registry *tool.Registry
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

// Option customises an Agent.
type Option func(*Agent)

// WithObserver reports outbound calls to o.
func WithObserver(o Observer) Option {
	return func(a *Agent) {
		a.observer = o
	}
}

// New creates an agent. model may be nil, in which case every Run fails with
// ErrModelNotConfigured.
func New(model Model, registry *tool.Registry, cfg Config, logger *slog.Logger, opts ...Option) *Agent {
	if cfg.MaxToolRounds < 1 {
		cfg.MaxToolRounds = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	a := &Agent{
		model:    model,
		registry: registry,
		cfg:      cfg,
		logger:   logging.WithOperation(logger, "agent.run"),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run answers prompt acting on the mailbox cred grants access to.
// Tool failures never surface here: they reach the model as text.
func (a *Agent) Run(ctx context.Context, prompt string, cred auth.Credential) (string, error) {
	if a.model == nil {
		return "", ErrModelNotConfigured
	}

	conv := a.model.StartConversation(a.functions())

	reply, err := a.invoke(ctx, func(ctx context.Context) (llm.Reply, error) {
		return conv.SendText(ctx, BuildPrompt(prompt))
	})
	if err != nil {
		return "", err
	}

	for round := 0; ; round++ {
		call, ok := reply.ToolCall()
		if !ok {
			return reply.Text, nil
		}

		if round >= a.cfg.MaxToolRounds {
			a.logger.WarnContext(ctx, "dropping tool call, round limit reached",
				logging.Tool(call.Name), slog.Int("max_rounds", a.cfg.MaxToolRounds))
			return reply.Text, nil
		}

		result := a.execute(ctx, call, cred)

		reply, err = a.invoke(ctx, func(ctx context.Context) (llm.Reply, error) {
			return conv.SendToolResult(ctx, call, result)
		})
		if err != nil {
			return "", err
		}
	}
}

func (a *Agent) functions() []llm.Function {
	decls := a.registry.Declarations()

	out := make([]llm.Function, 0, len(decls))
	for _, d := range decls {
		out = append(out, llm.Function{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters.JSONSchema(),
		})
	}

	return out
}

func (a *Agent) invoke(ctx context.Context, send func(context.Context) (llm.Reply, error)) (llm.Reply, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	reply, err := send(callCtx)
	a.observer.ObserveModelCall(time.Since(start), err)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return llm.Reply{}, fmt.Errorf("%w: %w", ErrModelTimeout, err)
		}
		return llm.Reply{}, fmt.Errorf("model call failed: %w", err)
	}

	return reply, nil
}

func (a *Agent) execute(ctx context.Context, call llm.ToolCall, cred auth.Credential) string {
	t, ok := a.registry.Lookup(call.Name)
	if !ok {
		a.logger.WarnContext(ctx, "model requested unknown tool", logging.Tool(call.Name))
		return tool.UnknownToolResult
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	res := t.Executor.Execute(callCtx, cred, call.Arguments)
	d := time.Since(start)

	a.observer.ObserveToolCall(call.Name, res.Status, d)
	a.logger.InfoContext(ctx, "tool executed",
		logging.Tool(call.Name),
		logging.Status(string(res.Status)),
		slog.Duration(logging.KeyDuration, d),
		logging.Err(res.Err))

	return res.Text
}
