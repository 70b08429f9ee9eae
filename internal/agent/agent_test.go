package agent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/gmail-agent/internal/agent"
	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/llm"
	"github.com/hal9000y/gmail-agent/internal/logging"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

type toolResultTurn struct {
	Call   llm.ToolCall
	Result string
}

type fakeConversation struct {
	replies []func(ctx context.Context) (llm.Reply, error)

	texts   []string
	results []toolResultTurn
}

func (c *fakeConversation) next(ctx context.Context) (llm.Reply, error) {
	if len(c.replies) == 0 {
		return llm.Reply{}, errors.New("unexpected model turn")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r(ctx)
}

func (c *fakeConversation) SendText(ctx context.Context, text string) (llm.Reply, error) {
	c.texts = append(c.texts, text)
	return c.next(ctx)
}

func (c *fakeConversation) SendToolResult(ctx context.Context, call llm.ToolCall, result string) (llm.Reply, error) {
	c.results = append(c.results, toolResultTurn{Call: call, Result: result})
	return c.next(ctx)
}

type fakeModel struct {
	conv      *fakeConversation
	functions []llm.Function
	started   int
}

func (m *fakeModel) StartConversation(functions []llm.Function) llm.Conversation {
	m.started++
	m.functions = functions
	return m.conv
}

func text(s string) func(context.Context) (llm.Reply, error) {
	return func(context.Context) (llm.Reply, error) { return llm.Reply{Text: s}, nil }
}

func call(name string, args map[string]any) func(context.Context) (llm.Reply, error) {
	return func(context.Context) (llm.Reply, error) {
		return llm.Reply{ToolCalls: []llm.ToolCall{{ID: "call-" + name, Name: name, Arguments: args}}}, nil
	}
}

type executorCall struct {
	Cred        auth.Credential
	Args        map[string]any
	HasDeadline bool
}

type recordingExecutor struct {
	mu     sync.Mutex
	result tool.Result
	calls  []executorCall
}

func (e *recordingExecutor) Execute(ctx context.Context, cred auth.Credential, args map[string]any) tool.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	e.calls = append(e.calls, executorCall{Cred: cred, Args: args, HasDeadline: hasDeadline})
	return e.result
}

type fixture struct {
	list  *recordingExecutor
	send  *recordingExecutor
	reg   *tool.Registry
	cred  auth.Credential
	model *fakeModel
}

func newFixture(t *testing.T, replies ...func(context.Context) (llm.Reply, error)) *fixture {
	t.Helper()

	f := &fixture{
		list:  &recordingExecutor{result: tool.OK("Here are your 5 most recent emails:\n\n📧 **Hi**\n")},
		send:  &recordingExecutor{result: tool.OK(tool.SendSucceededText("jane@x.com"))},
		model: &fakeModel{conv: &fakeConversation{replies: replies}},
	}

	var err error
	f.reg, err = tool.NewRegistry(
		tool.Tool{Declaration: tool.Declaration{Name: tool.ListRecentMessagesName}, Executor: f.list},
		tool.Tool{Declaration: tool.Declaration{Name: tool.SendMessageName}, Executor: f.send},
	)
	require.NoError(t, err)

	f.cred, err = auth.NewCredential("tok-agent")
	require.NoError(t, err)

	return f
}

func (f *fixture) agent(cfg agent.Config, opts ...agent.Option) *agent.Agent {
	return agent.New(f.model, f.reg, cfg, logging.Discard(), opts...)
}

func TestRunPlainText(t *testing.T) {
	f := newFixture(t, text("Hi! How can I help with your inbox?"))

	out, err := f.agent(agent.Config{}).Run(context.Background(), "hello", f.cred)
	require.NoError(t, err)

	assert.Equal(t, "Hi! How can I help with your inbox?", out)
	assert.Equal(t, 1, f.model.started)
	require.Len(t, f.model.conv.texts, 1)
	assert.Equal(t, agent.BuildPrompt("hello"), f.model.conv.texts[0])
	assert.Contains(t, f.model.conv.texts[0], `The user says: "hello"`)
	assert.Empty(t, f.model.conv.results)
	assert.Empty(t, f.list.calls)
	assert.Empty(t, f.send.calls)

	require.Len(t, f.model.functions, 2)
	assert.Equal(t, tool.ListRecentMessagesName, f.model.functions[0].Name)
	assert.Equal(t, "object", f.model.functions[0].Parameters["type"])
}

func TestRunListTool(t *testing.T) {
	f := newFixture(t,
		call(tool.ListRecentMessagesName, map[string]any{}),
		text("You have one email titled Hi."),
	)

	out, err := f.agent(agent.Config{}).Run(context.Background(), "read my emails", f.cred)
	require.NoError(t, err)

	assert.Equal(t, "You have one email titled Hi.", out)
	require.Len(t, f.list.calls, 1)
	assert.Equal(t, "tok-agent", f.list.calls[0].Cred.AccessToken())
	assert.True(t, f.list.calls[0].HasDeadline)
	assert.Empty(t, f.send.calls)

	require.Len(t, f.model.conv.results, 1)
	assert.Equal(t, tool.ListRecentMessagesName, f.model.conv.results[0].Call.Name)
	assert.Equal(t, f.list.result.Text, f.model.conv.results[0].Result)
}

func TestRunSendTool(t *testing.T) {
	args := map[string]any{"to": "jane@x.com", "subject": "Hello", "body": "hi"}
	f := newFixture(t,
		call(tool.SendMessageName, args),
		text("✅ Email sent successfully to jane@x.com! Anything else?"),
	)

	out, err := f.agent(agent.Config{}).Run(context.Background(), "email jane@x.com saying hi, subject Hello", f.cred)
	require.NoError(t, err)

	assert.Contains(t, out, "Email sent successfully to jane@x.com")
	require.Len(t, f.send.calls, 1)
	assert.Equal(t, args, f.send.calls[0].Args)
	assert.Equal(t, "tok-agent", f.send.calls[0].Cred.AccessToken())
}

func TestRunUnknownTool(t *testing.T) {
	f := newFixture(t,
		call("delete_everything", nil),
		text("I can't do that."),
	)

	out, err := f.agent(agent.Config{}).Run(context.Background(), "delete all", f.cred)
	require.NoError(t, err)

	assert.Equal(t, "I can't do that.", out)
	require.Len(t, f.model.conv.results, 1)
	assert.Equal(t, tool.UnknownToolResult, f.model.conv.results[0].Result)
	assert.Equal(t, "delete_everything", f.model.conv.results[0].Call.Name)
	assert.Empty(t, f.list.calls)
	assert.Empty(t, f.send.calls)
}

func TestRunDegradedToolStillAnswers(t *testing.T) {
	f := newFixture(t,
		call(tool.ListRecentMessagesName, nil),
		text("Sorry, I couldn't read your inbox."),
	)
	f.list.result = tool.FromError(tool.ListMessagesApology, errors.New("connection reset"))

	out, err := f.agent(agent.Config{}).Run(context.Background(), "read my emails", f.cred)
	require.NoError(t, err)

	assert.Equal(t, "Sorry, I couldn't read your inbox.", out)
	assert.Equal(t, tool.ListMessagesApology, f.model.conv.results[0].Result)
}

func TestRunStopsAtRoundLimit(t *testing.T) {
	f := newFixture(t,
		call(tool.ListRecentMessagesName, nil),
		func(context.Context) (llm.Reply, error) {
			return llm.Reply{
				Text:      "Let me also send that.",
				ToolCalls: []llm.ToolCall{{ID: "c2", Name: tool.SendMessageName}},
			}, nil
		},
	)

	out, err := f.agent(agent.Config{MaxToolRounds: 1}).Run(context.Background(), "read and reply", f.cred)
	require.NoError(t, err)

	assert.Equal(t, "Let me also send that.", out)
	assert.Len(t, f.list.calls, 1)
	assert.Empty(t, f.send.calls)
	assert.Len(t, f.model.conv.results, 1)
}

func TestRunChainsWhenAllowed(t *testing.T) {
	f := newFixture(t,
		call(tool.ListRecentMessagesName, nil),
		call(tool.SendMessageName, map[string]any{"to": "jane@x.com"}),
		text("Read your inbox and replied to Jane."),
	)

	out, err := f.agent(agent.Config{MaxToolRounds: 3}).Run(context.Background(), "read and reply", f.cred)
	require.NoError(t, err)

	assert.Equal(t, "Read your inbox and replied to Jane.", out)
	assert.Len(t, f.list.calls, 1)
	assert.Len(t, f.send.calls, 1)
	assert.Len(t, f.model.conv.results, 2)
}

func TestRunModelNotConfigured(t *testing.T) {
	f := newFixture(t)

	_, err := agent.New(nil, f.reg, agent.Config{}, logging.Discard()).Run(context.Background(), "hi", f.cred)
	require.ErrorIs(t, err, agent.ErrModelNotConfigured)
}

func TestRunModelErrors(t *testing.T) {
	boom := errors.New("model unreachable")
	fail := func(context.Context) (llm.Reply, error) { return llm.Reply{}, boom }

	cases := []struct {
		name    string
		replies []func(context.Context) (llm.Reply, error)
		tools   int
	}{
		{name: "first turn", replies: []func(context.Context) (llm.Reply, error){fail}},
		{name: "follow-up turn", replies: []func(context.Context) (llm.Reply, error){call(tool.ListRecentMessagesName, nil), fail}, tools: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.replies...)

			_, err := f.agent(agent.Config{}).Run(context.Background(), "read my emails", f.cred)
			require.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, agent.ErrModelTimeout)
			assert.Len(t, f.list.calls, tc.tools)
		})
	}
}

func TestRunModelTimeout(t *testing.T) {
	f := newFixture(t, func(ctx context.Context) (llm.Reply, error) {
		<-ctx.Done()
		return llm.Reply{}, ctx.Err()
	})

	_, err := f.agent(agent.Config{CallTimeout: 10 * time.Millisecond}).Run(context.Background(), "hi", f.cred)
	require.ErrorIs(t, err, agent.ErrModelTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type recordingObserver struct {
	modelCalls int
	toolCalls  map[string]tool.Status
}

func (o *recordingObserver) ObserveModelCall(time.Duration, error) { o.modelCalls++ }

func (o *recordingObserver) ObserveToolCall(name string, status tool.Status, _ time.Duration) {
	o.toolCalls[name] = status
}

func TestRunReportsToObserver(t *testing.T) {
	f := newFixture(t,
		call(tool.ListRecentMessagesName, nil),
		text("done"),
	)
	obs := &recordingObserver{toolCalls: map[string]tool.Status{}}

	_, err := f.agent(agent.Config{}, agent.WithObserver(obs)).Run(context.Background(), "read", f.cred)
	require.NoError(t, err)

	assert.Equal(t, 2, obs.modelCalls)
	assert.Equal(t, map[string]tool.Status{tool.ListRecentMessagesName: tool.StatusOK}, obs.toolCalls)
}
