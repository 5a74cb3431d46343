package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/palagent/palagent/agent"
	"github.com/palagent/palagent/callbacks"
	"github.com/palagent/palagent/chatmodel"
	"github.com/palagent/palagent/mcp"
	"github.com/palagent/palagent/mcp/transport/localtransport"
	"github.com/palagent/palagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays a fixed sequence of completions and records the
// prompts it was called with.
type scriptedModel struct {
	completions []string
	prompts     []string
	err         error
}

func (m *scriptedModel) GetName() string { return "scripted" }

func (m *scriptedModel) Generate(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.prompts = append(m.prompts, prompt)
	if len(m.completions) == 0 {
		return "", errors.New("script exhausted")
	}
	next := m.completions[0]
	m.completions = m.completions[1:]
	return next, nil
}

// fakeTools serves a static catalog and an echo-style call table.
type fakeTools struct {
	catalog   []mcp.Tool
	resources []mcp.Resource
	outputs   map[string][]string
	calls     []string
	callErr   error
	closed    bool
}

func (f *fakeTools) AggregateCatalog(ctx context.Context) ([]mcp.Tool, error) {
	return f.catalog, nil
}

func (f *fakeTools) AggregateResources(ctx context.Context) ([]mcp.Resource, error) {
	return f.resources, nil
}

func (f *fakeTools) Call(ctx context.Context, name string, args map[string]string) (bool, []string, error) {
	f.calls = append(f.calls, name)
	if f.callErr != nil {
		return false, nil, f.callErr
	}
	out, ok := f.outputs[name]
	if !ok {
		return false, nil, errors.WithMessagef(mcp.ErrUnknownTool, "%q", name)
	}
	if len(args) > 0 {
		// echo semantics for tools keyed by their text argument
		if text, ok := args["text"]; ok {
			out = []string{text}
		}
	}
	return false, out, nil
}

func (f *fakeTools) CloseAll() error {
	f.closed = true
	return nil
}

func newTestTools() *fakeTools {
	return &fakeTools{
		catalog: []mcp.Tool{
			{Name: "echo_tool", Description: "Echoes the input text."},
			{Name: "add_tool", Description: "Adds two numbers."},
		},
		resources: []mcp.Resource{
			{Uri: "test://greeting", Name: "greeting"},
		},
		outputs: map[string][]string{
			"echo_tool": {"echoed"},
			"add_tool":  {"4"},
		},
	}
}

func newTestAgent(t *testing.T, model *scriptedModel, tools agent.ToolSource, options ...agent.Option) *agent.Agent {
	t.Helper()

	a := agent.New("pal", model, chatmodel.NewLlamaHistory(""), tools, options...)
	require.NoError(t, a.Init(t.Context()))
	return a
}

func TestChat_PlainAnswer(t *testing.T) {
	model := &scriptedModel{completions: []string{"Just a plain answer."}}
	tools := newTestTools()
	history := chatmodel.NewLlamaHistory("")

	a := agent.New("pal", model, history, tools)
	require.NoError(t, a.Init(t.Context()))

	responses, err := a.Chat(t.Context(), "Tell me something.")
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.Equal(t, agent.ResponseTypeText, responses[0].Type)
	assert.Equal(t, "Just a plain answer.", responses[0].Data)

	// user turn plus assistant turn
	require.Equal(t, 2, history.Len())
	turns := history.Turns()
	assert.Equal(t, chatmodel.RoleUser, turns[0].Role)
	assert.Equal(t, chatmodel.RoleAssistant, turns[1].Role)
	assert.Empty(t, tools.calls)

	// the first generation carries the tool-calling instructions
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "expert in composing functions")
	assert.Contains(t, model.prompts[0], "echo_tool")
}

func TestChat_ToolFlow(t *testing.T) {
	model := &scriptedModel{completions: []string{
		`[add_tool(a=2, b=2)]`,
		"The answer is 4.",
	}}
	tools := newTestTools()
	history := chatmodel.NewLlamaHistory("")

	a := agent.New("pal", model, history, tools)
	require.NoError(t, a.Init(t.Context()))

	responses, err := a.Chat(t.Context(), "What is 2+2?")
	require.NoError(t, err)

	require.Len(t, responses, 3)
	assert.Equal(t, agent.ResponseTypeToolCalling, responses[0].Type)
	assert.Equal(t, `[add_tool(a=2, b=2)]`, responses[0].Data)
	assert.Equal(t, agent.ResponseTypeToolResult, responses[1].Type)
	assert.JSONEq(t, `[{"name":"add_tool","output":["4"]}]`, responses[1].Data)
	assert.Equal(t, agent.ResponseTypeText, responses[2].Type)
	assert.Equal(t, "The answer is 4.", responses[2].Data)

	// user, assistant call list, tool result, assistant answer
	require.Equal(t, 4, history.Len())
	turns := history.Turns()
	assert.Equal(t, chatmodel.RoleUser, turns[0].Role)
	assert.Equal(t, chatmodel.RoleAssistant, turns[1].Role)
	assert.Equal(t, chatmodel.RoleTool, turns[2].Role)
	assert.Equal(t, chatmodel.RoleAssistant, turns[3].Role)

	assert.Equal(t, []string{"add_tool"}, tools.calls)

	// the final generation omits the tool-calling instructions
	require.Len(t, model.prompts, 2)
	assert.NotContains(t, model.prompts[1], "expert in composing functions")
}

func TestChat_StripsWrappersBeforeClassifying(t *testing.T) {
	model := &scriptedModel{completions: []string{
		"  <[echo_tool(text=\"hi\")]",
		"Echoed back.",
	}}
	tools := newTestTools()

	a := newTestAgent(t, model, tools)

	responses, err := a.Chat(t.Context(), "Echo hi.")
	require.NoError(t, err)

	require.Len(t, responses, 3)
	assert.Equal(t, `[echo_tool(text="hi")]`, responses[0].Data)
	assert.JSONEq(t, `[{"name":"echo_tool","output":["hi"]}]`, responses[1].Data)
}

func TestChat_MultipleCallsSequential(t *testing.T) {
	model := &scriptedModel{completions: []string{
		`[echo_tool(text="one"), add_tool(a=1, b=3)]`,
		"Done.",
	}}
	tools := newTestTools()

	a := newTestAgent(t, model, tools)

	responses, err := a.Chat(t.Context(), "Do two things.")
	require.NoError(t, err)

	assert.Equal(t, []string{"echo_tool", "add_tool"}, tools.calls)
	assert.JSONEq(t,
		`[{"name":"echo_tool","output":["one"]},{"name":"add_tool","output":["4"]}]`,
		responses[1].Data)
}

func TestChat_UnknownToolAborts(t *testing.T) {
	model := &scriptedModel{completions: []string{
		`[missing_tool()]`,
		"never reached",
	}}
	tools := newTestTools()
	history := chatmodel.NewLlamaHistory("")

	a := agent.New("pal", model, history, tools)
	require.NoError(t, a.Init(t.Context()))

	_, err := a.Chat(t.Context(), "Use a missing tool.")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrUnknownTool)
}

func TestChat_ToolTransportFailureAborts(t *testing.T) {
	model := &scriptedModel{completions: []string{
		`[echo_tool(text="x")]`,
	}}
	tools := newTestTools()
	tools.callErr = errors.New("pipe broken")

	a := newTestAgent(t, model, tools)

	_, err := a.Chat(t.Context(), "Echo x.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe broken")
}

func TestChat_ModelFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("backend down")}
	tools := newTestTools()

	a := newTestAgent(t, model, tools)

	_, err := a.Chat(t.Context(), "Anything.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model generation failed")
}

func TestChat_ProseWithBracketsIsNotACallList(t *testing.T) {
	model := &scriptedModel{completions: []string{
		"I considered [several options] but none apply.",
	}}
	tools := newTestTools()

	a := newTestAgent(t, model, tools)

	responses, err := a.Chat(t.Context(), "Ponder.")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, agent.ResponseTypeText, responses[0].Type)
	assert.Empty(t, tools.calls)
}

func TestChat_NoTools(t *testing.T) {
	model := &scriptedModel{completions: []string{"No tools here."}}
	history := chatmodel.NewLlamaHistory("")

	a := agent.New("pal", model, history, nil)
	require.NoError(t, a.Init(t.Context()))

	responses, err := a.Chat(t.Context(), "Hello.")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "No tools here.", responses[0].Data)

	// without a tool source the prompt has no tool-calling section
	require.Len(t, model.prompts, 1)
	assert.NotContains(t, model.prompts[0], "expert in composing functions")
}

func TestChat_Callbacks(t *testing.T) {
	model := &scriptedModel{completions: []string{
		`[add_tool(a=2, b=2)]`,
		"The answer is 4.",
	}}
	tools := newTestTools()

	var sb strings.Builder
	a := newTestAgent(t, model, tools, agent.WithCallback(callbacks.NewPrinter(&sb)))

	_, err := a.Chat(t.Context(), "What is 2+2?")
	require.NoError(t, err)

	out := sb.String()
	assert.Contains(t, out, "question: What is 2+2?")
	assert.Contains(t, out, "tool-calling: [add_tool(a=2, b=2)]")
	assert.Contains(t, out, "tool-result:")
	assert.Contains(t, out, "answer: The answer is 4.")
}

func TestChat_SystemPromptInstalled(t *testing.T) {
	model := &scriptedModel{completions: []string{"ok"}}
	history := chatmodel.NewLlamaHistory("")

	a := agent.New("pal", model, history, nil, agent.WithSystemPrompt("You are terse"))
	require.NoError(t, a.Init(t.Context()))

	_, err := a.Chat(t.Context(), "Hi.")
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "You are terse")
}

func TestAgent_Close(t *testing.T) {
	tools := newTestTools()
	a := agent.New("pal", &scriptedModel{}, chatmodel.NewLlamaHistory(""), tools)

	require.NoError(t, a.Close())
	assert.True(t, tools.closed)
}

func TestAgent_Names(t *testing.T) {
	a := agent.New("pal", &scriptedModel{}, chatmodel.NewLlamaHistory(""), nil)

	assert.Equal(t, "pal", a.Name())
	assert.Equal(t, "scripted", a.ModelName())
}

type echoToolArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo back"`
}

// The whole pipeline in one piece: the agent drives a real manager, which
// routes through a real client session to a real server on the other end of
// an in-process pipe.
func TestChat_EndToEndOverPipe(t *testing.T) {
	clientTr, serverTr := localtransport.NewPipe()
	server := mcp.NewServer(serverTr, mcp.WithName("Echo Server"), mcp.WithVersion("1.0.0"))
	require.NoError(t, server.RegisterTool("echo_tool", "Echoes the input text.",
		func(args echoToolArgs) (*mcp.ToolResponse, error) {
			return mcp.NewToolResponse(mcp.NewTextContent(args.Text)), nil
		}))
	require.NoError(t, server.Serve())

	client := mcp.NewClient()
	require.NoError(t, client.Connect(t.Context(), clientTr))

	manager := mcp.NewManager()
	manager.AddClient(client)

	model := &scriptedModel{completions: []string{
		`[echo_tool(text="hi")]`,
		"It said hi.",
	}}
	history := chatmodel.NewLlamaHistory("")

	a := agent.New("pal", model, history, manager)
	require.NoError(t, a.Init(t.Context()))
	t.Cleanup(func() {
		_ = a.Close()
	})

	// the aggregated catalog reaches the tool-enabled prompt
	responses, err := a.Chat(t.Context(), "Echo hi.")
	require.NoError(t, err)

	require.Len(t, responses, 3)
	assert.Equal(t, agent.ResponseTypeToolCalling, responses[0].Type)
	assert.Equal(t, `[echo_tool(text="hi")]`, responses[0].Data)
	assert.Equal(t, agent.ResponseTypeToolResult, responses[1].Type)
	assert.JSONEq(t, `[{"name":"echo_tool","output":["hi"]}]`, responses[1].Data)
	assert.Equal(t, agent.ResponseTypeText, responses[2].Type)
	assert.Equal(t, "It said hi.", responses[2].Data)

	require.Equal(t, 4, history.Len())
	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0], "echo_tool")
}
