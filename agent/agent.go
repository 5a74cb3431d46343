// Package agent implements the tool-augmented chat orchestrator. A question
// is first put to the model with tool-calling instructions; if the reply is a
// call list, the named tools are executed through the MCP manager and their
// results are folded back into the conversation before a final answer is
// generated.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/chatmodel"
	"github.com/palagent/palagent/mcp"
	"github.com/palagent/palagent/pkg/llms"
	"github.com/palagent/palagent/pkg/llmutils"
	"github.com/palagent/palagent/pkg/metricskey"
	"github.com/palagent/palagent/toolcall"
)

var logger = xlog.NewPackageLogger("github.com/palagent/palagent", "agent")

// SystemPrompt is the default system instruction.
const SystemPrompt = "You are a helpful assistant"

// toolCallPrompt instructs the model to reply with nothing but a call list.
// The %s placeholder receives the JSON tool catalog.
const toolCallPrompt = `You are an expert in composing functions. You are given a question and a set of possible functions.
Based on the question, you will need to make one or more function/tool calls to achieve the purpose.
If none of the function can be used, point it out. If the given question lacks the parameters required by the function,
also point it out. You should only return the function call in tools call sections.

If you decide to invoke any of the function(s), you MUST put it in the format of [func_name1(), func_name2(params_name1=params_value1, params_name2=params_value2...), func_name3(params)]
You SHOULD NOT include any other text in the response.

Here is a list of functions in JSON format that you can invoke.

%s
`

// ToolSource is the tool-calling capability the agent depends on.
// *mcp.Manager satisfies it.
type ToolSource interface {
	AggregateCatalog(ctx context.Context) ([]mcp.Tool, error)
	AggregateResources(ctx context.Context) ([]mcp.Resource, error)
	Call(ctx context.Context, name string, args map[string]string) (bool, []string, error)
	CloseAll() error
}

// Agent orchestrates a model, a conversation history, and a tool source.
type Agent struct {
	name    string
	llm     llms.Model
	history chatmodel.History
	tools   ToolSource
	cfg     *Config

	funcSchemePrompt string
	resourcePrompt   string
}

// New creates an agent. Call Init before Chat when a tool source is set.
func New(name string, model llms.Model, history chatmodel.History, tools ToolSource, options ...Option) *Agent {
	cfg := NewConfig(options...)
	return &Agent{
		name:    name,
		llm:     model,
		history: history,
		tools:   tools,
		cfg:     cfg,
	}
}

// Name returns the agent's display name.
func (a *Agent) Name() string {
	return a.name
}

// ModelName returns the underlying model's name.
func (a *Agent) ModelName() string {
	return a.llm.GetName()
}

// Init aggregates the tool catalog and resource list from the tool source
// and installs the system instruction. The serialized catalog is cached and
// injected into the tool-calling prompt on every Chat.
func (a *Agent) Init(ctx context.Context) error {
	a.history.SetSystem(a.cfg.SystemPrompt)

	if a.tools == nil {
		return nil
	}

	catalog, err := a.tools.AggregateCatalog(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to aggregate tool catalog")
	}
	resources, err := a.tools.AggregateResources(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to aggregate resources")
	}

	a.funcSchemePrompt = llmutils.ToJSON(catalog)
	a.resourcePrompt = llmutils.ToJSON(resources)

	logger.KV(xlog.DEBUG,
		"agent", a.name,
		"tools", len(catalog),
		"resources", len(resources),
	)
	return nil
}

// Close releases the tool source.
func (a *Agent) Close() error {
	if a.tools == nil {
		return nil
	}
	return a.tools.CloseAll()
}

type toolResult struct {
	Name   string   `json:"name"`
	Output []string `json:"output"`
}

// Chat runs one full interaction for a question and returns the ordered
// trace: when tools are invoked the trace is tool-calling, tool-result, text;
// otherwise a single text entry. Any model or tool failure aborts the
// interaction.
func (a *Agent) Chat(ctx context.Context, question string, options ...llms.CallOption) ([]Response, error) {
	started := time.Now()
	defer metricskey.PerfChatCall.MeasureSince(started, a.name)

	if chatmodel.GetChatID(ctx) == "" {
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(""))
	}

	a.cfg.Callback.OnChatStart(ctx, a.name, question)
	logger.KV(xlog.DEBUG, "agent", a.name, "chat_id", chatmodel.GetChatID(ctx), "question", question)

	responses, err := a.chat(ctx, question, options)
	if err != nil {
		metricskey.StatsChatCallsFailed.IncrCounter(1, a.name)
		a.cfg.Callback.OnError(ctx, a.name, err)
		return nil, err
	}

	metricskey.StatsChatCallsSucceeded.IncrCounter(1, a.name)
	return responses, nil
}

func (a *Agent) chat(ctx context.Context, question string, options []llms.CallOption) ([]Response, error) {
	var responses []Response

	var toolScheme string
	if a.funcSchemePrompt != "" {
		toolScheme = fmt.Sprintf(toolCallPrompt, a.funcSchemePrompt)
	}

	a.history.Append(a.history.NewUserTurn(question, toolScheme))

	raw, err := a.generate(ctx, a.history.Render(true, 0), options)
	if err != nil {
		return nil, err
	}

	response := llmutils.TrimWrappers(raw)
	logger.KV(xlog.DEBUG, "agent", a.name, "response", response)

	if a.tools != nil && toolcall.IsCallList(response) {
		a.cfg.Callback.OnToolCalling(ctx, a.name, response)
		responses = append(responses, Response{Type: ResponseTypeToolCalling, Data: response})
		a.history.Append(a.history.NewAssistantTurn(response))

		result, err := a.executeTools(ctx, response)
		if err != nil {
			return nil, err
		}

		a.cfg.Callback.OnToolResult(ctx, a.name, result)
		responses = append(responses, Response{Type: ResponseTypeToolResult, Data: result})
		a.history.Append(a.history.NewToolResultTurn(result))

		response, err = a.generate(ctx, a.history.Render(false, a.cfg.HistoryWindow), options)
		if err != nil {
			return nil, err
		}
		response = strings.TrimSpace(response)
		logger.KV(xlog.DEBUG, "agent", a.name, "final_response", response)
	}

	a.cfg.Callback.OnAnswer(ctx, a.name, response)
	responses = append(responses, Response{Type: ResponseTypeText, Data: response})
	a.history.Append(a.history.NewAssistantTurn(response))

	return responses, nil
}

// executeTools parses the call list and runs each request sequentially, in
// the order the model produced them, collecting per-tool outputs. A routing
// or transport failure aborts; a tool level error is folded into the outputs
// so the model can react to it.
func (a *Agent) executeTools(ctx context.Context, callList string) (string, error) {
	requests, err := toolcall.Parse(callList)
	if err != nil {
		return "", errors.WithMessage(err, "failed to parse tool call list")
	}

	results := make([]toolResult, 0, len(requests))
	for _, req := range requests {
		isError, texts, err := a.tools.Call(ctx, req.Name, req.Args)
		if err != nil {
			return "", errors.WithMessagef(err, "tool call failed: %s", req.Name)
		}
		logger.KV(xlog.DEBUG,
			"agent", a.name,
			"tool", req.Name,
			"args", llmutils.ToJSON(req.Args),
			"is_error", isError,
			"outputs", len(texts),
		)

		results = append(results, toolResult{
			Name:   req.Name,
			Output: texts,
		})
	}

	return llmutils.ToJSON(results), nil
}

func (a *Agent) generate(ctx context.Context, prompt string, options []llms.CallOption) (string, error) {
	opts := make([]llms.CallOption, 0, len(a.cfg.GenerateOptions)+len(options))
	opts = append(opts, a.cfg.GenerateOptions...)
	opts = append(opts, options...)

	modelName := a.llm.GetName()
	metricskey.StatsLLMBytesSent.IncrCounter(float64(len(prompt)), a.name, modelName)

	completion, err := a.llm.Generate(ctx, prompt, opts...)
	if err != nil {
		return "", errors.WithMessage(err, "model generation failed")
	}

	metricskey.StatsLLMBytesReceived.IncrCounter(float64(len(completion)), a.name, modelName)
	return completion, nil
}
