package chatmodel_test

import (
	"strings"
	"testing"

	"github.com/palagent/palagent/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLlamaHistoryRender(t *testing.T) {
	h := chatmodel.NewLlamaHistory("You are a helpful assistant")

	h.Append(h.NewUserTurn("What is 2+2?", "TOOLS: [...]"))
	h.Append(h.NewAssistantTurn("4"))
	require.Equal(t, 2, h.Len())

	prompt := h.Render(true, 0)
	assert.True(t, strings.HasPrefix(prompt, "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\nYou are a helpful assistant<|eot_id|>"))
	assert.Contains(t, prompt, "TOOLS: [...]\n\nWhat is 2+2?")
	assert.Contains(t, prompt, "<|start_header_id|>assistant<|end_header_id|>\n\n4<|eot_id|>")
	assert.True(t, strings.HasSuffix(prompt, "<|start_header_id|>assistant<|end_header_id|>\n\n"))

	// with tools disabled the scheme block is omitted
	prompt = h.Render(false, 0)
	assert.NotContains(t, prompt, "TOOLS: [...]")
	assert.Contains(t, prompt, "What is 2+2?")
}

func TestLlamaHistoryWindow(t *testing.T) {
	h := chatmodel.NewLlamaHistory("sys")
	h.Append(h.NewUserTurn("first question", ""))
	h.Append(h.NewAssistantTurn(`[echo_tool(text="hi")]`))
	h.Append(h.NewToolResultTurn(`[{"name":"echo_tool","output":["hi"]}]`))

	// only the trailing 2 turns are rendered, the system turn always stays
	prompt := h.Render(false, 2)
	assert.NotContains(t, prompt, "first question")
	assert.Contains(t, prompt, "<|start_header_id|>system<|end_header_id|>\n\nsys<|eot_id|>")
	assert.Contains(t, prompt, "<|start_header_id|>ipython<|end_header_id|>\n\n[{\"name\":\"echo_tool\",\"output\":[\"hi\"]}]<|eot_id|>")
}

func TestLlamaHistoryTurnsCopy(t *testing.T) {
	h := chatmodel.NewLlamaHistory("sys")
	h.Append(h.NewUserTurn("q", ""))

	turns := h.Turns()
	require.Len(t, turns, 1)
	turns[0].Content = "mutated"
	assert.Equal(t, "q", h.Turns()[0].Content)
}

func TestChatContext(t *testing.T) {
	cc := chatmodel.NewChatContext("")
	assert.NotEmpty(t, cc.GetChatID())

	cc = chatmodel.NewChatContext("chat-1")
	assert.Equal(t, "chat-1", cc.GetChatID())

	ctx := chatmodel.WithChatContext(t.Context(), cc)
	assert.Equal(t, "chat-1", chatmodel.GetChatID(ctx))
	assert.Empty(t, chatmodel.GetChatID(t.Context()))
}
