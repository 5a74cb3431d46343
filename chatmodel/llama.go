package chatmodel

import (
	"strings"
	"sync"
)

// Llama 3 instruct template markers.
const (
	llamaBegin      = "<|begin_of_text|>"
	llamaHeaderOpen = "<|start_header_id|>"
	llamaHeaderEnd  = "<|end_header_id|>\n\n"
	llamaEOT        = "<|eot_id|>"

	// Tool results are presented to the model under the ipython role,
	// which Llama 3.x instruct models were trained on.
	llamaToolRole = "ipython"
)

// LlamaStopWords are the decoding stop words matching the template.
var LlamaStopWords = []string{llamaEOT, llamaHeaderOpen}

// LlamaHistory renders history in the Llama 3 instruct chat format.
type LlamaHistory struct {
	mu     sync.RWMutex
	system string
	turns  []Turn
}

var _ History = (*LlamaHistory)(nil)

// NewLlamaHistory creates an empty history with the given system instruction.
func NewLlamaHistory(system string) *LlamaHistory {
	return &LlamaHistory{
		system: system,
	}
}

// SetSystem implements History.
func (h *LlamaHistory) SetSystem(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.system = text
}

// NewUserTurn implements History.
func (h *LlamaHistory) NewUserTurn(question, toolScheme string) Turn {
	return Turn{
		Role:       RoleUser,
		Content:    question,
		ToolScheme: toolScheme,
	}
}

// NewAssistantTurn implements History.
func (h *LlamaHistory) NewAssistantTurn(answer string) Turn {
	return Turn{
		Role:    RoleAssistant,
		Content: answer,
	}
}

// NewToolResultTurn implements History.
func (h *LlamaHistory) NewToolResultTurn(result string) Turn {
	return Turn{
		Role:    RoleTool,
		Content: result,
	}
}

// Append implements History.
func (h *LlamaHistory) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
}

// Turns implements History.
func (h *LlamaHistory) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := make([]Turn, len(h.turns))
	copy(res, h.turns)
	return res
}

// Len implements History.
func (h *LlamaHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Render implements History.
// The prompt always starts with the system turn, followed by the selected
// window of turns, and ends with an open assistant header to cue generation.
func (h *LlamaHistory) Render(toolEnabled bool, last int) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var buf strings.Builder
	buf.WriteString(llamaBegin)
	writeHeader(&buf, string(RoleSystem))
	buf.WriteString(h.system)
	buf.WriteString(llamaEOT)

	window := h.turns
	if last > 0 && len(window) > last {
		window = window[len(window)-last:]
	}

	for _, turn := range window {
		writeHeader(&buf, headerRole(turn.Role))
		if turn.Role == RoleUser && toolEnabled && turn.ToolScheme != "" {
			buf.WriteString(turn.ToolScheme)
			buf.WriteString("\n\n")
		}
		buf.WriteString(turn.Content)
		buf.WriteString(llamaEOT)
	}

	writeHeader(&buf, string(RoleAssistant))
	return buf.String()
}

func writeHeader(buf *strings.Builder, role string) {
	buf.WriteString(llamaHeaderOpen)
	buf.WriteString(role)
	buf.WriteString(llamaHeaderEnd)
}

func headerRole(role Role) string {
	if role == RoleTool {
		return llamaToolRole
	}
	return string(role)
}
