// Package chatmodel provides the conversation history capability consumed by
// the agent: role-tagged turns, appended in order, rendered into a
// generation-ready prompt for a completion model.
package chatmodel

// Role is the type of a conversation turn.
type Role string

const (
	// RoleSystem is the system instruction turn.
	RoleSystem Role = "system"
	// RoleUser is a turn sent by the user.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the model.
	RoleAssistant Role = "assistant"
	// RoleTool is a turn carrying tool execution results.
	RoleTool Role = "tool"
)

// Turn is one role-tagged fragment of the conversation.
// Turns are immutable once appended; ordering is significant.
type Turn struct {
	Role    Role
	Content string

	// ToolScheme carries the machine-readable tool-calling instructions for a
	// user turn. It is rendered only when the prompt is built with tools
	// enabled, so the same turn serves both generation phases.
	ToolScheme string
}

// History accumulates turns and renders generation-ready prompts.
// The agent never inspects turn internals; it only uses these operations.
// Implementations decide the chat template of the underlying model.
type History interface {
	// SetSystem installs the system instruction used by every rendered prompt.
	SetSystem(text string)

	// NewUserTurn produces a user turn from a question and an optional
	// tool-scheme instruction block.
	NewUserTurn(question, toolScheme string) Turn
	// NewAssistantTurn produces an assistant turn from an answer.
	NewAssistantTurn(answer string) Turn
	// NewToolResultTurn produces a tool-result turn from a serialized result.
	NewToolResultTurn(result string) Turn

	// Append adds a turn to the ongoing history.
	Append(turn Turn)

	// Render builds the prompt string for the next generation.
	// When toolEnabled is false, tool-scheme instructions are omitted.
	// When last > 0, only the most recent last turns are included.
	Render(toolEnabled bool, last int) string

	// Turns returns the accumulated turns in append order.
	Turns() []Turn
	// Len returns the number of accumulated turns.
	Len() int
}
