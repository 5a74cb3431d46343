package agent

// ResponseType discriminates the entries of a chat trace.
type ResponseType string

const (
	// ResponseTypeText is a final natural-language answer.
	ResponseTypeText ResponseType = "text"
	// ResponseTypeToolCalling is the raw tool-call list produced by the model.
	ResponseTypeToolCalling ResponseType = "tool-calling"
	// ResponseTypeToolResult is the serialized output of the executed tools.
	ResponseTypeToolResult ResponseType = "tool-result"
)

// Response is one entry of the ordered trace returned by Chat.
type Response struct {
	Type ResponseType `json:"type"`
	Data string       `json:"data"`
}
