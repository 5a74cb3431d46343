// Package mcp implements the Model Context Protocol surfaces used by the
// agent: a stdio client for talking to tool servers, a manager that
// aggregates tools across servers and routes calls, and a server side for
// building tool servers in Go.
package mcp

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

const protocolVersion = "2024-11-05"

// Implementation identifies one end of an MCP session.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResponse is the server's reply to the initialize handshake.
type InitializeResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// Tool describes one callable tool exposed by a server.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema,omitempty"`
}

// ToolsResponse is the result of a tools/list request.
type ToolsResponse struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// Resource describes one resource exposed by a server.
type Resource struct {
	Uri         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesResponse is the result of a resources/list request.
type ListResourcesResponse struct {
	Resources  []Resource `json:"resources"`
	NextCursor *string    `json:"nextCursor,omitempty"`
}

// ContentType discriminates tool response content items.
type ContentType string

const (
	ContentTypeText ContentType = "text"
)

// TextContent is the text payload of a content item.
type TextContent struct {
	Text string `json:"text"`
}

// Content is a single content item in a tool response. Only text content is
// supported.
type Content struct {
	Type ContentType `json:"type"`
	*TextContent
}

// NewTextContent creates a text content item.
func NewTextContent(text string) *Content {
	return &Content{
		Type:        ContentTypeText,
		TextContent: &TextContent{Text: text},
	}
}

// ToolResponse is the result of a tools/call request. IsError marks a tool
// level failure reported in-band, with the failure text in Content.
type ToolResponse struct {
	Content []*Content `json:"content"`
	IsError bool       `json:"isError,omitempty"`
}

// NewToolResponse creates a successful tool response with the given content.
func NewToolResponse(content ...*Content) *ToolResponse {
	return &ToolResponse{
		Content: content,
	}
}

// Texts flattens the text of all content items.
func (r *ToolResponse) Texts() []string {
	texts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c != nil && c.TextContent != nil {
			texts = append(texts, c.Text)
		}
	}
	return texts
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
