package chatmodel

import (
	"context"

	"github.com/effective-security/x/values"
	"github.com/google/uuid"
)

// ChatContext identifies one ongoing conversation.
type ChatContext interface {
	GetChatID() string
}

type chatContext struct {
	chatID string
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

// NewChatContext creates a ChatContext with the given ID,
// generating a new one when empty.
func NewChatContext(chatID string) ChatContext {
	return &chatContext{
		chatID: values.StringsCoalesce(chatID, NewChatID()),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetChatID()
	}
	return ""
}

// NewChatID generates a new random chat ID.
func NewChatID() string {
	return uuid.NewString()
}
