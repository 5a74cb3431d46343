package llms

import (
	"context"
)

// Model is the interface the agent uses to talk to a language model backend.
// A backend owns one loaded model and turns a fully rendered prompt into a
// single completion. Backends must not retry on their own.
type Model interface {
	// GetName returns a human-readable identifier of the model,
	// usually derived from the model file or the served model name.
	GetName() string

	// Generate produces one completion for the given prompt.
	// Errors from the backend propagate to the caller as-is.
	Generate(ctx context.Context, prompt string, options ...CallOption) (string, error)
}
