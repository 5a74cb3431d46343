package agent

import (
	"github.com/palagent/palagent/callbacks"
	"github.com/palagent/palagent/pkg/llms"
)

// DefaultHistoryWindow is the number of trailing turns included when
// generating the final answer after tool execution.
const DefaultHistoryWindow = 3

// Option is a function that configures a Config.
type Option func(*Config)

// Config holds agent settings.
type Config struct {
	SystemPrompt  string
	HistoryWindow int
	Callback      callbacks.Callback
	// GenerateOptions are forwarded to every model call.
	GenerateOptions []llms.CallOption

	systemPromptSet  bool
	historyWindowSet bool
}

// NewConfig returns a Config with the given options applied over defaults.
func NewConfig(options ...Option) *Config {
	cfg := &Config{
		SystemPrompt:  SystemPrompt,
		HistoryWindow: DefaultHistoryWindow,
		Callback:      callbacks.Noop{},
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// HasSystemPrompt reports whether WithSystemPrompt was applied.
func (c *Config) HasSystemPrompt() bool { return c.systemPromptSet }

// HasHistoryWindow reports whether WithHistoryWindow was applied.
func (c *Config) HasHistoryWindow() bool { return c.historyWindowSet }

// WithSystemPrompt overrides the default system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
		c.systemPromptSet = true
	}
}

// WithHistoryWindow sets the trailing turn window used for the final
// generation after tool execution.
func WithHistoryWindow(last int) Option {
	return func(c *Config) {
		c.HistoryWindow = last
		c.historyWindowSet = true
	}
}

// WithCallback installs an observation callback.
func WithCallback(cb callbacks.Callback) Option {
	return func(c *Config) {
		c.Callback = cb
	}
}

// WithGenerateOptions sets decoding options forwarded to every model call.
func WithGenerateOptions(options ...llms.CallOption) Option {
	return func(c *Config) {
		c.GenerateOptions = append(c.GenerateOptions, options...)
	}
}
