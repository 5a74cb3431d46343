// Package llmfactory loads the runtime configuration and constructs the
// model backend it describes.
package llmfactory

import (
	"github.com/effective-security/x/configloader"
	"github.com/palagent/palagent/agentio"
	"github.com/palagent/palagent/pkg/llms/llamacpp"
	"github.com/palagent/palagent/pkg/llms/openaicompat"
)

// Backend selects the model implementation.
type Backend string

const (
	// BackendLlamaCPP runs a local GGUF model in-process.
	BackendLlamaCPP Backend = "llamacpp"
	// BackendOpenAI talks to an OpenAI-compatible completion endpoint.
	BackendOpenAI Backend = "openai"
)

// Config is the top-level runtime configuration.
type Config struct {
	// Backend selects the model implementation. Defaults to llamacpp.
	Backend Backend `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Llama configures the in-process llama.cpp backend.
	Llama llamacpp.Config `json:"llama,omitempty" yaml:"llama,omitempty"`
	// OpenAI configures the remote completion backend.
	OpenAI openaicompat.Config `json:"open_ai,omitempty" yaml:"open_ai,omitempty"`

	// Decoding sets default generation parameters for every model call.
	Decoding DecodingConfig `json:"decoding,omitempty" yaml:"decoding,omitempty"`

	// Agent configures the orchestrator.
	Agent AgentConfig `json:"agent,omitempty" yaml:"agent,omitempty"`

	// Servers lists tool server executables to launch and register.
	Servers []string `json:"servers,omitempty" yaml:"servers,omitempty"`

	// TTS configures optional speech output.
	TTS TTSConfig `json:"tts,omitempty" yaml:"tts,omitempty"`
}

// DecodingConfig holds default sampling parameters.
type DecodingConfig struct {
	MaxTokens         int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopK              int      `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	TopP              *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	Seed              *int     `json:"seed,omitempty" yaml:"seed,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty" yaml:"repetition_penalty,omitempty"`
}

// AgentConfig configures the orchestrator.
type AgentConfig struct {
	// Name is the agent display name. Defaults to "palagent".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// SystemPrompt overrides the default system instruction.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// HistoryWindow is the trailing turn window for the final generation.
	HistoryWindow int `json:"history_window,omitempty" yaml:"history_window,omitempty"`
}

// TTSConfig configures optional speech output.
type TTSConfig struct {
	// Enabled turns on spoken answers.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Piper configures the Piper server.
	Piper agentio.PiperConfig `json:"piper,omitempty" yaml:"piper,omitempty"`
}

// LoadConfig reads a YAML or JSON config file, expanding environment
// variables. An empty file name yields a zero config.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
