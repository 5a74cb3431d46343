// Package openaicompat adapts an OpenAI-compatible completion endpoint
// (llama-server, Ollama, vLLM and similar local servers) to the llms.Model
// interface. Only the plain text completion API is used, so the prompt is
// passed through exactly as rendered by the conversation history.
package openaicompat

import (
	"context"

	"github.com/cockroachdb/errors"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/palagent/palagent/pkg/llms"
)

// DefaultMaxTokens is used when the caller does not set llms.WithMaxTokens.
const DefaultMaxTokens = 1024

// Config describes the served model endpoint.
type Config struct {
	// BaseURL of the OpenAI-compatible server, e.g. http://127.0.0.1:8080/v1.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Model is the served model name. Local servers often accept any value.
	Model string `json:"model" yaml:"model"`
	// Token is the API key, if the server requires one.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Client is an llms.Model backed by a remote completion endpoint.
type Client struct {
	client openai.Client
	model  string
}

var _ llms.Model = (*Client)(nil)

// New creates a backend for the endpoint described by cfg.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("openaicompat: base URL is required")
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
	}
	if cfg.Token != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.Token))
	}

	return &Client{
		client: openai.NewClient(reqOpts...),
		model:  cfg.Model,
	}, nil
}

// GetName implements llms.Model.
func (c *Client) GetName() string {
	return c.model
}

// Generate implements llms.Model.
func (c *Client) Generate(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	opts := llms.NewCallOptions(options...)

	params := openai.CompletionNewParams{
		Model: openai.CompletionNewParamsModel(c.model),
		Prompt: openai.CompletionNewParamsPromptUnion{
			OfString: openai.String(prompt),
		},
		MaxTokens: openai.Int(int64(maxTokens(opts))),
	}
	if opts.HasTemperature() {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.HasTopP() {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.HasSeed() {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{
			OfStringArray: opts.StopWords,
		}
	}

	resp, err := c.client.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("backend returned no choices")
	}
	return resp.Choices[0].Text, nil
}

func maxTokens(opts *llms.CallOptions) int {
	if opts.HasMaxTokens() {
		return opts.MaxTokens
	}
	return DefaultMaxTokens
}
