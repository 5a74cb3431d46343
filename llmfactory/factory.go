package llmfactory

import (
	"github.com/cockroachdb/errors"
	"github.com/palagent/palagent/pkg/llms"
	"github.com/palagent/palagent/pkg/llms/llamacpp"
	"github.com/palagent/palagent/pkg/llms/openaicompat"
)

// New constructs the model backend selected by cfg.
func New(cfg *Config) (llms.Model, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendLlamaCPP
	}

	switch backend {
	case BackendLlamaCPP:
		return llamacpp.New(&cfg.Llama)
	case BackendOpenAI:
		return openaicompat.New(&cfg.OpenAI)
	default:
		return nil, errors.Newf("unsupported backend: %q", backend)
	}
}

// DefaultCallOptions converts the decoding defaults into model call options.
func (c *Config) DefaultCallOptions() []llms.CallOption {
	var opts []llms.CallOption
	d := c.Decoding

	if d.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(d.MaxTokens))
	}
	if d.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*d.Temperature))
	}
	if d.TopK > 0 {
		opts = append(opts, llms.WithTopK(d.TopK))
	}
	if d.TopP != nil {
		opts = append(opts, llms.WithTopP(*d.TopP))
	}
	if d.Seed != nil {
		opts = append(opts, llms.WithSeed(*d.Seed))
	}
	if d.RepetitionPenalty != nil {
		opts = append(opts, llms.WithRepetitionPenalty(*d.RepetitionPenalty))
	}
	return opts
}
