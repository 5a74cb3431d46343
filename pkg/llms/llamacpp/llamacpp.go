// Package llamacpp adapts a local GGUF model loaded with go-llama.cpp
// to the llms.Model interface.
package llamacpp

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/palagent/palagent/pkg/llms"
)

var logger = xlog.NewPackageLogger("github.com/palagent/palagent/pkg/llms", "llamacpp")

// DefaultMaxTokens is used when the caller does not set llms.WithMaxTokens.
const DefaultMaxTokens = 1024

// Config describes how the model weights are loaded.
type Config struct {
	// ModelPath is the filesystem path to a GGUF model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// ContextSize is the context window in tokens.
	ContextSize int `json:"context_size,omitempty" yaml:"context_size,omitempty"`
	// GPULayers is the number of transformer layers offloaded to the GPU.
	GPULayers int `json:"gpu_layers,omitempty" yaml:"gpu_layers,omitempty"`
	// Threads is the number of CPU threads used for inference.
	Threads int `json:"threads,omitempty" yaml:"threads,omitempty"`
}

// LlamaCPP is an llms.Model backed by an in-process llama.cpp model.
type LlamaCPP struct {
	name    string
	model   *llama.LLama
	threads int
}

var _ llms.Model = (*LlamaCPP)(nil)

// New loads the model weights described by cfg.
// The returned backend owns the model and must be released with Close.
func New(cfg *Config) (*LlamaCPP, error) {
	if cfg == nil || cfg.ModelPath == "" {
		return nil, errors.New("llamacpp: model path is required")
	}

	ctxSize := cfg.ContextSize
	if ctxSize == 0 {
		ctxSize = 10000
	}

	model, err := llama.New(cfg.ModelPath,
		llama.SetContext(ctxSize),
		llama.SetGPULayers(cfg.GPULayers),
		llama.SetMMap(true),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load model: %s", cfg.ModelPath)
	}

	name := filepath.Base(cfg.ModelPath)
	logger.KV(xlog.INFO,
		"status", "model_loaded",
		"model", name,
		"context_size", ctxSize,
		"gpu_layers", cfg.GPULayers,
	)

	return &LlamaCPP{
		name:    name,
		model:   model,
		threads: cfg.Threads,
	}, nil
}

// GetName implements llms.Model.
func (l *LlamaCPP) GetName() string {
	return l.name
}

// Generate implements llms.Model.
// llama.cpp inference is not interruptible mid-decode; the context is only
// checked before the call starts.
func (l *LlamaCPP) Generate(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.WithStack(err)
	}

	opts := llms.NewCallOptions(options...)

	predictOpts := []llama.PredictOption{
		llama.SetTokens(maxTokens(opts)),
	}
	if l.threads > 0 {
		predictOpts = append(predictOpts, llama.SetThreads(l.threads))
	}
	if opts.HasTemperature() {
		predictOpts = append(predictOpts, llama.SetTemperature(opts.Temperature))
	}
	if opts.HasTopK() {
		predictOpts = append(predictOpts, llama.SetTopK(opts.TopK))
	}
	if opts.HasTopP() {
		predictOpts = append(predictOpts, llama.SetTopP(opts.TopP))
	}
	if opts.HasSeed() {
		predictOpts = append(predictOpts, llama.SetSeed(opts.Seed))
	}
	if opts.HasRepetitionPenalty() {
		predictOpts = append(predictOpts, llama.SetPenalty(opts.RepetitionPenalty))
	}
	if len(opts.StopWords) > 0 {
		predictOpts = append(predictOpts, llama.SetStopWords(opts.StopWords...))
	}

	response, err := l.model.Predict(prompt, predictOpts...)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate completion")
	}
	return response, nil
}

// Close releases the loaded model.
func (l *LlamaCPP) Close() {
	if l.model != nil {
		l.model.Free()
		l.model = nil
	}
}

func maxTokens(opts *llms.CallOptions) int {
	if opts.HasMaxTokens() {
		return opts.MaxTokens
	}
	return DefaultMaxTokens
}
