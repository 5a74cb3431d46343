package llms_test

import (
	"testing"

	"github.com/palagent/palagent/pkg/llms"
	"github.com/stretchr/testify/assert"
)

func TestNewCallOptions(t *testing.T) {
	opts := llms.NewCallOptions()
	assert.False(t, opts.HasMaxTokens())
	assert.False(t, opts.HasTemperature())
	assert.False(t, opts.HasTopK())
	assert.False(t, opts.HasTopP())
	assert.False(t, opts.HasSeed())
	assert.False(t, opts.HasRepetitionPenalty())
	assert.Empty(t, opts.StopWords)

	opts = llms.NewCallOptions(
		llms.WithMaxTokens(512),
		llms.WithTemperature(0.2),
		llms.WithTopK(40),
		llms.WithTopP(0.9),
		llms.WithSeed(42),
		llms.WithStopWords([]string{"<|eot_id|>"}),
		llms.WithRepetitionPenalty(1.1),
	)
	assert.True(t, opts.HasMaxTokens())
	assert.Equal(t, 512, opts.MaxTokens)
	assert.True(t, opts.HasTemperature())
	assert.InDelta(t, 0.2, opts.Temperature, 0.0001)
	assert.True(t, opts.HasTopK())
	assert.Equal(t, 40, opts.TopK)
	assert.True(t, opts.HasTopP())
	assert.InDelta(t, 0.9, opts.TopP, 0.0001)
	assert.True(t, opts.HasSeed())
	assert.Equal(t, 42, opts.Seed)
	assert.Equal(t, []string{"<|eot_id|>"}, opts.StopWords)
	assert.True(t, opts.HasRepetitionPenalty())
}
