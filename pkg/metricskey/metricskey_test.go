package metricskey

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsDefinitions(t *testing.T) {
	for _, m := range Metrics {
		assert.NotEmpty(t, m.Name, "Metric name should not be empty")
		assert.NotEmpty(t, m.Help, "Metric help text should not be empty")
		assert.NotEmpty(t, m.RequiredTags, "Metric should have required tags")
	}

	isSorted := sort.SliceIsSorted(Metrics, func(i, j int) bool {
		return Metrics[i].Name < Metrics[j].Name
	})
	assert.True(t, isSorted, "Metrics slice should be sorted by name")

	seen := make(map[string]bool)
	for _, m := range Metrics {
		assert.False(t, seen[m.Name], "Metric name should be unique: %s", m.Name)
		seen[m.Name] = true
	}

	assert.Contains(t, StatsChatCallsSucceeded.RequiredTags, "agent")
	assert.Contains(t, StatsToolCallsNotFound.RequiredTags, "tool")
	assert.Contains(t, StatsLLMBytesSent.RequiredTags, "model")
}
