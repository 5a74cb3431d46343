package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsChatCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_chat_calls_succeeded",
		Help:         "stats_chat_calls_succeeded provides total chat interactions succeeded",
		RequiredTags: []string{"agent"},
	}

	StatsChatCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_chat_calls_failed",
		Help:         "stats_chat_calls_failed provides total chat interactions failed",
		RequiredTags: []string{"agent"},
	}

	// StatsLLMBytesSent is base for counter metric for total prompt bytes sent to LLM
	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total prompt bytes sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls to unknown tools",
		RequiredTags: []string{"tool"},
	}
)

// Perf
var (
	PerfChatCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_chat_call",
		Help:         "perf_chat_call provides duration of one chat interaction",
		RequiredTags: []string{"agent"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfChatCall,
	&PerfToolCall,
	&StatsChatCallsFailed,
	&StatsChatCallsSucceeded,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
