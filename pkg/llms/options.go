package llms

// CallOption is a function that configures a CallOptions.
type CallOption func(*CallOptions)

// CallOptions is a set of decoding options for calling models.
// Not all backends support all options.
type CallOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int
	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature float64
	// TopK is the number of tokens to consider for top-k sampling.
	TopK int
	// TopP is the cumulative probability for top-p sampling.
	TopP float64
	// Seed is a seed for deterministic sampling.
	Seed int
	// StopWords is a list of words to stop on.
	StopWords []string
	// RepetitionPenalty is the repetition penalty for sampling.
	RepetitionPenalty float64

	maxTokensSet         bool
	temperatureSet       bool
	topKSet              bool
	topPSet              bool
	seedSet              bool
	repetitionPenaltySet bool
}

// NewCallOptions returns CallOptions with the given options applied.
func NewCallOptions(options ...CallOption) *CallOptions {
	opts := &CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// HasMaxTokens reports whether WithMaxTokens was applied.
func (o *CallOptions) HasMaxTokens() bool { return o.maxTokensSet }

// HasTemperature reports whether WithTemperature was applied.
func (o *CallOptions) HasTemperature() bool { return o.temperatureSet }

// HasTopK reports whether WithTopK was applied.
func (o *CallOptions) HasTopK() bool { return o.topKSet }

// HasTopP reports whether WithTopP was applied.
func (o *CallOptions) HasTopP() bool { return o.topPSet }

// HasSeed reports whether WithSeed was applied.
func (o *CallOptions) HasSeed() bool { return o.seedSet }

// HasRepetitionPenalty reports whether WithRepetitionPenalty was applied.
func (o *CallOptions) HasRepetitionPenalty() bool { return o.repetitionPenaltySet }

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature specifies the model temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopK will add an option to use top-k sampling.
func WithTopK(topK int) CallOption {
	return func(o *CallOptions) {
		o.TopK = topK
		o.topKSet = true
	}
}

// WithTopP will add an option to use top-p sampling.
func WithTopP(topP float64) CallOption {
	return func(o *CallOptions) {
		o.TopP = topP
		o.topPSet = true
	}
}

// WithSeed will add an option to use deterministic sampling.
func WithSeed(seed int) CallOption {
	return func(o *CallOptions) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithStopWords specifies a list of words to stop generation on.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithRepetitionPenalty will add an option to set the repetition penalty for sampling.
func WithRepetitionPenalty(repetitionPenalty float64) CallOption {
	return func(o *CallOptions) {
		o.RepetitionPenalty = repetitionPenalty
		o.repetitionPenaltySet = true
	}
}
