package metrics

// Metrics holds generation API usage for a time period.
type Metrics struct {
	calls            int
	promptTokens     int
	completionTokens int
}

// New creates a Metrics snapshot.
func New(calls, promptTokens, completionTokens int) Metrics {
	return Metrics{calls: calls, promptTokens: promptTokens, completionTokens: completionTokens}
}

// Calls returns the number of generation API calls.
func (m Metrics) Calls() int { return m.calls }

// PromptTokens returns the prompt tokens consumed.
func (m Metrics) PromptTokens() int { return m.promptTokens }

// CompletionTokens returns the completion tokens consumed.
func (m Metrics) CompletionTokens() int { return m.completionTokens }

// TotalTokens returns prompt plus completion tokens.
func (m Metrics) TotalTokens() int { return m.promptTokens + m.completionTokens }
