package provider

import "sync"

// Cost is per-million-token pricing for a model, grounded on internal/usage.Cost.
type Cost struct {
	Input  float64
	Output float64
}

// Estimate returns the dollar cost of u at this pricing.
func (c Cost) Estimate(u Usage) float64 {
	return (float64(u.PromptTokens)*c.Input + float64(u.CompletionTokens)*c.Output) / 1_000_000
}

// Tracker accumulates Usage across calls for cost reporting and quota enforcement,
// grounded on internal/usage.Usage's Add/Total accumulation pattern, trimmed of the
// teacher's per-user billing ledger (out of scope for this core).
type Tracker struct {
	mu    sync.Mutex
	total Usage
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker { return &Tracker{} }

// Add accumulates u into the running total.
func (t *Tracker) Add(u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.PromptTokens += u.PromptTokens
	t.total.CompletionTokens += u.CompletionTokens
	t.total.TotalTokens += u.TotalTokens
}

// Total returns a snapshot of the accumulated Usage.
func (t *Tracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// EstimateTokens is the token-counting fallback used when a provider's streaming API
// does not report usage directly: roughly 4 characters per token, matching the
// teacher's SimpleTokenCounter default.
func EstimateTokens(text string) int {
	const charsPerToken = 4
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
