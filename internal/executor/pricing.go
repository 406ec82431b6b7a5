package executor

import (
	"strings"
	"sync"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// modelPrices is matched by substring, first match wins.
var modelPrices = []struct {
	match string
	price Price
}{
	{"opus", Price{Input: 15.0, Output: 75.0}},
	{"sonnet", Price{Input: 3.0, Output: 15.0}},
	{"haiku", Price{Input: 0.80, Output: 4.0}},
	{"gpt-4o-mini", Price{Input: 0.15, Output: 0.60}},
	{"gpt-4o", Price{Input: 2.50, Output: 10.0}},
	{"gemini", Price{Input: 1.25, Output: 5.0}},
}

// defaultPrice applies to models not in modelPrices.
var defaultPrice = Price{Input: 3.0, Output: 15.0}

// PriceFor returns the per-million-token price of a model.
func PriceFor(model string) Price {
	lower := strings.ToLower(model)
	for _, p := range modelPrices {
		if strings.Contains(lower, p.match) {
			return p.price
		}
	}
	return defaultPrice
}

// TokenCost returns the USD cost of usage at the model's price.
func TokenCost(model string, usage models.TokenUsage) float64 {
	p := PriceFor(model)
	return float64(usage.Input)/1_000_000*p.Input + float64(usage.Output)/1_000_000*p.Output
}

// TokenTracker accumulates token usage and cost across concurrent calls.
type TokenTracker struct {
	mu    sync.Mutex
	usage models.TokenUsage
	cost  float64
	calls int
}

// Add records one call's usage for model.
func (t *TokenTracker) Add(model string, usage models.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = t.usage.Add(usage)
	t.cost += TokenCost(model, usage)
	t.calls++
}

// Usage returns total tokens tracked.
func (t *TokenTracker) Usage() models.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// Cost returns total USD cost tracked.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cost
}

// Calls returns the number of calls recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
