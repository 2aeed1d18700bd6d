// Package signal holds the entry-signal generators for each strategy
// category and the registry that dispatches to them. New categories
// register a generator; nothing switches on strategy type.
package signal

import (
	"fmt"
	"sync"

	"quantpilot/internal/domain"
	"quantpilot/internal/ports"
)

// Registry maps strategy categories to their signal generators.
type Registry struct {
	mu         sync.RWMutex
	generators map[domain.Category]ports.SignalGenerator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[domain.Category]ports.SignalGenerator)}
}

// DefaultRegistry returns a registry with the four built-in generators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.CategoryMomentum, &Momentum{})
	r.Register(domain.CategoryMeanReversion, &MeanReversion{})
	r.Register(domain.CategoryBreakout, &Breakout{})
	r.Register(domain.CategoryTrendFollowing, &TrendFollowing{})
	return r
}

// Register adds or replaces the generator for a category.
func (r *Registry) Register(cat domain.Category, g ports.SignalGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[cat] = g
}

// Lookup returns the generator for a category.
func (r *Registry) Lookup(cat domain.Category) (ports.SignalGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[cat]
	if !ok {
		return nil, fmt.Errorf("no signal generator registered for category %q", cat)
	}
	return g, nil
}

// closes extracts the close-price series from a candle window.
func closes(candles []*domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
