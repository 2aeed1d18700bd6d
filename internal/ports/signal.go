package ports

import (
	"context"

	"quantpilot/internal/domain"
)

// EntrySignal is the output of a signal generator when entry conditions are met.
type EntrySignal struct {
	Side   domain.Side
	Reason string // Signal name recorded on the entry trade
}

// SignalGenerator encapsulates the entry logic for one strategy category.
// Generators are registered by category; the backtest runner and paper
// sessions dispatch through this interface rather than switching on type.
type SignalGenerator interface {
	// Lookback returns the minimum number of candles needed before the
	// generator can evaluate (the warm-up window).
	Lookback(s *domain.Strategy) int

	// Evaluate inspects the trailing candle window (oldest first, current
	// candle last) and returns an entry signal, or nil when no entry is
	// indicated. Implementations must only use data already in the window.
	Evaluate(ctx context.Context, s *domain.Strategy, candles []*domain.Candle) (*EntrySignal, error)
}
