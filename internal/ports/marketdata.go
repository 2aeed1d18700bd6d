package ports

import (
	"context"
	"time"

	"quantpilot/internal/domain"
)

// MarketDataProvider defines the interface for fetching market data.
// Historical fetches must return candles in ascending timestamp order and
// must not silently fill gaps.
type MarketDataProvider interface {
	// GetCandles retrieves historical candles for the given symbol and
	// timeframe between start and end (inclusive).
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]*domain.Candle, error)

	// GetRecentCandles retrieves the most recent limit candles.
	GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error)

	// StreamCandles starts a live candle stream. Handlers receive finalized
	// and in-progress bars; errHandler receives stream errors. The returned
	// channels allow waiting for stream shutdown (doneCh) and requesting it
	// (stopCh).
	StreamCandles(ctx context.Context, symbol, timeframe string, handler func(candle *domain.Candle), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error)

	// GetFundingRate retrieves the current funding rate for a perpetual
	// symbol. Returns 0 for markets without funding.
	GetFundingRate(ctx context.Context, symbol string) (float64, error)
}
